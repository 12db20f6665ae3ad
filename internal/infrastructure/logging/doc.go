// Package logging is the log/slog setup shared by every BenchLink process.
//
// Entries carry service and version fields, and subsystems add their own
// with Component ("registry", "mqtt", "drivers"). Output is JSON by default
// or logfmt-style text for bench-side debugging:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// The level lives in a shared slog.LevelVar, so SetLevel on the root logger
// takes effect in every derived logger; benchlink re-reads logging.level
// from its config file on SIGHUP.
//
// Attributes named password, token, secret or jwt_secret, at any group
// depth, are written as [redacted].
package logging
