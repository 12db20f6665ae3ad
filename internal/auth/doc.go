// Package auth provides bearer-token authorisation for BenchLink Core.
//
// It implements a 3-tier role model (viewer → operator → admin) with:
//   - HS256 JWT access tokens signed with a shared secret
//   - Static role-permission mapping (compile-time, no database lookup)
//
// Tokens are stateless and short-lived. Operators mint them with
// `benchctl token`; the API verifies them when security.enabled is set.
package auth
