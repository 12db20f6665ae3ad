// Package database provides the SQLite store behind BenchLink's position
// history.
//
// It manages:
//   - Connection setup (WAL mode, busy timeout, single writer)
//   - In-memory databases for tests via MemoryPath
//   - Versioned migrations read from any fs.FS (the migrations package
//     embeds the production set)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or carry a
// default, and every .up.sql should ship with a .down.sql.
package database
