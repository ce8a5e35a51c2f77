// Package database provides SQLite connectivity for myhomed.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations from an fs.FS (normally embedded in the binary)
//   - Connection pool limits for SQLite's single writer
//
// The database holds dispatch history only (see internal/audit). Queued
// frames are never stored here.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.Source()); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.{up,down}.sql and
// are additive-only: new columns must be NULLABLE or have DEFAULT values.
package database
