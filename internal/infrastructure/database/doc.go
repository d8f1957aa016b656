// Package database provides SQLite connectivity for the Bluesound bridge.
//
// This package manages:
//   - Database connection with WAL mode and a busy timeout
//   - Schema migrations read from any fs.FS (the binary embeds ./migrations)
//   - Connection lifecycle and health checks
//
// All queries use parameterised statements. The database file is created with
// 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: each file pair is YYYYMMDD_HHMMSS_name.up.sql
// and YYYYMMDD_HHMMSS_name.down.sql.
package database
