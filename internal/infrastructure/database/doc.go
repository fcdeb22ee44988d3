// Package database provides the SQLite store for the bridge's device registry.
//
// The registry can be kept in YAML, but installations with many sensors
// (or a provisioning tool that writes them) keep it in the cul_devices
// table instead. This package manages:
//   - Opening the file with WAL mode and a busy timeout
//   - Schema migrations from the embedded migrations directory
//
// Usage:
//
//	db, err := database.Open(cfg.Registry.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database
