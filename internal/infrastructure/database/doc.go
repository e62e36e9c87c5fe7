// Package database provides the SQLite persistence layer for Aqua Logic Core.
//
// It wraps database/sql with WAL-mode configuration tuned for an embedded
// single-writer workload, and applies schema migrations embedded into the
// binary by the top-level migrations package.
//
// Lifecycle:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/aqualogic.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
