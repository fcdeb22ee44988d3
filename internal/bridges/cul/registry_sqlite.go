package cul

import (
	"context"
	"database/sql"
	"fmt"
)

// RegistryQuerier is the subset of *sql.DB used to load the registry.
// Satisfied by *database.DB.
type RegistryQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// LoadRegistryFromDB reads the cul_devices table once and builds an
// immutable registry. Rows are taken in rowid order so that discovery
// follows insertion order.
func LoadRegistryFromDB(ctx context.Context, db RegistryQuerier) (*Registry, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT address, name, device_class FROM cul_devices ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("querying cul_devices: %w", err)
	}
	defer rows.Close()

	var entries []RegistryEntry
	for rows.Next() {
		var e RegistryEntry
		if err := rows.Scan(&e.Address, &e.Name, &e.DeviceClass); err != nil {
			return nil, fmt.Errorf("scanning cul_devices row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cul_devices: %w", err)
	}

	return NewRegistry(entries)
}

// RegistryStore is the subset of *sql.DB used to replace the registry.
// Satisfied by *database.DB.
type RegistryStore interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// SaveRegistryToDB replaces the contents of cul_devices with r's entries
// in a single transaction, preserving registration order.
func SaveRegistryToDB(ctx context.Context, db RegistryStore, r *Registry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM cul_devices"); err != nil {
		return fmt.Errorf("clearing cul_devices: %w", err)
	}

	for _, e := range r.Entries() {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO cul_devices (address, name, device_class) VALUES (?, ?, ?)",
			e.Address, e.Name, e.DeviceClass,
		); err != nil {
			return fmt.Errorf("inserting device %s (%s): %w", e.Name, e.Address, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cul_devices: %w", err)
	}
	return nil
}
