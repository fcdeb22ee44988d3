package cul

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/cul-bridge/internal/infrastructure/config"
	"github.com/nerrad567/cul-bridge/internal/infrastructure/database"
	_ "github.com/nerrad567/cul-bridge/migrations"
)

// openRegistryDB opens a migrated SQLite database in a temp directory.
func openRegistryDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "registry.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestSaveAndLoadRegistry(t *testing.T) {
	db := openRegistryDB(t)
	ctx := context.Background()

	want, err := NewRegistry(testEntries())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	if err := SaveRegistryToDB(ctx, db, want); err != nil {
		t.Fatalf("SaveRegistryToDB() error = %v", err)
	}

	got, err := LoadRegistryFromDB(ctx, db)
	if err != nil {
		t.Fatalf("LoadRegistryFromDB() error = %v", err)
	}

	if got.Len() != want.Len() {
		t.Fatalf("Len() = %d, want %d", got.Len(), want.Len())
	}
	for i, e := range got.Entries() {
		if e != want.Entries()[i] {
			t.Errorf("entry %d = %+v, want %+v", i, e, want.Entries()[i])
		}
	}
}

func TestSaveRegistry_Replaces(t *testing.T) {
	db := openRegistryDB(t)
	ctx := context.Background()

	first, _ := NewRegistry(testEntries())
	if err := SaveRegistryToDB(ctx, db, first); err != nil {
		t.Fatalf("SaveRegistryToDB() error = %v", err)
	}

	second, _ := NewRegistry([]RegistryEntry{{Address: "3333", Name: "garage", DeviceClass: "garage_door"}})
	if err := SaveRegistryToDB(ctx, db, second); err != nil {
		t.Fatalf("SaveRegistryToDB() error = %v", err)
	}

	got, err := LoadRegistryFromDB(ctx, db)
	if err != nil {
		t.Fatalf("LoadRegistryFromDB() error = %v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", got.Len())
	}
	if _, ok := got.Lookup("1111"); ok {
		t.Error("old entry survived replacement")
	}
}

func TestLoadRegistry_Empty(t *testing.T) {
	db := openRegistryDB(t)

	r, err := LoadRegistryFromDB(context.Background(), db)
	if err != nil {
		t.Fatalf("LoadRegistryFromDB() error = %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestLoadRegistry_InvalidRow(t *testing.T) {
	db := openRegistryDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"INSERT INTO cul_devices (address, name, device_class) VALUES (?, ?, ?)",
		"9999", "broken", "door",
	); err != nil {
		t.Fatalf("insert error = %v", err)
	}

	_, err := LoadRegistryFromDB(ctx, db)
	if !errors.Is(err, ErrInvalidRegistry) {
		t.Errorf("LoadRegistryFromDB() error = %v, want ErrInvalidRegistry", err)
	}
}

func TestLoadRegistry_MissingTable(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "empty.db")})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if _, err := LoadRegistryFromDB(context.Background(), db); err == nil {
		t.Error("LoadRegistryFromDB() without migrations should fail")
	}
}
