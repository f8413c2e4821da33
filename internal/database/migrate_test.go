package database

import (
	"context"
	"io/fs"
	"strings"
	"testing"
)

func TestMigrate_Validation(t *testing.T) {
	testCases := []struct {
		name      string
		dsn       string
		direction string
	}{
		{"empty dsn", "", "up"},
		{"bad direction", "postgres://localhost/app", "sideways"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Migrate(tc.dsn, tc.direction); err == nil {
				t.Error("Migrate should return an error")
			}
		})
	}
}

func TestMigrationFS_Pairs(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Errorf("expected matching up/down migrations, got %d up and %d down", ups, downs)
	}
}

func TestNewPool_EmptyDSN(t *testing.T) {
	pool, err := NewPool(context.Background(), "")
	if err == nil {
		pool.Close()
		t.Fatal("NewPool with empty DSN should return error")
	}
}
