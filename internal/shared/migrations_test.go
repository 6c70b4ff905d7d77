package shared

import (
	"path/filepath"
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		for _, m := range migrations {
			if m.Up == "" {
				t.Errorf("migration version %d missing up SQL", m.Version)
			}
			if m.Down == "" {
				t.Errorf("migration version %d missing down SQL", m.Version)
			}
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if count == 0 {
			t.Error("expected at least one migration to be applied")
		}

		if _, err := db.Exec("SELECT 1 FROM replay_runs LIMIT 1"); err != nil {
			t.Errorf("replay_runs table should exist after migrations: %v", err)
		}

		var seq int
		if err := db.QueryRow("SELECT value FROM replay_runs_sequence WHERE id = 1").Scan(&seq); err != nil {
			t.Fatalf("sequence row should be seeded: %v", err)
		}
		if seq != 0 {
			t.Errorf("expected sequence to start at 0, got %d", seq)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		var newCount int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&newCount); err != nil {
			t.Fatalf("failed to query schema_migrations after rollback: %v", err)
		}
		if newCount != count-1 {
			t.Errorf("expected migration count %d after rollback, got %d", count-1, newCount)
		}
	})

	t.Run("Rollback Everything", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		for range migrations {
			if err := RollbackMigration(db); err != nil {
				t.Fatalf("failed to rollback: %v", err)
			}
		}

		if _, err := db.Exec("SELECT 1 FROM replay_runs LIMIT 1"); err == nil {
			t.Error("replay_runs table should be gone after full rollback")
		}

		if err := RollbackMigration(db); err == nil {
			t.Error("expected error when nothing is left to roll back")
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})

	t.Run("OpenHistory", func(t *testing.T) {
		db, err := OpenHistory(DatabaseConfig{Path: ":memory:"})
		if err != nil {
			t.Fatalf("failed to open history: %v", err)
		}
		defer db.Close()

		if _, err := db.Exec("SELECT 1 FROM replay_runs LIMIT 1"); err != nil {
			t.Errorf("replay_runs table should exist: %v", err)
		}
	})

	t.Run("Busy Timeout", func(t *testing.T) {
		for _, path := range []string{":memory:", filepath.Join(t.TempDir(), "history.db"), "file:" + filepath.Join(t.TempDir(), "h.db") + "?_foreign_keys=on"} {
			db, err := NewDatabase(path)
			if err != nil {
				t.Fatalf("failed to open %s: %v", path, err)
			}

			var timeout int
			if err := db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
				t.Fatalf("failed to read busy_timeout: %v", err)
			}
			db.Close()

			if timeout != busyTimeoutMillis {
				t.Errorf("%s: expected busy_timeout %d, got %d", path, busyTimeoutMillis, timeout)
			}
		}
	})
}
