package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrationFilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_jobs.sql", "001_init.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("migration files: %v", err)
	}
	if len(files) != 2 || files[0] != "001_init.sql" || files[1] != "002_jobs.sql" {
		t.Fatalf("unexpected files %v", files)
	}
}

func TestRepositoryMigrationsPresent(t *testing.T) {
	files, err := migrationFiles(filepath.Join("..", "..", "..", "migrations"))
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("expected at least one migration")
	}
}
