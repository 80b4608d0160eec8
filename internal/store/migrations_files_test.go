package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var migrationName = regexp.MustCompile(`^(\d{4})_[a-z0-9_]+\.(up|down)\.sql$`)

// Every migration version must ship an up and a down file, named
// NNNN_description.(up|down).sql, with no duplicates or strays.
func TestMigrationFilesArePaired(t *testing.T) {
	entries, err := os.ReadDir(filepath.Join("..", "..", "db", "migrations"))
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := migrationName.FindStringSubmatch(name)
		if match == nil {
			if strings.HasSuffix(name, ".sql") {
				t.Errorf("migration %s does not match NNNN_description.(up|down).sql", name)
			}
			continue
		}
		version := match[1]
		set := ups
		if match[2] == "down" {
			set = downs
		}
		if set[version] {
			t.Errorf("duplicate %s migration for version %s", match[2], version)
		}
		set[version] = true
	}

	if len(ups) == 0 {
		t.Fatal("no migrations discovered")
	}
	for version := range ups {
		if !downs[version] {
			t.Errorf("version %s has an up migration but no down", version)
		}
	}
	for version := range downs {
		if !ups[version] {
			t.Errorf("version %s has a down migration but no up", version)
		}
	}
}
