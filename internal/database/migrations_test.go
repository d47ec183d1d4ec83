package database

import (
	"fmt"
	"testing"
	"testing/fstest"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())}
}

func TestMigrateIsRepeatable(t *testing.T) {
	conn, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	if err := Migrate(conn, nil); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := Migrate(conn, nil); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var count int
	if err := conn.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 applied migrations, got %d", count)
	}

	for _, table := range []string{"kv", "kv_zset", "location_outbox", "order_context"} {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestLoadMigrationsSkipsBadNames(t *testing.T) {
	conn, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	source := fstest.MapFS{
		"002_second.sql": {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"001_first.sql":  {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"notes.txt":      {Data: []byte("ignored")},
		"bad.sql":        {Data: []byte("ignored")},
	}

	migrations, err := NewMigrationManager(conn, source, nil).LoadMigrations()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Fatalf("migrations not sorted: %+v", migrations)
	}
}
