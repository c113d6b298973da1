package store

import (
	"encoding/hex"
	"io/fs"
	"strings"
	"testing"
)

func TestComputeDedupKeyFromID(t *testing.T) {
	body := []byte(`{"id":"evt_123","type":"plan.solved"}`)
	if got := computeDedupKey(body); got != "evt_123" {
		t.Fatalf("want evt_123, got %s", got)
	}
}

func TestComputeDedupKeyFromHash(t *testing.T) {
	got := computeDedupKey([]byte(`{"notId":"x"}`))
	// hex-encoded first 8 bytes -> 16 hex chars
	b, err := hex.DecodeString(got)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
}

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty(""); v != nil {
		t.Fatalf("empty -> nil expected, got %v", v)
	}
	if v := nullIfEmpty("a"); v != "a" {
		t.Fatalf("non-empty passthrough expected, got %v", v)
	}
}

func TestEmbeddedMigrationsCreateTables(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil || len(names) == 0 {
		t.Fatalf("no migrations embedded: %v", err)
	}
	var all strings.Builder
	for _, n := range names {
		b, err := migrationsFS.ReadFile(n)
		if err != nil {
			t.Fatal(err)
		}
		all.Write(b)
	}
	for _, table := range []string{"plans", "plan_metrics", "optimizer_config", "subscriptions", "webhook_deliveries"} {
		if !strings.Contains(all.String(), "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Errorf("migration missing table %s", table)
		}
	}
}
