package fileengine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIndexReconcileFindsFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "invoices", "2024"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "invoices", "2024", "jan.pdf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx := NewIndex(dir)
	all := idx.List("")
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(all), all)
	}
}

func TestIndexAddAndRemove(t *testing.T) {
	idx := &Index{root: t.TempDir()}
	idx.Add("a/b.csv")
	idx.Add("a/b.csv") // duplicate add should be a no-op
	if got := idx.List(""); len(got) != 1 {
		t.Fatalf("expected 1 entry after duplicate add, got %v", got)
	}
	idx.Remove("a/b.csv")
	if got := idx.List(""); len(got) != 0 {
		t.Fatalf("expected empty index after remove, got %v", got)
	}
}

func TestIndexListFiltersByPrefixOrBasename(t *testing.T) {
	idx := &Index{root: t.TempDir()}
	idx.Add("invoices/2024/jan.pdf")
	idx.Add("invoices/2024/feb.pdf")
	idx.Add("reports/summary.csv")

	byPrefix := idx.List("invoices/")
	if len(byPrefix) != 2 {
		t.Fatalf("expected 2 entries under invoices/, got %v", byPrefix)
	}
	byBasename := idx.List("summary.csv")
	if len(byBasename) != 1 {
		t.Fatalf("expected 1 entry matching basename summary.csv, got %v", byBasename)
	}
}
