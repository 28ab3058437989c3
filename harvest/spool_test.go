package harvest

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/segmentio/encoding/json"

	"github.com/miku/oaicat/catalog"
)

func TestSpool(t *testing.T) {
	dir := t.TempDir()
	s := NewSpool(dir, "example")
	s.Note(&catalog.Package{Name: "a", Title: "A"})
	s.Note(&catalog.Package{Name: "b", Title: "B"})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := s.Dropped(); got != 0 {
		t.Fatalf("dropped %d entries", got)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "example-*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("got %v, want one day slice", matches)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer zr.Close()
	var names []string
	scanner := bufio.NewScanner(zr)
	for scanner.Scan() {
		var pkg catalog.Package
		if err := json.Unmarshal(scanner.Bytes(), &pkg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		names = append(names, pkg.Name)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("got %v, want [a b]", names)
	}
}

func TestSpoolCloseWithoutWrites(t *testing.T) {
	s := NewSpool(t.TempDir(), "example")
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
