package harvest

import (
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/jinzhu/now"
	"github.com/klauspost/compress/zstd"
	"github.com/segmentio/encoding/json"

	"github.com/miku/oaicat"
	"github.com/miku/oaicat/atomicfile"
	"github.com/miku/oaicat/catalog"
)

// DefaultSpoolDir is where import journals end up unless configured.
var DefaultSpoolDir = path.Join(xdg.DataHome, oaicat.AppName, "spool")

// Spool journals successfully imported packages as zstd compressed JSON
// lines, one day slice per file. The journal is an audit trail of what a
// harvest touched; it is append-only and written atomically per run.
type Spool struct {
	Dir    string
	Source string

	mu      sync.Mutex
	f       *atomicfile.File
	enc     *zstd.Encoder
	dropped int
}

// NewSpool returns a spool writing under dir, or the default data dir when
// empty.
func NewSpool(dir, source string) *Spool {
	if dir == "" {
		dir = DefaultSpoolDir
	}
	return &Spool{Dir: dir, Source: source}
}

// slicePath names a day slice file for the given time.
func (s *Spool) slicePath(t time.Time) string {
	day := now.With(t).BeginningOfDay()
	fn := fmt.Sprintf("%s-%s.jsonl.zst", s.Source, day.Format("2006-01-02"))
	return path.Join(s.Dir, fn)
}

// Note appends a package to the journal. Journal failures are counted and
// never interrupt a harvest.
func (s *Spool) Note(pkg *catalog.Package) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		if err := os.MkdirAll(s.Dir, 0755); err != nil {
			s.dropped++
			return
		}
		f, err := atomicfile.New(s.slicePath(time.Now()))
		if err != nil {
			s.dropped++
			return
		}
		enc, err := zstd.NewWriter(f)
		if err != nil {
			_ = f.Abort()
			s.dropped++
			return
		}
		s.f, s.enc = f, enc
	}
	b, err := json.Marshal(pkg)
	if err != nil {
		s.dropped++
		return
	}
	b = append(b, '\n')
	if _, err := s.enc.Write(b); err != nil {
		s.dropped++
	}
}

// Close flushes and moves the journal into place.
func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	if err := s.enc.Close(); err != nil {
		_ = s.f.Abort()
		return err
	}
	err := s.f.Close()
	s.f, s.enc = nil, nil
	return err
}

// Dropped returns the number of journal entries lost to write failures.
func (s *Spool) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
