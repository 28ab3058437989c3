package harvest

import (
	"context"
	"hash/fnv"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/miku/oaicat/convert"
)

// stripes bounds the number of distinct package locks. Two record units
// with the same derived name always map to the same stripe.
const stripes = 64

// packageLocks serializes imports touching the same derived package name.
// The "update existing or create new" decision is a read-then-write race;
// at most one concurrent writer per package name is allowed.
type packageLocks [stripes]sync.Mutex

func (l *packageLocks) forName(name string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return &l[h.Sum32()%stripes]
}

// ImportResult summarizes a concurrent import run.
type ImportResult struct {
	Resolved int
	Failed   int
}

// ImportAll processes units concurrently. Units are independent; record
// units holding the same derived package name are serialized. A unit's
// import runs to completion once started; cancellation takes effect
// between units.
func (h *Harvester) ImportAll(ctx context.Context, unitIDs []string, workers int) (ImportResult, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var (
		locks   packageLocks
		mu      sync.Mutex
		result  ImportResult
		queue   = make(chan string)
		g, gctx = errgroup.WithContext(ctx)
	)
	g.Go(func() error {
		defer close(queue)
		for _, id := range unitIDs {
			select {
			case queue <- id:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for id := range queue {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				unit, err := h.Store.GetUnit(gctx, id)
				if err != nil {
					log.Errorf("load unit %s: %v", id, err)
					mu.Lock()
					result.Failed++
					mu.Unlock()
					continue
				}
				ok := h.importLocked(gctx, unit, &locks)
				mu.Lock()
				if ok {
					result.Resolved++
				} else {
					result.Failed++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	return result, err
}

// importLocked wraps Import with the per-package lock for record units.
// Set units only attach existing packages to groups and tolerate races by
// design, so they run unlocked.
func (h *Harvester) importLocked(ctx context.Context, unit *WorkUnit, locks *packageLocks) bool {
	p, err := unit.Payload()
	if err == nil && p != nil && p.FetchType == FetchRecord {
		l := locks.forName(convert.DeriveName(p.Record))
		l.Lock()
		defer l.Unlock()
	}
	return h.Import(ctx, unit)
}
