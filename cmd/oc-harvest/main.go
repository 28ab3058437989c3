// oc-harvest runs one harvest job against an OAI-PMH endpoint: gather the
// identifier and set worklist, then import every work unit into the
// catalog. With a postgres DSN the catalog and harvest bookkeeping are
// durable; without one everything stays in memory, which is useful to
// inspect what an endpoint would yield.
//
// $ oc-harvest -u https://export.arxiv.org/oai2
// $ oc-harvest -u https://zenodo.org/oai2d -dsn "host=localhost user=oaicat ..."
// $ oc-harvest -u https://zenodo.org/oai2d -config '{"default_tags": ["zenodo"]}'
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/miku/oaicat"
	"github.com/miku/oaicat/catalog"
	"github.com/miku/oaicat/client"
	"github.com/miku/oaicat/convert"
	"github.com/miku/oaicat/harvest"
	"github.com/miku/oaicat/schema"
	"github.com/miku/oaicat/store"
)

var (
	endpoint    = flag.String("u", "", "OAI-PMH endpoint URL")
	sourceID    = flag.String("s", "", "source id, defaults to the endpoint URL")
	dsn         = flag.String("dsn", "", "postgres DSN; in-memory run when empty")
	configBlob  = flag.String("config", "", "source configuration JSON")
	windowFrom  = flag.String("from", "", "override window lower bound (any common date notation)")
	windowUntil = flag.String("until", "", "override window upper bound")
	spoolDir    = flag.String("spool", harvest.DefaultSpoolDir, "import journal directory")
	noSpool     = flag.Bool("no-spool", false, "disable the import journal")
	numWorkers  = flag.Int("w", runtime.NumCPU(), "number of import workers")
	verbose     = flag.Bool("verbose", false, "debug logging")
	showVersion = flag.Bool("version", false, "show version")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(oaicat.Version)
		os.Exit(0)
	}
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *endpoint == "" {
		log.Fatal("missing endpoint URL, use -u")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := harvest.ParseConfig([]byte(*configBlob))
	if err != nil {
		log.Fatal(err)
	}
	compiled, err := schema.DublinCore.Compile()
	if err != nil {
		log.Fatal(err)
	}
	if *sourceID == "" {
		*sourceID = *endpoint
	}
	source := harvest.Source{ID: *sourceID, URL: *endpoint, Config: cfg}
	var (
		cat    catalog.Catalog
		st     harvest.Store
		pg     *store.Store
		memCat *catalog.MemCatalog
		memSt  *harvest.MemStore
	)
	if *dsn != "" {
		pg, err = store.Open(*dsn)
		if err != nil {
			log.Fatal(err)
		}
		cat, st = pg, pg
	} else {
		memCat = catalog.NewMemCatalog()
		memSt = harvest.NewMemStore()
		cat, st = memCat, memSt
	}
	normalizer, err := convert.NewNormalizer(cat, nil, schema.DublinCoreNamespaces)
	if err != nil {
		log.Fatal(err)
	}
	h := &harvest.Harvester{
		Source:      source,
		Client:      client.New(*endpoint, compiled),
		Catalog:     cat,
		Store:       st,
		Normalizer:  normalizer,
		WindowFrom:  *windowFrom,
		WindowUntil: *windowUntil,
	}
	if !*noSpool {
		h.Spool = harvest.NewSpool(*spoolDir, *sourceID)
		defer func() {
			if err := h.Spool.Close(); err != nil {
				log.Warnf("spool: %v", err)
			}
			if n := h.Spool.Dropped(); n > 0 {
				log.Warnf("spool: dropped %d journal entries", n)
			}
		}()
	}
	job := &harvest.Job{
		ID:      uuid.NewString(),
		Source:  source,
		Started: time.Now(),
	}
	if pg != nil {
		if err := pg.CreateJob(ctx, job); err != nil {
			log.Fatal(err)
		}
	} else {
		memSt.AddJob(job)
	}
	ids, err := h.Gather(ctx, job)
	if err != nil {
		// Units gathered before the fault are still worth importing.
		log.Errorf("gather: %v", err)
	}
	if pg != nil {
		if err := pg.FinishGather(ctx, job); err != nil {
			log.Warnf("finish gather: %v", err)
		}
	} else {
		t := time.Now()
		job.GatherFinished = &t
	}
	log.Infof("importing %d units with %d workers", len(ids), *numWorkers)
	result, err := h.ImportAll(ctx, ids, *numWorkers)
	if err != nil {
		log.Errorf("import: %v", err)
	}
	log.Infof("done: resolved=%d failed=%d", result.Resolved, result.Failed)
	if memCat != nil {
		log.Infof("catalog now holds %d packages", memCat.Len())
	}
}
