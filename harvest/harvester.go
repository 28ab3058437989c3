package harvest

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/miku/oaicat/catalog"
	"github.com/miku/oaicat/client"
	"github.com/miku/oaicat/convert"
	"github.com/miku/oaicat/schema"
)

// mergeDefaults folds configured default extras and tags into the mapped
// metadata. Defaults never override a key the record already carries.
func mergeDefaults(m schema.Mapped, cfg Config) {
	for key, value := range cfg.DefaultExtras {
		if _, ok := m[key]; !ok {
			m.SetScalar(key, value)
		}
	}
	if _, ok := m["subject"]; ok && len(cfg.DefaultTags) > 0 {
		m.AppendList("subject", cfg.DefaultTags...)
	}
}

// GatherError reports a failed enumeration. Work units created before the
// failure are preserved: discovered work is committed as it is found.
type GatherError struct {
	Msg string
	Err error
}

func (e *GatherError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gather: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("gather: %s", e.Msg)
}

func (e *GatherError) Unwrap() error { return e.Err }

// Client is the protocol adapter surface the harvester consumes.
type Client interface {
	Identify(ctx context.Context) (*client.Identity, error)
	EachIdentifier(ctx context.Context, args client.ListArgs, fn func(client.Header) error) error
	ListSets(ctx context.Context) ([]client.Set, error)
	GetRecord(ctx context.Context, identifier string) (*client.Record, error)
	RecordURL(identifier string) string
}

// Harvester wires the protocol client, the catalog, the store and the
// normalizer into the three stage entry points consumed by the scheduling
// framework: Gather, Fetch and Import. One harvester handles one source.
type Harvester struct {
	Source     Source
	Client     Client
	Catalog    catalog.Catalog
	Store      Store
	Normalizer *convert.Normalizer
	Spool      *Spool // optional import journal

	// WindowFrom and WindowUntil override the computed time window, for
	// testing a harvest against a fixed interval.
	WindowFrom  string
	WindowUntil string
}

// Gather enumerates identifiers and sets for the job's window and persists
// one work unit per discovery, set units ordered after record units. Units
// parked in the retry ledger by earlier jobs are re-attached to this job
// ahead of fresh ones. On an enumeration fault the ids gathered so far are
// returned together with a GatherError.
func (h *Harvester) Gather(ctx context.Context, job *Job) (ids []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("gather %s: panic: %v", job.ID, r)
			err = &GatherError{Msg: fmt.Sprintf("panic: %v", r)}
		}
	}()
	cfg := job.Source.Config
	window, err := h.timeWindow(ctx, job)
	if err != nil {
		return nil, err
	}
	identity, err := h.Client.Identify(ctx)
	if err != nil {
		msg := fmt.Sprintf("could not gather from %s", job.Source.URL)
		_ = h.Store.SaveGatherError(ctx, job.ID, msg)
		return nil, &GatherError{Msg: msg, Err: err}
	}
	domain := identity.RepositoryName
	// Re-attach units parked for retry by earlier jobs, records first.
	retries, err := h.Store.FindAllRetries(ctx, job)
	if err != nil {
		return nil, err
	}
	var (
		retryRecords = make(map[string]bool) // on retry already, do not fetch twice
		retrySets    = make(map[string]bool)
		recordIDs    []string
		setIDs       []string
	)
	for _, u := range retries {
		p, err := u.Payload()
		if err != nil || p == nil {
			continue
		}
		u.JobID = job.ID
		if err := h.Store.UpdateUnit(ctx, u); err != nil {
			return nil, err
		}
		switch p.FetchType {
		case FetchRecord:
			retryRecords[p.Record] = true
			recordIDs = append(recordIDs, u.ID)
		case FetchSet:
			retrySets[p.SetName] = true
			setIDs = append(setIDs, u.ID)
		}
	}
	if err := h.Store.ClearRetryMarks(ctx); err != nil {
		return nil, err
	}
	var args client.ListArgs
	if !cfg.ForceAll {
		args.From, args.Until = window.From, window.Until
	}
	err = h.Client.EachIdentifier(ctx, args, func(hd client.Header) error {
		if retryRecords[hd.Identifier] {
			return nil
		}
		unit, err := NewWorkUnit(job, &Payload{
			FetchType: FetchRecord,
			Record:    hd.Identifier,
			Domain:    domain,
		})
		if err != nil {
			return err
		}
		if err := h.Store.CreateUnit(ctx, unit); err != nil {
			return err
		}
		recordIDs = append(recordIDs, unit.ID)
		return nil
	})
	if err != nil {
		msg := "could not fetch identifier list"
		_ = h.Store.SaveGatherError(ctx, job.ID, msg)
		return append(recordIDs, setIDs...), &GatherError{Msg: msg, Err: err}
	}
	log.Infof("gathered %d records from %s", len(recordIDs), domain)
	sets, err := h.Client.ListSets(ctx)
	if err != nil {
		// Possibly a timeout. The record units stand, so return them.
		msg := "could not fetch set list"
		_ = h.Store.SaveGatherError(ctx, job.ID, msg)
		return append(recordIDs, setIDs...), &GatherError{Msg: msg, Err: err}
	}
	for _, set := range sets {
		if retrySets[set.Name] {
			continue
		}
		p := &Payload{
			FetchType: FetchSet,
			Set:       set.Spec,
			SetName:   set.Name,
			Domain:    domain,
		}
		if window.From != nil {
			p.From = window.From.Format(windowLayout)
		}
		if window.Until != nil {
			p.Until = window.Until.Format(windowLayout)
		}
		unit, err := NewWorkUnit(job, p)
		if err != nil {
			return append(recordIDs, setIDs...), err
		}
		if err := h.Store.CreateUnit(ctx, unit); err != nil {
			return append(recordIDs, setIDs...), err
		}
		setIDs = append(setIDs, unit.ID)
	}
	ids = append(recordIDs, setIDs...)
	log.Infof("gathered %d records/sets from %s", len(ids), domain)
	return ids, nil
}

// Fetch is a deliberate no-op: all remote interaction happens lazily in
// Import, so no non-serializable protocol object ever has to survive a
// stage boundary.
func (h *Harvester) Fetch(ctx context.Context, unit *WorkUnit) bool {
	return true
}

// Import consumes one work unit: fetch, normalize and store for record
// units; group membership resolution for set units. It never panics across
// the unit boundary; every failure degrades to a false return plus a
// recorded error.
func (h *Harvester) Import(ctx context.Context, unit *WorkUnit) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("import %s: panic: %v", unit.ID, r)
			ok = false
		}
	}()
	p, err := unit.Payload()
	if err != nil {
		log.Errorf("import %s: bad payload: %v", unit.ID, err)
		return false
	}
	if p == nil {
		return true // already resolved
	}
	switch p.FetchType {
	case FetchRecord:
		return h.importRecord(ctx, unit, p)
	case FetchSet:
		return h.importSet(ctx, unit, p)
	}
	// This should not happen.
	log.Errorf("unknown fetch type: %s", p.FetchType)
	return false
}

// objectError records a per-unit failure and parks the unit for retry.
func (h *Harvester) objectError(ctx context.Context, unit *WorkUnit, message string) {
	_ = h.Store.SaveObjectError(ctx, unit.ID, "Fetch", message)
	_ = h.Store.MarkForRetry(ctx, unit)
}

func (h *Harvester) importRecord(ctx context.Context, unit *WorkUnit, p *Payload) bool {
	rec, err := h.Client.GetRecord(ctx, p.Record)
	if err != nil {
		var fault *client.Fault
		switch {
		case errors.As(err, &fault) && fault.Kind == client.FaultSyntax:
			log.Errorf("oai_dc XML syntax error: %s", p.Record)
			h.objectError(ctx, unit, "syntax error")
		case errors.As(err, &fault) && fault.Kind == client.FaultSocket:
			h.objectError(ctx, unit, fmt.Sprintf("socket error: %v", fault.Err))
		case errors.As(err, &fault) && fault.Kind == client.FaultTransport:
			h.objectError(ctx, unit, fmt.Sprintf("failed to fetch record: %v", fault.Err))
		default:
			h.objectError(ctx, unit, fmt.Sprintf("bad response: %v", err))
		}
		return false
	}
	if rec.Mapped == nil {
		// No metadata at all, assume a legitimate gap rather than an error.
		log.Warnf("no metadata: %s", p.Record)
		return false
	}
	if !rec.Mapped.Has("date") {
		// Date is mandatory for versioning downstream; retry later.
		log.Warnf("missing date: %s", p.Record)
		h.objectError(ctx, unit, fmt.Sprintf("missing date: %s", p.Record))
		return false
	}
	mergeDefaults(rec.Mapped, h.Source.Config)
	identifier := rec.Header.Identifier
	pkg, err := h.Normalizer.Normalize(ctx, identifier, rec.Mapped, h.Client.RecordURL(identifier), p.Domain)
	if err != nil {
		log.Errorf("normalize %s: %v", identifier, err)
		return false
	}
	unit.PackageID = pkg.ID
	unit.Current = true
	unit.Resolve()
	if err := h.Store.UpdateUnit(ctx, unit); err != nil {
		log.Errorf("update unit %s: %v", unit.ID, err)
		return false
	}
	if h.Spool != nil {
		h.Spool.Note(pkg)
	}
	return true
}

func (h *Harvester) importSet(ctx context.Context, unit *WorkUnit, p *Payload) bool {
	if p.Set != "" {
		// First attempt: membership still has to be enumerated.
		args := client.ListArgs{Set: p.Set}
		if p.From != "" {
			if t, err := ParseTime(p.From); err == nil {
				args.From = &t
			}
		}
		if p.Until != "" {
			if t, err := ParseTime(p.Until); err == nil {
				args.Until = &t
			}
		}
		var ids []string
		err := h.Client.EachIdentifier(ctx, args, func(hd client.Header) error {
			ids = append(ids, hd.Identifier)
			return nil
		})
		if err != nil {
			h.objectError(ctx, unit, fmt.Sprintf("set %s: %v", p.SetName, err))
			return false
		}
		if len(ids) == 0 {
			return false // empty set, nothing to do
		}
		p.RecordIDs = ids
	} else {
		log.Debugf("reinsert: %s %d", p.SetName, len(p.RecordIDs))
	}
	subgroup := fmt.Sprintf("%s - %s", p.Domain, p.SetName)
	var missed []string
	for _, ident := range p.RecordIDs {
		name := convert.DeriveName(ident)
		// The record import may not have run yet, or may have been
		// skipped for missing metadata; misses are expected and normal.
		pkg, err := h.Catalog.Lookup(ctx, name)
		if err != nil {
			log.Errorf("lookup %s: %v", name, err)
			missed = append(missed, ident)
			continue
		}
		if pkg == nil {
			missed = append(missed, ident)
			continue
		}
		if err := h.Catalog.AddToGroup(ctx, name, subgroup); err != nil {
			log.Errorf("group %s: %v", subgroup, err)
			missed = append(missed, ident)
		}
	}
	if len(missed) > 0 {
		// Keep only the missing identifiers and drop the set reference,
		// so a later retry re-checks membership instead of re-fetching.
		p.RecordIDs = missed
		p.Set = ""
		if err := unit.SetPayload(p); err != nil {
			log.Errorf("unit %s: %v", unit.ID, err)
			return false
		}
		if err := h.Store.UpdateUnit(ctx, unit); err != nil {
			log.Errorf("update unit %s: %v", unit.ID, err)
			return false
		}
		if err := h.Store.MarkForRetry(ctx, unit); err != nil {
			log.Errorf("mark retry %s: %v", unit.ID, err)
		}
		log.Debugf("missed %s %d", p.SetName, len(missed))
	} else {
		unit.Resolve()
		if err := h.Store.UpdateUnit(ctx, unit); err != nil {
			log.Errorf("update unit %s: %v", unit.ID, err)
			return false
		}
	}
	return true
}

