package harvest

import (
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
)

// Fetch types stored in work unit payloads.
const (
	FetchRecord = "record"
	FetchSet    = "set"
)

// Payload is the serialized content of a work unit. It has to survive
// process boundaries, so it only carries plain values, never live protocol
// objects.
type Payload struct {
	FetchType string   `json:"fetch_type"`
	Record    string   `json:"record,omitempty"`
	Set       string   `json:"set,omitempty"`
	SetName   string   `json:"set_name,omitempty"`
	Domain    string   `json:"domain"`
	RecordIDs []string `json:"record_ids,omitempty"`
	From      string   `json:"from_,omitempty"`
	Until     string   `json:"until,omitempty"`
}

// WorkUnit is the durable unit of harvest work: one record or one set.
// Created during gather, consumed during import, and either finalized or
// parked for retry.
type WorkUnit struct {
	ID        string
	JobID     string
	SourceID  string
	Content   []byte // serialized Payload; nil once fully resolved
	Retry     bool
	Current   bool
	PackageID string
}

// NewWorkUnit creates a unit for a job with a serialized payload.
func NewWorkUnit(job *Job, p *Payload) (*WorkUnit, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return &WorkUnit{
		ID:       uuid.NewString(),
		JobID:    job.ID,
		SourceID: job.Source.ID,
		Content:  b,
	}, nil
}

// Payload deserializes the unit content. Returns nil for a resolved unit.
func (u *WorkUnit) Payload() (*Payload, error) {
	if len(u.Content) == 0 {
		return nil, nil
	}
	var p Payload
	if err := json.Unmarshal(u.Content, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetPayload replaces the unit content.
func (u *WorkUnit) SetPayload(p *Payload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	u.Content = b
	return nil
}

// Resolve clears the unit content, marking it fully processed.
func (u *WorkUnit) Resolve() {
	u.Content = nil
}
