// Package store persists catalog entities and harvest bookkeeping in
// postgres via gorm. It backs three contracts at once: the catalog surface
// the normalizer writes to, the work unit store, and the retry ledger.
package store

import "time"

// Package is the stored catalog package. Name is the derived, double
// percent-encoded identifier; ID is assigned on creation only.
type Package struct {
	ID              string    `gorm:"type:text"`
	Name            string    `gorm:"primaryKey;type:text"`
	Title           string    `gorm:"type:text"`
	Notes           string    `gorm:"type:text"`
	Language        string    `gorm:"type:text"`
	LicenseID       string    `gorm:"type:text"`
	MaintainerEmail string    `gorm:"type:text"`
	Version         string    `gorm:"type:text"`
	URL             string    `gorm:"type:text"`
	Extras          string    `gorm:"type:json;default:'{}'"`
	CDate           time.Time `gorm:"autoCreateTime"`
	MDate           time.Time `gorm:"autoUpdateTime"`
}

// Resource is one file attached to a package. Superseded resources stay
// around as history.
type Resource struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	PackageName string    `gorm:"index;type:text;not null"`
	URL         string    `gorm:"type:text"`
	Name        string    `gorm:"type:text"`
	Format      string    `gorm:"type:text"`
	Size        string    `gorm:"type:text"`
	Hash        string    `gorm:"type:text"`
	Extra       string    `gorm:"type:text"`
	State       string    `gorm:"type:text;default:'active'"`
	CDate       time.Time `gorm:"autoCreateTime"`
}

// Tag attaches a normalized tag name to a package.
type Tag struct {
	PackageName string `gorm:"primaryKey;type:text"`
	Name        string `gorm:"primaryKey;type:varchar(100)"`
}

// Group is a collection of packages, e.g. one per repository domain and
// one per set.
type Group struct {
	Name        string `gorm:"primaryKey;type:text"`
	Description string `gorm:"type:text"`
}

// Membership links packages to groups.
type Membership struct {
	PackageName string `gorm:"primaryKey;type:text"`
	GroupName   string `gorm:"primaryKey;type:text"`
}

// Job is one harvest execution.
type Job struct {
	ID             string `gorm:"primaryKey;type:text"`
	SourceID       string `gorm:"index;type:text"`
	Started        time.Time
	GatherFinished *time.Time
}

// Unit is a durable work unit.
type Unit struct {
	ID        string `gorm:"primaryKey;type:text"`
	JobID     string `gorm:"index;type:text"`
	SourceID  string `gorm:"index;type:text"`
	Content   []byte `gorm:"type:bytea"`
	Retry     bool   `gorm:"index"`
	Current   bool
	PackageID string `gorm:"type:text"`
}

// UnitError is a recorded per-unit failure.
type UnitError struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	UnitID  string `gorm:"index;type:text"`
	Stage   string `gorm:"type:text"`
	Message string `gorm:"type:text"`
	At      time.Time
}

// JobError is a recorded gather stage failure.
type JobError struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	JobID   string `gorm:"index;type:text"`
	Message string `gorm:"type:text"`
	At      time.Time
}
