package store

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/segmentio/encoding/json"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/miku/oaicat/catalog"
	"github.com/miku/oaicat/harvest"
)

// Store wraps a gorm handle. It implements catalog.Catalog and
// harvest.Store.
type Store struct {
	db *gorm.DB
}

// Open connects to postgres and migrates the schema.
func Open(dsn string) (*Store, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             300 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
	})
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	return s, s.migrate()
}

// New wraps an existing gorm handle, e.g. for tests against another driver.
func New(db *gorm.DB) (*Store, error) {
	s := &Store{db: db}
	return s, s.migrate()
}

func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&Package{},
		&Resource{},
		&Tag{},
		&Group{},
		&Membership{},
		&Job{},
		&Unit{},
		&UnitError{},
		&JobError{},
	)
}

func toDomainPackage(m *Package) (*catalog.Package, error) {
	extras := make(map[string]string)
	if m.Extras != "" {
		if err := json.Unmarshal([]byte(m.Extras), &extras); err != nil {
			return nil, err
		}
	}
	return &catalog.Package{
		ID:              m.ID,
		Name:            m.Name,
		Title:           m.Title,
		Notes:           m.Notes,
		Language:        m.Language,
		LicenseID:       m.LicenseID,
		MaintainerEmail: m.MaintainerEmail,
		Version:         m.Version,
		URL:             m.URL,
		Extras:          extras,
	}, nil
}

// Lookup implements catalog.Catalog.
func (s *Store) Lookup(ctx context.Context, name string) (*catalog.Package, error) {
	var m Package
	err := s.db.WithContext(ctx).First(&m, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toDomainPackage(&m)
}

// Upsert implements catalog.Catalog. The stored ID wins on update.
func (s *Store) Upsert(ctx context.Context, pkg *catalog.Package) error {
	extras, err := json.Marshal(pkg.Extras)
	if err != nil {
		return err
	}
	m := Package{
		ID:              pkg.ID,
		Name:            pkg.Name,
		Title:           pkg.Title,
		Notes:           pkg.Notes,
		Language:        pkg.Language,
		LicenseID:       pkg.LicenseID,
		MaintainerEmail: pkg.MaintainerEmail,
		Version:         pkg.Version,
		URL:             pkg.URL,
		Extras:          string(extras),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "notes", "language", "license_id",
			"maintainer_email", "version", "url", "extras",
		}),
	}).Create(&m).Error
}

// SupersedeResources implements catalog.Catalog.
func (s *Store) SupersedeResources(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).
		Model(&Resource{}).
		Where("package_name = ?", name).
		Update("state", catalog.ResourceSuperseded).Error
}

// AttachResource implements catalog.Catalog.
func (s *Store) AttachResource(ctx context.Context, name string, res catalog.Resource) error {
	return s.db.WithContext(ctx).Create(&Resource{
		PackageName: name,
		URL:         res.URL,
		Name:        res.Name,
		Format:      res.Format,
		Size:        res.Size,
		Hash:        res.Hash,
		Extra:       res.Extra,
		State:       catalog.ResourceActive,
	}).Error
}

// AttachTag implements catalog.Catalog.
func (s *Store) AttachTag(ctx context.Context, name, tag string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Tag{PackageName: name, Name: tag}).Error
}

// AddToGroup implements catalog.Catalog; the group is created on first use.
func (s *Store) AddToGroup(ctx context.Context, name, group string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&Group{Name: group, Description: group}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&Membership{PackageName: name, GroupName: group}).Error
	})
}

func toDomainUnit(m *Unit) *harvest.WorkUnit {
	return &harvest.WorkUnit{
		ID:        m.ID,
		JobID:     m.JobID,
		SourceID:  m.SourceID,
		Content:   m.Content,
		Retry:     m.Retry,
		Current:   m.Current,
		PackageID: m.PackageID,
	}
}

func toModelUnit(u *harvest.WorkUnit) *Unit {
	return &Unit{
		ID:        u.ID,
		JobID:     u.JobID,
		SourceID:  u.SourceID,
		Content:   u.Content,
		Retry:     u.Retry,
		Current:   u.Current,
		PackageID: u.PackageID,
	}
}

// CreateUnit implements harvest.UnitStore.
func (s *Store) CreateUnit(ctx context.Context, u *harvest.WorkUnit) error {
	return s.db.WithContext(ctx).Create(toModelUnit(u)).Error
}

// UpdateUnit implements harvest.UnitStore.
func (s *Store) UpdateUnit(ctx context.Context, u *harvest.WorkUnit) error {
	return s.db.WithContext(ctx).Select("*").Updates(toModelUnit(u)).Error
}

// GetUnit implements harvest.UnitStore.
func (s *Store) GetUnit(ctx context.Context, id string) (*harvest.WorkUnit, error) {
	var m Unit
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return toDomainUnit(&m), nil
}

// CreateJob records a new harvest job.
func (s *Store) CreateJob(ctx context.Context, job *harvest.Job) error {
	return s.db.WithContext(ctx).Create(&Job{
		ID:       job.ID,
		SourceID: job.Source.ID,
		Started:  job.Started,
	}).Error
}

// FinishGather stamps the gather completion time of a job.
func (s *Store) FinishGather(ctx context.Context, job *harvest.Job) error {
	t := time.Now()
	job.GatherFinished = &t
	return s.db.WithContext(ctx).Model(&Job{ID: job.ID}).
		Update("gather_finished", t).Error
}

// PreviousJob implements harvest.JobStore.
func (s *Store) PreviousJob(ctx context.Context, job *harvest.Job) (*harvest.Job, error) {
	var m Job
	err := s.db.WithContext(ctx).
		Where("source_id = ? AND id <> ? AND gather_finished IS NOT NULL", job.Source.ID, job.ID).
		Order("gather_finished DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &harvest.Job{
		ID:             m.ID,
		Source:         harvest.Source{ID: m.SourceID},
		Started:        m.Started,
		GatherFinished: m.GatherFinished,
	}, nil
}

// MarkForRetry implements harvest.Ledger. The mark lives on the unit row,
// so marking twice cannot duplicate anything.
func (s *Store) MarkForRetry(ctx context.Context, u *harvest.WorkUnit) error {
	return s.db.WithContext(ctx).Model(&Unit{ID: u.ID}).
		Updates(map[string]interface{}{"retry": true, "content": u.Content}).Error
}

// FindAllRetries implements harvest.Ledger.
func (s *Store) FindAllRetries(ctx context.Context, job *harvest.Job) ([]*harvest.WorkUnit, error) {
	var ms []Unit
	err := s.db.WithContext(ctx).
		Where("retry AND source_id = ? AND job_id <> ?", job.Source.ID, job.ID).
		Order("id").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]*harvest.WorkUnit, 0, len(ms))
	for i := range ms {
		out = append(out, toDomainUnit(&ms[i]))
	}
	return out, nil
}

// ClearRetryMarks implements harvest.Ledger.
func (s *Store) ClearRetryMarks(ctx context.Context) error {
	return s.db.WithContext(ctx).Model(&Unit{}).
		Where("retry").Update("retry", false).Error
}

// SaveObjectError implements harvest.ErrorRecorder.
func (s *Store) SaveObjectError(ctx context.Context, unitID, stage, message string) error {
	return s.db.WithContext(ctx).Create(&UnitError{
		UnitID: unitID, Stage: stage, Message: message, At: time.Now(),
	}).Error
}

// SaveGatherError implements harvest.ErrorRecorder.
func (s *Store) SaveGatherError(ctx context.Context, jobID, message string) error {
	return s.db.WithContext(ctx).Create(&JobError{
		JobID: jobID, Message: message, At: time.Now(),
	}).Error
}
