package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// snapshotRow is the persisted population snapshot, one row per session.
type snapshotRow struct {
	SessionID string `gorm:"primaryKey;size:64"`
	Blob      []byte
	UpdatedAt time.Time
}

func (snapshotRow) TableName() string { return "population_snapshots" }

// experimentRow is one persisted experiment outcome.
type experimentRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	SessionID string `gorm:"index;size:64"`
	VariantID string `gorm:"size:64"`
	Role      string `gorm:"size:16"`
	Overall   float64
	Payload   []byte
	CreatedAt time.Time
}

func (experimentRow) TableName() string { return "experiments" }

// GormStore persists sessions in SQLite through GORM.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ Store = (*GormStore)(nil)

// NewGormStore opens (or creates) the SQLite database at dsn and migrates
// the schema. Use ":memory:" for tests.
func NewGormStore(dsn string, logger *zap.Logger) (*GormStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite at %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&snapshotRow{}, &experimentRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "gorm_store")),
	}, nil
}

func (s *GormStore) SaveSnapshot(ctx context.Context, sessionID string, blob []byte) error {
	row := snapshotRow{SessionID: sessionID, Blob: blob, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"blob", "updated_at"}),
		}).
		Create(&row).Error
}

func (s *GormStore) LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error) {
	var row snapshotRow
	err := s.db.WithContext(ctx).First(&row, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.Blob, nil
}

func (s *GormStore) AppendExperiment(ctx context.Context, rec ExperimentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	row := experimentRow{
		ID:        rec.ID,
		SessionID: rec.SessionID,
		VariantID: rec.VariantID,
		Role:      rec.Role,
		Overall:   rec.Overall,
		Payload:   rec.Payload,
		CreatedAt: rec.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) ListExperiments(ctx context.Context, sessionID string) ([]ExperimentRecord, error) {
	var rows []experimentRow
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ExperimentRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, ExperimentRecord{
			ID:        r.ID,
			SessionID: r.SessionID,
			VariantID: r.VariantID,
			Role:      r.Role,
			Overall:   r.Overall,
			Payload:   r.Payload,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
