package database

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/dharma/backend/internal/content"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	contentDocumentName = "content"
	queryDocumentName   = "name = ?"
)

var errMissingDatabase = errors.New("database handle is required")

// DocumentRecord stores a whole JSON document under a name.
type DocumentRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	BodyJSON         string `gorm:"column:body_json;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (DocumentRecord) TableName() string {
	return "documents"
}

// DocumentStore keeps the content document in a single SQLite row.
type DocumentStore struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// DocumentStoreConfig describes the dependencies of a DocumentStore.
type DocumentStoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// NewDocumentStore validates the configuration and returns a DocumentStore.
func NewDocumentStore(cfg DocumentStoreConfig) (*DocumentStore, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentStore{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Load returns the stored document, or an empty one when no row exists yet.
func (s *DocumentStore) Load(ctx context.Context) (content.Document, error) {
	var record DocumentRecord
	err := s.db.WithContext(ctx).Where(queryDocumentName, contentDocumentName).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return content.NewDocument(), nil
	}
	if err != nil {
		return content.Document{}, err
	}
	return content.DecodeDocument([]byte(record.BodyJSON), s.logger), nil
}

// Save upserts the whole document row.
func (s *DocumentStore) Save(ctx context.Context, document content.Document) error {
	body, err := content.EncodeDocument(document)
	if err != nil {
		return err
	}
	record := DocumentRecord{
		Name:             contentDocumentName,
		BodyJSON:         string(body),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"body_json", "updated_at_s"}),
	}).Create(&record).Error
}
