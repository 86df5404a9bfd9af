package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/dharma/backend/internal/content"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationSeedContentDocument       = "2026-10-19_seed_content_document"
	migrationCollapseDuplicateProgress = "2026-10-19_collapse_duplicate_progress"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSeedContentDocument, apply: seedContentDocument},
		{name: migrationCollapseDuplicateProgress, apply: collapseDuplicateProgress},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func seedContentDocument(db *gorm.DB) error {
	var existing DocumentRecord
	err := db.Where(queryDocumentName, contentDocumentName).Take(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	body, err := content.EncodeDocument(content.NewDocument())
	if err != nil {
		return err
	}
	return db.Create(&DocumentRecord{
		Name:             contentDocumentName,
		BodyJSON:         string(body),
		UpdatedAtSeconds: time.Now().UTC().Unix(),
	}).Error
}

// collapseDuplicateProgress rewrites the stored document so that every link
// carries at most one progress entry.
func collapseDuplicateProgress(db *gorm.DB) error {
	var record DocumentRecord
	err := db.Where(queryDocumentName, contentDocumentName).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	document := content.DecodeDocument([]byte(record.BodyJSON), nil)
	body, err := content.EncodeDocument(document)
	if err != nil {
		return err
	}
	if string(body) == record.BodyJSON {
		return nil
	}
	return db.Model(&DocumentRecord{}).
		Where(queryDocumentName, contentDocumentName).
		Updates(map[string]any{
			"body_json":    string(body),
			"updated_at_s": time.Now().UTC().Unix(),
		}).Error
}
