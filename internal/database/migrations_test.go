package database

import (
	"context"
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsCollapsesDuplicateProgress(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&DocumentRecord{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	legacyBody := `{"links":[{"id":"a","category":"guided","title":"A","url":"https://a"}],` +
		`"progress":[{"linkId":"a","completedAt":"2026-01-01T00:00:00Z","notes":"old"},` +
		`{"linkId":"a","completedAt":"2026-02-01T00:00:00Z","notes":"new"}]}`
	legacy := DocumentRecord{
		Name:             contentDocumentName,
		BodyJSON:         legacyBody,
		UpdatedAtSeconds: 1,
	}
	if err := database.Create(&legacy).Error; err != nil {
		testContext.Fatalf("failed to insert document: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored DocumentRecord
	if err := database.Where(queryDocumentName, contentDocumentName).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload document: %v", err)
	}
	if stored.UpdatedAtSeconds == 1 {
		testContext.Fatalf("expected document to be rewritten")
	}
	store, err := NewDocumentStore(DocumentStoreConfig{Database: database})
	if err != nil {
		testContext.Fatalf("failed to construct store: %v", err)
	}
	document, err := store.Load(context.Background())
	if err != nil {
		testContext.Fatalf("failed to load document: %v", err)
	}
	if len(document.Progress) != 1 || document.Progress[0].Notes != "new" {
		testContext.Fatalf("expected one progress entry with latest notes, got %#v", document.Progress)
	}

	for _, name := range []string{migrationSeedContentDocument, migrationCollapseDuplicateProgress} {
		var record migrationRecord
		if err := database.Where("name = ?", name).Take(&record).Error; err != nil {
			testContext.Fatalf("expected migration record %s to be created: %v", name, err)
		}
		if record.AppliedAtSeconds == 0 {
			testContext.Fatalf("expected migration timestamp to be set")
		}
	}
}

func TestOpenSQLiteSeedsEmptyDocument(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "seed.db")

	database, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		testContext.Fatalf("failed to access sql db: %v", err)
	}
	defer sqlDB.Close()

	var stored DocumentRecord
	if err := database.Where(queryDocumentName, contentDocumentName).Take(&stored).Error; err != nil {
		testContext.Fatalf("expected seeded document: %v", err)
	}
	expected := "{\n  \"links\": [],\n  \"progress\": []\n}"
	if stored.BodyJSON != expected {
		testContext.Fatalf("unexpected seeded body: %s", stored.BodyJSON)
	}
}
