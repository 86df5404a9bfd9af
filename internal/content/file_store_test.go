package content

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFileStoreCreatesEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "content.json")
	store, err := NewFileStore(FileStoreConfig{Path: path})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}

	document, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(document.Links) != 0 || len(document.Progress) != 0 {
		t.Fatalf("expected empty document, got %#v", document)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected document file to be created: %v", err)
	}
	expected := "{\n  \"links\": [],\n  \"progress\": []\n}"
	if string(raw) != expected {
		t.Fatalf("unexpected document contents: %s", raw)
	}
}

func TestFileStoreTreatsMalformedJSONAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}
	core, logs := observer.New(zapcore.DebugLevel)
	store, err := NewFileStore(FileStoreConfig{Path: path, Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}

	document, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if document.Links == nil || document.Progress == nil {
		t.Fatalf("expected non-nil collections")
	}
	if len(document.Links) != 0 {
		t.Fatalf("expected no links, got %d", len(document.Links))
	}
	entries := logs.FilterMessage("content document malformed, using empty document").All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warn entry, got %v", logs.All())
	}
}

func TestFileStoreBackfillsMissingProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.json")
	legacy := `{"links":[{"id":"a","category":"reading","title":"A","url":"https://a"}]}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}
	store, err := NewFileStore(FileStoreConfig{Path: path})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}

	document, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(document.Links) != 1 || document.Links[0].ID != "a" {
		t.Fatalf("unexpected links: %#v", document.Links)
	}
	if document.Progress == nil || len(document.Progress) != 0 {
		t.Fatalf("expected empty progress, got %#v", document.Progress)
	}
}

func TestFileStoreSaveRoundTripsWithoutTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "content.json")
	store, err := NewFileStore(FileStoreConfig{Path: path})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}

	completedAt := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	document := Document{
		Links:    []Link{{ID: "a", Category: CategoryGuided, Title: "Breath", URL: "https://a"}},
		Progress: []ProgressEntry{{LinkID: "a", CompletedAt: completedAt, Notes: "calm"}},
	}
	if err := store.Save(context.Background(), document); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded.Progress) != 1 || !loaded.Progress[0].CompletedAt.Equal(completedAt) {
		t.Fatalf("unexpected progress: %#v", loaded.Progress)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var wire map[string][]map[string]any
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if wire["progress"][0]["linkId"] != "a" || wire["progress"][0]["completedAt"] != "2026-03-04T05:06:07Z" {
		t.Fatalf("unexpected wire progress: %v", wire["progress"])
	}
	if _, ok := wire["links"][0]["description"]; ok {
		t.Fatalf("empty description should be omitted")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir failed: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("temporary file left behind: %s", entry.Name())
		}
	}
}

func TestDocumentNormalizeKeepsLastProgressEntry(t *testing.T) {
	document := Document{
		Progress: []ProgressEntry{
			{LinkID: "a", Notes: "old"},
			{LinkID: "b"},
			{LinkID: "a", Notes: "new"},
		},
	}
	document.Normalize()

	if document.Links == nil {
		t.Fatalf("expected links to be initialized")
	}
	if len(document.Progress) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(document.Progress))
	}
	if document.Progress[0].LinkID != "b" || document.Progress[1].Notes != "new" {
		t.Fatalf("unexpected normalized progress: %#v", document.Progress)
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore(FileStoreConfig{Path: "  "}); err == nil {
		t.Fatalf("expected error for blank path")
	}
}
