package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DocumentStore loads and saves the whole content document.
type DocumentStore interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, document Document) error
}

var errMissingDocumentPath = errors.New("document path is required")

const (
	documentDirMode  = 0o755
	documentFileMode = 0o644
)

// FileStoreConfig configures a JSON file backed document store.
type FileStoreConfig struct {
	Path   string
	Logger *zap.Logger
}

// FileStore persists the document as one indented JSON file.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore validates the configuration and returns a FileStore.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errMissingDocumentPath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}, nil
}

// Path returns the document file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document, creating an empty one when the file is absent.
// Malformed JSON yields an empty document.
func (s *FileStore) Load(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if err := s.ensureFile(); err != nil {
		return Document{}, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	return DecodeDocument(raw, s.logger), nil
}

// Save rewrites the whole document through a temporary file and rename.
func (s *FileStore) Save(ctx context.Context, document Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDir(); err != nil {
		return err
	}
	raw, err := EncodeDocument(document)
	if err != nil {
		return err
	}
	return s.writeAtomically(raw)
}

func (s *FileStore) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(s.path), documentDirMode); err != nil {
		return fmt.Errorf("create document directory: %w", err)
	}
	return nil
}

func (s *FileStore) ensureFile() error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	_, err := os.Stat(s.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat document: %w", err)
	}
	raw, err := EncodeDocument(NewDocument())
	if err != nil {
		return err
	}
	if err := s.writeAtomically(raw); err != nil {
		return err
	}
	s.logger.Info("content document created", zap.String("path", s.path))
	return nil
}

func (s *FileStore) writeAtomically(raw []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tempPath := temp.Name()
	cleanup := func() {
		_ = os.Remove(tempPath)
	}
	if _, err := temp.Write(raw); err != nil {
		_ = temp.Close()
		cleanup()
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := temp.Sync(); err != nil {
		_ = temp.Close()
		cleanup()
		return fmt.Errorf("sync temp document: %w", err)
	}
	if err := temp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp document: %w", err)
	}
	if err := os.Chmod(tempPath, documentFileMode); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp document: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// EncodeDocument renders the document in its on-disk form.
func EncodeDocument(document Document) ([]byte, error) {
	document.Normalize()
	raw, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return raw, nil
}

// DecodeDocument parses raw bytes into a normalized document. Malformed input
// is logged and replaced by an empty document.
func DecodeDocument(raw []byte, logger *zap.Logger) Document {
	var document Document
	if err := json.Unmarshal(raw, &document); err != nil {
		if logger != nil {
			logger.Warn("content document malformed, using empty document", zap.Error(err))
		}
		return NewDocument()
	}
	document.Normalize()
	return document
}
