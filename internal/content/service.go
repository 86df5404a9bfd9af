package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	errMissingStore      = errors.New("document store is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a dotted operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the stable error code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew      = "content.service.new"
	opListLinks       = "content.list_links"
	opCreateLink      = "content.create_link"
	opUpdateLink      = "content.update_link"
	opDeleteLink      = "content.delete_link"
	opMarkCompleted   = "content.mark_completed"
	opMarkIncomplete  = "content.mark_incomplete"
	opListProgress    = "content.list_progress"
	opProgressStats   = "content.progress_stats"
	opReplaceDocument = "content.replace_document"

	reasonMissingStore      = "missing_store"
	reasonMissingIDProvider = "missing_id_provider"
	reasonLoadFailed        = "load_failed"
	reasonSaveFailed        = "save_failed"
	reasonIDGenerationFail  = "id_generation_failed"
	reasonInvalidLink       = "invalid_link"
	reasonInvalidLinkID     = "invalid_link_id"
	reasonNotFound          = "not_found"
	reasonClosed            = "closed"
	reasonCancelled         = "cancelled"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the content service.
type ServiceConfig struct {
	Store         DocumentStore
	Clock         func() time.Time
	IDProvider    IDProvider
	Logger        *zap.Logger
	QueueCapacity int
}

// Service implements link curation and progress tracking over one document.
// Every operation runs as a single task on the service's writer queue.
type Service struct {
	store      DocumentStore
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	queue      *documentQueue
}

// NewService validates the configuration and starts the writer queue.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, reasonMissingStore, errMissingStore)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, reasonMissingIDProvider, errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		store:      cfg.Store,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		queue:      newDocumentQueue(cfg.Store, cfg.QueueCapacity),
	}, nil
}

// Close stops the writer queue. Pending operations fail with ErrServiceClosed.
func (s *Service) Close() {
	if s == nil || s.queue == nil {
		return
	}
	s.queue.close()
}

// ListLinks returns every link, or only those of the given category when it is non-empty.
func (s *Service) ListLinks(ctx context.Context, category Category) ([]Link, error) {
	var links []Link
	err := s.read(ctx, opListLinks, func(document Document) {
		links = filterLinks(document.Links, category)
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

// CreateLink validates the draft, assigns an identifier and appends the link.
func (s *Service) CreateLink(ctx context.Context, draft LinkDraft) (Link, error) {
	if err := draft.Validate(); err != nil {
		return Link{}, newServiceError(opCreateLink, reasonInvalidLink, err)
	}
	normalized := draft.normalized()

	var created Link
	err := s.mutate(ctx, opCreateLink, func(document *Document) (bool, error) {
		id, err := s.newLinkID(document)
		if err != nil {
			s.logError(opCreateLink, reasonIDGenerationFail, err)
			return false, newServiceError(opCreateLink, reasonIDGenerationFail, err)
		}
		created = Link{
			ID:          id,
			Category:    normalized.Category,
			Title:       normalized.Title,
			Description: normalized.Description,
			URL:         normalized.URL,
		}
		document.Links = append(document.Links, created)
		return true, nil
	})
	if err != nil {
		return Link{}, err
	}
	return created, nil
}

// UpdateLink merges the patch over the stored link. The identifier never changes.
func (s *Service) UpdateLink(ctx context.Context, rawID string, patch LinkPatch) (Link, error) {
	id, err := NewLinkID(rawID)
	if err != nil {
		return Link{}, newServiceError(opUpdateLink, reasonInvalidLinkID, err)
	}

	var updated Link
	err = s.mutate(ctx, opUpdateLink, func(document *Document) (bool, error) {
		index := document.linkIndex(id)
		if index < 0 {
			return false, newServiceError(opUpdateLink, reasonNotFound, ErrLinkNotFound)
		}
		merged, err := patch.apply(document.Links[index])
		if err != nil {
			return false, newServiceError(opUpdateLink, reasonInvalidLink, err)
		}
		updated = merged
		if patch.Empty() {
			return false, nil
		}
		document.Links[index] = merged
		return true, nil
	})
	if err != nil {
		return Link{}, err
	}
	return updated, nil
}

// DeleteLink removes the link and every progress entry referencing it.
func (s *Service) DeleteLink(ctx context.Context, rawID string) error {
	id, err := NewLinkID(rawID)
	if err != nil {
		return newServiceError(opDeleteLink, reasonInvalidLinkID, err)
	}

	return s.mutate(ctx, opDeleteLink, func(document *Document) (bool, error) {
		index := document.linkIndex(id)
		if index < 0 {
			return false, newServiceError(opDeleteLink, reasonNotFound, ErrLinkNotFound)
		}
		document.Links = append(document.Links[:index], document.Links[index+1:]...)
		removed := document.removeProgress(id.String())
		s.logger.Debug("link deleted",
			zap.String("link_id", id.String()),
			zap.Int("progress_removed", removed))
		return true, nil
	})
}

// MarkCompleted replaces any progress entry for the link with a fresh one.
// The link is not required to exist.
func (s *Service) MarkCompleted(ctx context.Context, rawLinkID string, notes string) (ProgressEntry, error) {
	linkID, err := NewLinkID(rawLinkID)
	if err != nil {
		return ProgressEntry{}, newServiceError(opMarkCompleted, reasonInvalidLinkID, err)
	}

	var entry ProgressEntry
	err = s.mutate(ctx, opMarkCompleted, func(document *Document) (bool, error) {
		document.removeProgress(linkID.String())
		entry = ProgressEntry{
			LinkID:      linkID.String(),
			CompletedAt: s.clock().UTC(),
			Notes:       notes,
		}
		document.Progress = append(document.Progress, entry)
		return true, nil
	})
	if err != nil {
		return ProgressEntry{}, err
	}
	return entry, nil
}

// MarkIncomplete removes the progress entry for the link.
func (s *Service) MarkIncomplete(ctx context.Context, rawLinkID string) error {
	linkID, err := NewLinkID(rawLinkID)
	if err != nil {
		return newServiceError(opMarkIncomplete, reasonInvalidLinkID, err)
	}

	return s.mutate(ctx, opMarkIncomplete, func(document *Document) (bool, error) {
		if document.removeProgress(linkID.String()) == 0 {
			return false, newServiceError(opMarkIncomplete, reasonNotFound, ErrProgressNotFound)
		}
		return true, nil
	})
}

// Progress returns every progress entry.
func (s *Service) Progress(ctx context.Context) ([]ProgressEntry, error) {
	var progress []ProgressEntry
	err := s.read(ctx, opListProgress, func(document Document) {
		progress = append([]ProgressEntry{}, document.Progress...)
	})
	if err != nil {
		return nil, err
	}
	return progress, nil
}

// Stats reports completion over all links, or over one category when it is non-empty.
func (s *Service) Stats(ctx context.Context, category Category) (ProgressStats, error) {
	var stats ProgressStats
	err := s.read(ctx, opProgressStats, func(document Document) {
		stats = computeStats(filterLinks(document.Links, category), document.Progress)
	})
	if err != nil {
		return ProgressStats{}, err
	}
	return stats, nil
}

// ReplaceDocument overwrites the stored document, used when importing.
func (s *Service) ReplaceDocument(ctx context.Context, replacement Document) error {
	replacement.Normalize()
	return s.mutate(ctx, opReplaceDocument, func(document *Document) (bool, error) {
		*document = replacement
		return true, nil
	})
}

func (s *Service) read(ctx context.Context, operation string, view func(Document)) error {
	if s == nil || s.queue == nil {
		return newServiceError(operation, reasonMissingStore, errMissingStore)
	}
	err := s.queue.execute(ctx, func(taskCtx context.Context, store DocumentStore) error {
		document, err := store.Load(taskCtx)
		if err != nil {
			s.logError(operation, reasonLoadFailed, err)
			return newServiceError(operation, reasonLoadFailed, err)
		}
		view(document)
		return nil
	})
	return s.classifyQueueError(operation, err)
}

func (s *Service) mutate(ctx context.Context, operation string, change func(*Document) (bool, error)) error {
	if s == nil || s.queue == nil {
		return newServiceError(operation, reasonMissingStore, errMissingStore)
	}
	err := s.queue.execute(ctx, func(taskCtx context.Context, store DocumentStore) error {
		document, err := store.Load(taskCtx)
		if err != nil {
			s.logError(operation, reasonLoadFailed, err)
			return newServiceError(operation, reasonLoadFailed, err)
		}
		changed, err := change(&document)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if err := store.Save(taskCtx, document); err != nil {
			s.logError(operation, reasonSaveFailed, err)
			return newServiceError(operation, reasonSaveFailed, err)
		}
		return nil
	})
	return s.classifyQueueError(operation, err)
}

func (s *Service) classifyQueueError(operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrServiceClosed):
		var serviceErr *ServiceError
		if errors.As(err, &serviceErr) {
			return err
		}
		return newServiceError(operation, reasonClosed, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		var serviceErr *ServiceError
		if errors.As(err, &serviceErr) {
			return err
		}
		return newServiceError(operation, reasonCancelled, err)
	default:
		return err
	}
}

// newLinkID draws identifiers until one is unused in the document.
func (s *Service) newLinkID(document *Document) (string, error) {
	const maxAttempts = 3
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := s.idProvider.NewID()
		if err != nil {
			return "", err
		}
		id, err := NewLinkID(candidate)
		if err != nil {
			return "", err
		}
		if document.linkIndex(id) < 0 {
			return id.String(), nil
		}
	}
	return "", fmt.Errorf("no unused identifier after %d attempts", maxAttempts)
}

func filterLinks(links []Link, category Category) []Link {
	filtered := make([]Link, 0, len(links))
	for _, link := range links {
		if category == "" || link.Category == category {
			filtered = append(filtered, link)
		}
	}
	return filtered
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	logger := noOpLogger
	if s != nil && s.logger != nil {
		logger = s.logger
	}
	logger.Error("content service error", attrs...)
}
