package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/taskpilot/internal/models"
	"github.com/Skotchmaster/taskpilot/internal/mykafka"
	"github.com/Skotchmaster/taskpilot/internal/storage"
	"github.com/Skotchmaster/taskpilot/pkg/logging"
)

const MaxDocumentSize = 10 << 20

type DocumentStore interface {
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
	AddDocument(ctx context.Context, d *models.Document) error
	GetDocument(ctx context.Context, taskID, docID uuid.UUID) (*models.Document, error)
	ListDocuments(ctx context.Context, taskID uuid.UUID) ([]models.Document, error)
	DeleteDocument(ctx context.Context, taskID, docID uuid.UUID) error
}

type DocumentService struct {
	Store      DocumentStore
	Objects    storage.ObjectStore
	Events     mykafka.Publisher
	PresignTTL time.Duration
}

type DocumentLink struct {
	Document    *models.Document `json:"document"`
	DownloadURL string           `json:"downloadUrl"`
	ExpiresAt   time.Time        `json:"expiresAt"`
}

func (s *DocumentService) Upload(ctx context.Context, taskID, uploader uuid.UUID, up Upload) (*models.Task, error) {
	l := logging.FromContext(ctx).With("svc", "document.upload", "task_id", taskID.String())

	task, err := loadAuthorized(ctx, s.Store.GetTask, taskID)
	if err != nil {
		return nil, err
	}
	if up.Body == nil {
		return nil, validation("document file is required")
	}
	if up.Size > MaxDocumentSize {
		return nil, validation("document exceeds %d bytes", MaxDocumentSize)
	}
	if s.Objects == nil {
		return nil, ErrUnavailable
	}

	name := filepath.Base(strings.TrimSpace(up.Name))
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	key := storage.Key("documents/"+taskID.String(), name)
	if err := s.Objects.Put(ctx, key, up.Body, up.Size, up.ContentType); err != nil {
		l.Error("upload_failed", "error", err)
		return nil, ErrUnavailable
	}

	doc := &models.Document{
		TaskID:      task.ID,
		Key:         key,
		Name:        name,
		ContentType: up.ContentType,
		Size:        up.Size,
		UploadedBy:  uploader,
	}
	if err := s.Store.AddDocument(ctx, doc); err != nil {
		_ = s.Objects.Delete(context.WithoutCancel(ctx), key)
		return nil, storeErr("add document", err)
	}

	updated, err := s.Store.GetTask(ctx, taskID)
	if err != nil {
		return nil, storeErr("reload task", err)
	}
	emitTask(ctx, s.Events, mykafka.TaskDocumentAdded, updated)
	l.Info("document_uploaded", "document_id", doc.ID.String())
	return updated, nil
}

func (s *DocumentService) Remove(ctx context.Context, taskID, docID uuid.UUID) (*models.Task, error) {
	l := logging.FromContext(ctx).With("svc", "document.remove", "task_id", taskID.String())

	if _, err := loadAuthorized(ctx, s.Store.GetTask, taskID); err != nil {
		return nil, err
	}
	doc, err := s.Store.GetDocument(ctx, taskID, docID)
	if err != nil {
		return nil, storeErr("get document", err)
	}
	if err := s.Store.DeleteDocument(ctx, taskID, docID); err != nil {
		return nil, storeErr("delete document", err)
	}
	if s.Objects != nil {
		if err := s.Objects.Delete(context.WithoutCancel(ctx), doc.Key); err != nil {
			l.Warn("object_delete_failed", "key", doc.Key, "error", err)
		}
	}

	updated, err := s.Store.GetTask(ctx, taskID)
	if err != nil {
		return nil, storeErr("reload task", err)
	}
	emitTask(ctx, s.Events, mykafka.TaskDocumentRemoved, updated)
	return updated, nil
}

func (s *DocumentService) List(ctx context.Context, taskID uuid.UUID) ([]models.Document, error) {
	if _, err := loadAuthorized(ctx, s.Store.GetTask, taskID); err != nil {
		return nil, err
	}
	docs, err := s.Store.ListDocuments(ctx, taskID)
	if err != nil {
		return nil, storeErr("list documents", err)
	}
	return docs, nil
}

func (s *DocumentService) Info(ctx context.Context, taskID, docID uuid.UUID) (*models.Document, error) {
	if _, err := loadAuthorized(ctx, s.Store.GetTask, taskID); err != nil {
		return nil, err
	}
	doc, err := s.Store.GetDocument(ctx, taskID, docID)
	if err != nil {
		return nil, storeErr("get document", err)
	}
	return doc, nil
}

// Download hands out a short-lived presigned URL instead of streaming bytes
// through the API.
func (s *DocumentService) Download(ctx context.Context, taskID, docID uuid.UUID) (*DocumentLink, error) {
	doc, err := s.Info(ctx, taskID, docID)
	if err != nil {
		return nil, err
	}
	if s.Objects == nil {
		return nil, ErrUnavailable
	}
	ttl := s.PresignTTL
	if ttl <= 0 {
		ttl = storage.DefaultPresignTTL
	}
	url, err := s.Objects.PresignGet(ctx, doc.Key, ttl)
	if err != nil {
		logging.FromContext(ctx).Error("presign_failed", "document_id", docID.String(), "error", err)
		return nil, ErrUnavailable
	}
	return &DocumentLink{Document: doc, DownloadURL: url, ExpiresAt: time.Now().Add(ttl).UTC()}, nil
}
