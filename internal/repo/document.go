package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/Skotchmaster/taskpilot/internal/models"
)

func (r *GormRepo) AddDocument(ctx context.Context, d *models.Document) error {
	db, cancel := r.conn(ctx)
	defer cancel()
	return mapErr("add document", db.Create(d).Error)
}

func (r *GormRepo) GetDocument(ctx context.Context, taskID, docID uuid.UUID) (*models.Document, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var doc models.Document
	if err := db.Where("id = ? AND task_id = ?", docID, taskID).First(&doc).Error; err != nil {
		return nil, mapErr("get document", err)
	}
	return &doc, nil
}

func (r *GormRepo) ListDocuments(ctx context.Context, taskID uuid.UUID) ([]models.Document, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	docs := make([]models.Document, 0)
	if err := db.Where("task_id = ?", taskID).Order("created_at ASC").Find(&docs).Error; err != nil {
		return nil, mapErr("list documents", err)
	}
	return docs, nil
}

func (r *GormRepo) DeleteDocument(ctx context.Context, taskID, docID uuid.UUID) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Where("id = ? AND task_id = ?", docID, taskID).Delete(&models.Document{})
	if res.Error != nil {
		return mapErr("delete document", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
