// Package search keeps an Elasticsearch index of tasks for full-text lookup.
// The index is a lookup aid only: callers reload hits from the database.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"

	"github.com/Skotchmaster/taskpilot/internal/models"
)

var ErrSearch = errors.New("search backend error")

type Config struct {
	URL      string
	Username string
	Password string
	Index    string
}

func NewClient(ctx context.Context, cfg Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("%w: %s: %s", ErrSearch, res.Status(), body)
	}
	return client, nil
}

type TaskIndex struct {
	ES    *elasticsearch.Client
	Index string
}

func NewTaskIndex(es *elasticsearch.Client, index string) *TaskIndex {
	if index == "" {
		index = "tasks"
	}
	return &TaskIndex{ES: es, Index: index}
}

type taskDoc struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	AssignedTo  string    `json:"assigned_to"`
	DueDate     time.Time `json:"due_date"`
}

func (ix *TaskIndex) IndexTask(ctx context.Context, t *models.Task) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(taskDoc{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		AssignedTo:  t.AssignedTo.String(),
		DueDate:     t.DueDate,
	}); err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	res, err := ix.ES.Index(ix.Index, &buf,
		ix.ES.Index.WithContext(ctx),
		ix.ES.Index.WithDocumentID(t.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("%w: index: %v", ErrSearch, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: index: %s", ErrSearch, res.Status())
	}
	return nil
}

func (ix *TaskIndex) DeleteTask(ctx context.Context, id uuid.UUID) error {
	res, err := ix.ES.Delete(ix.Index, id.String(), ix.ES.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: delete: %v", ErrSearch, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("%w: delete: %s", ErrSearch, res.Status())
	}
	return nil
}

// Search returns matching task ids ordered by relevance. When assignedTo is
// set only that user's tasks can match.
func (ix *TaskIndex) Search(ctx context.Context, query string, assignedTo *uuid.UUID, from, size int) (int64, []uuid.UUID, error) {
	body := buildQuery(query, assignedTo, from, size)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := ix.ES.Search(
		ix.ES.Search.WithContext(ctx),
		ix.ES.Search.WithIndex(ix.Index),
		ix.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrSearch, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("%w: %s", ErrSearch, res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source taskDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("%w: decode: %v", ErrSearch, err)
	}

	ids := make([]uuid.UUID, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		id, err := uuid.Parse(hit.Source.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return r.Hits.Total.Value, ids, nil
}

func buildQuery(query string, assignedTo *uuid.UUID, from, size int) map[string]any {
	must := []any{map[string]any{
		"multi_match": map[string]any{
			"query":     strings.TrimSpace(query),
			"fields":    []string{"title^2", "description"},
			"fuzziness": "AUTO",
		},
	}}
	boolQ := map[string]any{"must": must}
	if assignedTo != nil {
		boolQ["filter"] = []any{map[string]any{
			"term": map[string]any{"assigned_to.keyword": assignedTo.String()},
		}}
	}
	return map[string]any{
		"query": map[string]any{"bool": boolQ},
		"from":  from,
		"size":  size,
	}
}
