package newsletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/varunity/affinityserve/internal/db"
	"github.com/varunity/affinityserve/internal/models"
)

// PostgresRepository stores subscribers in the subscribers table.
type PostgresRepository struct {
	PG *db.Postgres
}

func (r PostgresRepository) Exists(ctx context.Context, email string) (bool, error) {
	return r.PG.SubscriberExists(ctx, email)
}

func (r PostgresRepository) Add(ctx context.Context, sub models.Subscriber) error {
	return r.PG.InsertSubscriber(ctx, sub)
}

// FileRepository keeps subscribers in a JSON document of the form
// {"subscribers": [...]}. A missing file reads as empty.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

type subscriberFile struct {
	Subscribers []models.Subscriber `json:"subscribers"`
}

// NewFileRepository returns a repository backed by path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) read() (subscriberFile, error) {
	var doc subscriberFile
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read subscribers: %w", err)
	}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse subscribers: %w", err)
	}
	return doc, nil
}

func contains(doc subscriberFile, email string) bool {
	for _, s := range doc.Subscribers {
		if strings.EqualFold(s.Email, email) {
			return true
		}
	}
	return false
}

func (r *FileRepository) Exists(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.read()
	if err != nil {
		return false, err
	}
	return contains(doc, email), nil
}

func (r *FileRepository) Add(_ context.Context, sub models.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.read()
	if err != nil {
		return err
	}
	if contains(doc, sub.Email) {
		return ErrDuplicate
	}
	doc.Subscribers = append(doc.Subscribers, sub)

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode subscribers: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create subscribers dir: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write subscribers: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace subscribers: %w", err)
	}
	return nil
}

// All returns every stored subscriber.
func (r *FileRepository) All() ([]models.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.read()
	return doc.Subscribers, err
}
