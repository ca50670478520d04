package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/leonardotrapani/factstream/internal/model"
)

// ErrEmptyQuery is returned by searches without any usable terms
var ErrEmptyQuery = errors.New("empty search query")

// Document is a passage of reference text with free-form metadata.
// Metadata keys "source", "source_type" and "url" feed evidence attribution.
type Document struct {
	ID       string         `json:"id,omitempty" yaml:"id,omitempty"`
	Content  string         `json:"content" yaml:"content"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Searcher finds evidence passages relevant to a query
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]model.EvidenceItem, error)
}

// Store is a Searcher that documents can be added to
type Store interface {
	Searcher
	Add(ctx context.Context, doc Document) (string, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

func (d Document) Source() model.Source {
	return model.Source{
		Name: metaString(d.Metadata, "source", "Unknown"),
		Type: metaString(d.Metadata, "source_type", ""),
		URL:  metaString(d.Metadata, "url", ""),
	}
}

func metaString(m map[string]any, key, fallback string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return fallback
		}
		return s
	}
	return fmt.Sprint(v)
}

// AddAll adds docs one by one and returns how many were stored
func AddAll(ctx context.Context, s Store, docs []Document) (int, error) {
	n := 0
	for _, d := range docs {
		if _, err := s.Add(ctx, d); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
