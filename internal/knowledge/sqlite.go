package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/leonardotrapani/factstream/internal/model"
)

// SQLiteStore keeps documents in a SQLite file and ranks them by keyword overlap
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the store at path. ":memory:" keeps everything in process.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection so ":memory:" is a single database
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		content_lower TEXT NOT NULL,
		metadata_json TEXT,
		created_at DATETIME NOT NULL
	);`)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Path() string {
	return s.path
}

// Add inserts or replaces doc and returns its id
func (s *SQLiteStore) Add(ctx context.Context, doc Document) (string, error) {
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return "", fmt.Errorf("document has no content")
	}
	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}

	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, content, content_lower, metadata_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, content, strings.ToLower(content), string(meta), time.Now())
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

type scored struct {
	doc     Document
	score   float64
	matches int
}

// Search returns up to limit documents ordered by the share of query terms they contain
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]model.EvidenceItem, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 5
	}

	where := make([]string, len(terms))
	args := make([]any, len(terms))
	for i, t := range terms {
		where[i] = "content_lower LIKE ?"
		args[i] = "%" + t + "%"
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, content_lower, metadata_json FROM documents WHERE `+strings.Join(where, " OR "),
		args...)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var hits []scored
	for rows.Next() {
		var (
			doc   Document
			lower string
			meta  sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &lower, &meta); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if meta.Valid && meta.String != "" && meta.String != "null" {
			if err := json.Unmarshal([]byte(meta.String), &doc.Metadata); err != nil {
				log.Printf("knowledge: document %s has bad metadata: %v", doc.ID, err)
			}
		}

		n := 0
		for _, t := range terms {
			if strings.Contains(lower, t) {
				n++
			}
		}
		hits = append(hits, scored{doc: doc, matches: n, score: float64(n) / float64(len(terms))})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].matches != hits[j].matches {
			return hits[i].matches > hits[j].matches
		}
		return hits[i].doc.ID < hits[j].doc.ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	items := make([]model.EvidenceItem, 0, len(hits))
	for _, h := range hits {
		items = append(items, model.EvidenceItem{
			Content:        h.doc.Content,
			RelevanceScore: h.score,
			Source:         h.doc.Source(),
		})
	}
	log.Printf("knowledge: found %d results for query: %s", len(items), query)
	return items, nil
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "were": true,
	"with": true, "that": true, "this": true, "from": true, "has": true, "have": true,
	"not": true, "but": true, "its": true, "into": true, "than": true, "then": true,
	"about": true, "related": true, "on": true, "of": true, "is": true, "at": true,
	"in": true, "to": true, "a": true, "an": true, "or": true, "by": true, "as": true,
}

// Terms lowercases query and splits it into distinct searchable words
func Terms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if stopwords[f] || seen[f] {
			continue
		}
		if len(f) < 3 && !strings.ContainsFunc(f, unicode.IsDigit) {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
