package knowledge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/leonardotrapani/factstream/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTerms(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"water boiling point elevation", []string{"water", "boiling", "point", "elevation"}},
		{"The tallest mountain is K2", []string{"tallest", "mountain", "k2"}},
		{"Is it? is IT!", nil},
		{"speed, speed; SPEED", []string{"speed"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Terms(tt.in)); diff != "" {
			t.Errorf("Terms(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestSQLiteStore_SearchRanksByOverlap(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := Seed(ctx, s); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil || n != 8 {
		t.Fatalf("Count() = %d, %v; want 8", n, err)
	}

	items, err := s.Search(ctx, "water boiling point elevation", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(items) == 0 {
		t.Fatal("Search() returned nothing")
	}
	top := items[0]
	if !strings.Contains(top.Content, "Water boils at 100 degrees") {
		t.Errorf("top hit = %q", top.Content)
	}
	if top.Source.Name != "Basic physics knowledge" || top.Source.Type != "scientific_database" {
		t.Errorf("top source = %+v", top.Source)
	}
	for i := 1; i < len(items); i++ {
		if items[i].RelevanceScore > items[i-1].RelevanceScore {
			t.Errorf("results not ordered by relevance at %d", i)
		}
	}
}

func TestSQLiteStore_Limit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for i := 0; i < 10; i++ {
		if _, err := s.Add(ctx, Document{Content: fmt.Sprintf("fact number %d about gravity", i)}); err != nil {
			t.Fatal(err)
		}
	}
	items, err := s.Search(ctx, "gravity", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 5 {
		t.Errorf("got %d items, want 5", len(items))
	}
}

func TestSQLiteStore_EmptyQuery(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Search(context.Background(), "  a of ", 5); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("error = %v, want ErrEmptyQuery", err)
	}
}

func TestSQLiteStore_AddReplacesByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, _ = s.Add(ctx, Document{ID: "d1", Content: "old text about comets"})
	_, _ = s.Add(ctx, Document{ID: "d1", Content: "new text about comets", Metadata: map[string]any{"source": "NASA"}})

	n, _ := s.Count(ctx)
	if n != 1 {
		t.Fatalf("Count() = %d, want 1", n)
	}
	items, _ := s.Search(ctx, "comets", 5)
	if len(items) != 1 || !strings.HasPrefix(items[0].Content, "new") || items[0].Source.Name != "NASA" {
		t.Errorf("items = %+v", items)
	}

	if _, err := s.Add(ctx, Document{Content: "   "}); err == nil {
		t.Error("Add() of empty document should fail")
	}
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kb", "knowledge.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = s.Add(ctx, Document{Content: "persisted fact about tides"})
	s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count() after reopen = %d, want 1", n)
	}
}

type countingSearcher struct {
	calls atomic.Int32
}

func (c *countingSearcher) Search(_ context.Context, query string, _ int) ([]model.EvidenceItem, error) {
	c.calls.Add(1)
	return []model.EvidenceItem{{Content: "about " + query}}, nil
}

func TestCachedSearcher(t *testing.T) {
	ctx := context.Background()
	next := &countingSearcher{}
	c := NewCachedSearcher(next, time.Minute)

	first, _ := c.Search(ctx, "Moon landing", 5)
	second, _ := c.Search(ctx, "  moon LANDING ", 5)
	if next.calls.Load() != 1 {
		t.Errorf("underlying calls = %d, want 1", next.calls.Load())
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached result differs:\n%s", diff)
	}

	second[0].Content = "mutated"
	third, _ := c.Search(ctx, "moon landing", 5)
	if third[0].Content == "mutated" {
		t.Error("cache shares its slice with callers")
	}

	_, _ = c.Search(ctx, "moon landing", 3)
	c.Flush()
	_, _ = c.Search(ctx, "moon landing", 5)
	if next.calls.Load() != 3 {
		t.Errorf("underlying calls = %d, want 3", next.calls.Load())
	}
}

func TestParseDocuments(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
		want int
	}{
		{"json list", `[{"content":"a"},{"content":"b"},{"content":""}]`, ".json", 2},
		{"json documents", `{"documents":[{"content":"a","metadata":{"source":"x"}}]}`, ".json", 1},
		{"json single", `{"content":"only one"}`, ".json", 1},
		{"yaml list", "- content: a\n  metadata:\n    source: x\n- content: b\n", ".yaml", 2},
		{"yaml documents", "documents:\n  - id: d1\n    content: a\n", ".yml", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := ParseDocuments([]byte(tt.data), tt.ext)
			if err != nil {
				t.Fatalf("ParseDocuments() error = %v", err)
			}
			if len(docs) != tt.want {
				t.Errorf("got %d documents, want %d", len(docs), tt.want)
			}
		})
	}

	if _, err := ParseDocuments([]byte(`"just a string"`), ".json"); err == nil {
		t.Error("scalar input should fail")
	}
}

func TestLoadFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	path := filepath.Join(t.TempDir(), "kb.yaml")
	data := "documents:\n  - content: Honey never spoils when sealed.\n    metadata:\n      source: Food science\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := LoadFile(ctx, s, path)
	if err != nil || n != 1 {
		t.Fatalf("LoadFile() = %d, %v; want 1", n, err)
	}
	items, _ := s.Search(ctx, "honey", 5)
	if len(items) != 1 || items[0].Source.Name != "Food science" {
		t.Errorf("items = %+v", items)
	}

	if _, err := LoadFile(ctx, s, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadFile() of a missing file should fail")
	}
}

func parseHTML(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestExtractFactCheck(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		page     string
		contains []string
		excludes []string
	}{
		{
			name: "politifact",
			url:  "https://www.politifact.com/factchecks/2024/x",
			page: `<h1>Fact check</h1><div class="m-statement__quote">Says X</div>
				<div class="m-statement__meter extra">False</div><article class="m-textblock"><p>Because Y.</p></article>`,
			contains: []string{"Title: Fact check", "Claim: Says X", "Rating: False", "Analysis: Because Y."},
		},
		{
			name:     "factcheck.org",
			url:      "https://www.factcheck.org/2024/x",
			page:     `<h1>T</h1><div class="entry-content"><p>Body text</p><script>var x;</script></div>`,
			contains: []string{"Title: T", "Body text"},
			excludes: []string{"var x"},
		},
		{
			name:     "snopes",
			url:      "https://www.snopes.com/fact-check/x",
			page:     `<div class="claim-text">Cats fly</div><div class="rating-wrapper">False</div><div class="single-body">No.</div>`,
			contains: []string{"Claim: Cats fly", "Rating: False", "Analysis: No."},
		},
		{
			name:     "generic",
			url:      "https://example.com/a",
			page:     `<p>First.</p><div><p>Second.</p></div>`,
			contains: []string{"First.", "Second."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractFactCheck(parseHTML(t, tt.page), tt.url)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("content missing %q:\n%s", want, got)
				}
			}
			for _, not := range tt.excludes {
				if strings.Contains(got, not) {
					t.Errorf("content should not contain %q", not)
				}
			}
		})
	}
}

func TestFetcher_LoadURLs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "factstream-test" {
			http.Error(w, "bad agent", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `<html><body><h1>Claim review</h1><p>Evidence paragraph.</p></body></html>`)
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		t.Error("disallowed path was fetched")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := NewFetcher(FetcherConfig{UserAgent: "factstream-test", RequestsPerSecond: 100})

	if _, err := f.Fetch(context.Background(), server.URL+"/private"); !errors.Is(err, ErrDisallowed) {
		t.Errorf("Fetch(/private) error = %v, want ErrDisallowed", err)
	}

	s := newTestStore(t)
	n, err := f.LoadURLs(context.Background(), s, []string{server.URL + "/article", server.URL + "/private", server.URL + "/missing"})
	if err != nil {
		t.Fatalf("LoadURLs() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("loaded %d, want 1", n)
	}

	items, _ := s.Search(context.Background(), "evidence paragraph", 5)
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Source.Type != "fact_checking_organization" || items[0].Source.URL != server.URL+"/article" {
		t.Errorf("source = %+v", items[0].Source)
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	r := NewRobotsChecker(server.Client(), "factstream-test")
	allowed, delay, err := r.CanFetch(context.Background(), server.URL+"/anything")
	if err != nil || !allowed || delay != 0 {
		t.Errorf("CanFetch() = %v, %v, %v; want allowed", allowed, delay, err)
	}
}
