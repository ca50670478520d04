package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile adds the documents in a JSON or YAML file to s. The file may hold a
// list of documents, an object with a "documents" list, or a single document.
func LoadFile(ctx context.Context, s Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	docs, err := ParseDocuments(data, filepath.Ext(path))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	n, err := AddAll(ctx, s, docs)
	if err != nil {
		return n, err
	}
	log.Printf("knowledge: loaded %d documents from %s", n, path)
	return n, nil
}

// ParseDocuments decodes data by extension (".yaml"/".yml" or JSON otherwise).
// Entries without content are dropped.
func ParseDocuments(data []byte, ext string) ([]Document, error) {
	var raw any
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}

	switch v := raw.(type) {
	case []any:
		return decodeDocuments(v)
	case map[string]any:
		if list, ok := v["documents"].([]any); ok {
			return decodeDocuments(list)
		}
		return decodeDocuments([]any{v})
	default:
		return nil, fmt.Errorf("unexpected document format %T", raw)
	}
}

func decodeDocuments(list []any) ([]Document, error) {
	// round-trip through JSON so YAML and JSON input share one decoder
	b, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	var docs []Document
	if err := json.Unmarshal(b, &docs); err != nil {
		return nil, err
	}
	out := docs[:0]
	for _, d := range docs {
		if strings.TrimSpace(d.Content) != "" {
			out = append(out, d)
		}
	}
	return out, nil
}
