package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ReadArticles loads an articles.json interchange file.
func ReadArticles(path string) ([]Article, error) {
	var articles []Article
	if err := readJSON(path, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// WriteArticles writes articles.json, creating parent directories.
func WriteArticles(path string, articles []Article) error {
	return writeJSON(path, articles)
}

// ReadChunks loads a chunks.json interchange file.
func ReadChunks(path string) ([]Chunk, error) {
	var chunks []Chunk
	if err := readJSON(path, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// WriteChunks writes chunks.json, creating parent directories.
func WriteChunks(path string, chunks []Chunk) error {
	return writeJSON(path, chunks)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ingest: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("ingest: parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ingest: create %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ingest: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	// Vietnamese text should stay readable in the interchange files.
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("ingest: write %s: %w", path, err)
	}
	return nil
}
