package tokenizer

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// LoadVocabulary reads a vocabulary file based on its extension.
// Supports: .json/.yaml/.yml (token -> id object) and .txt (one token per
// line, ids assigned in file order, blank lines skipped).
func LoadVocabulary(path string) (*WordVocabulary, error) {
	if path == "" {
		return nil, fmt.Errorf("empty vocabulary path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		var m map[string]int
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("parse vocabulary %s: %w", path, err)
		}
		return NewWordVocabulary(m)
	case ".yaml", ".yml":
		var m map[string]int
		if err := yaml.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("parse vocabulary %s: %w", path, err)
		}
		return NewWordVocabulary(m)
	case ".txt":
		var toks []string
		sc := bufio.NewScanner(bytes.NewReader(b))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			toks = append(toks, line)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return NewWordVocabularyFromList(toks)
	default:
		return nil, fmt.Errorf("unsupported vocabulary extension: %s", ext)
	}
}
