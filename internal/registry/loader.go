package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"modelrt/internal/common/fsutil"
	"modelrt/pkg/types"
)

// ArtifactExtensions lists the file suffixes LoadDir treats as model artifacts.
var ArtifactExtensions = []string{".bin", ".gguf", ".toy"}

// manifest is the on-disk shape of a model manifest.
type manifest struct {
	Models []types.ModelDescriptor `json:"models" yaml:"models" toml:"models"`
}

// LoadManifest reads descriptors from a JSON, YAML or TOML manifest. Relative
// artifact locations are resolved against the manifest's directory.
func LoadManifest(path string) ([]types.ModelDescriptor, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("manifest path is empty")
	}
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	switch strings.ToLower(filepath.Ext(p)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		err = dec.Decode(&m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &m)
	case ".toml":
		err = toml.Unmarshal(b, &m)
	default:
		return nil, fmt.Errorf("unsupported manifest extension: %s", filepath.Ext(p))
	}
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	base := filepath.Dir(p)
	for i := range m.Models {
		loc, err := fsutil.ResolveFrom(base, m.Models[i].ArtifactLocation)
		if err != nil {
			return nil, err
		}
		m.Models[i].ArtifactLocation = loc
	}
	return m.Models, nil
}

// LoadDir scans a directory for model artifacts and builds descriptors from
// filenames. ID is the filename without extension; ArtifactLocation is the
// absolute file path. Other metadata is empty.
func LoadDir(dir string) ([]types.ModelDescriptor, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.ModelDescriptor
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if !isArtifact(ext) {
			continue
		}
		id := strings.TrimSuffix(name, ext)
		models = append(models, types.ModelDescriptor{
			ID:               id,
			DisplayName:      id,
			ArtifactLocation: filepath.Join(abs, name),
		})
	}
	return models, nil
}

func isArtifact(ext string) bool {
	ext = strings.ToLower(ext)
	for _, want := range ArtifactExtensions {
		if ext == want {
			return true
		}
	}
	return false
}
