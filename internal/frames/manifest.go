package frames

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the manifest written next to the frames.
const ManifestFile = "manifest.yaml"

// Manifest describes an exported frame sequence on disk.
type Manifest struct {
	Name        string    `yaml:"name"`
	Frames      int       `yaml:"frames"`
	Start       int       `yaml:"start"`
	Ext         string    `yaml:"ext"`
	Width       int       `yaml:"width,omitempty"`
	Height      int       `yaml:"height,omitempty"`
	GeneratedAt time.Time `yaml:"generated_at,omitempty"`
}

// Sequence converts the manifest into a Sequence.
func (m *Manifest) Sequence() Sequence {
	return Sequence{Name: m.Name, Count: m.Frames, Start: m.Start, Ext: m.Ext}
}

// WriteManifest writes a manifest to a YAML file
func WriteManifest(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadManifest reads a manifest from a YAML file
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest %s: missing name", path)
	}
	if m.Ext == "" {
		m.Ext = DefaultExt
	}

	return &m, nil
}

// FindManifests returns every animation manifest one level below root,
// sorted by animation name.
func FindManifests(root string) ([]*Manifest, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory: %w", err)
	}

	var found []*Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name(), ManifestFile)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		m, err := ReadManifest(path)
		if err != nil {
			return nil, err
		}
		found = append(found, m)
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Name < found[j].Name
	})

	return found, nil
}
