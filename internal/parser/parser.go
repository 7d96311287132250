// Package parser reads the YAML sidecar manifests that describe documents
// dropped into the ingest inbox.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"gopkg.in/yaml.v3"
)

// Manifest is the metadata of one inbox document.
type Manifest struct {
	Name    string
	Subject string
	Date    time.Time
}

type rawManifest struct {
	Name    string `yaml:"name"`
	Title   string `yaml:"title"`
	Subject string `yaml:"subject"`
	Date    string `yaml:"date"`
}

// Parse decodes a sidecar manifest. "title" is accepted as an alias of
// "name". Dates may use any common layout ("2024-03-01", "March 1, 2024",
// "01/03/2024 10:00").
func Parse(data []byte) (*Manifest, error) {
	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parser: manifest: %w", err)
	}

	m := &Manifest{
		Name:    strings.TrimSpace(raw.Name),
		Subject: strings.TrimSpace(raw.Subject),
	}
	if m.Name == "" {
		m.Name = strings.TrimSpace(raw.Title)
	}
	if d := strings.TrimSpace(raw.Date); d != "" {
		t, err := dateparse.ParseAny(d)
		if err != nil {
			return nil, fmt.Errorf("parser: manifest date %q: %w", d, err)
		}
		m.Date = t.UTC()
	}
	return m, nil
}

// Defaults derives a manifest from a document path: the name is the file
// base with separators turned into spaces and the subject is the parent
// directory, unless that directory is root.
func Defaults(path, root string) Manifest {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := strings.Join(strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	}), " ")

	subject := ""
	if dir := filepath.Dir(path); filepath.Clean(dir) != filepath.Clean(root) {
		subject = filepath.Base(dir)
	}
	return Manifest{Name: name, Subject: subject}
}

// Merge fills the empty fields of m from defaults.
func (m *Manifest) Merge(defaults Manifest) {
	if m.Name == "" {
		m.Name = defaults.Name
	}
	if m.Subject == "" {
		m.Subject = defaults.Subject
	}
	if m.Date.IsZero() {
		m.Date = defaults.Date
	}
}

// SidecarPath returns the manifest path for a document: <dir>/<base>.yaml.
func SidecarPath(docPath string) string {
	return strings.TrimSuffix(docPath, filepath.Ext(docPath)) + ".yaml"
}
