// Package material normalizes downloaded quiz files into typed records
// that prompts and the code runner can consume without re-parsing bytes.
package material

import (
	"path"
	"strings"
)

// Kind classifies a normalized file.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindCSV   Kind = "csv"
	KindExcel Kind = "excel"
	KindJSON  Kind = "json"
	KindPDF   Kind = "pdf"
	KindText  Kind = "text"
)

// Media holds an image or audio payload as a base64 data URI.
type Media struct {
	DataURI   string
	MimeType  string
	SizeBytes int
	AltText   string
}

// ColumnStats holds describe-style statistics for a numeric column.
type ColumnStats struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Max   float64
}

// Table holds tabular data with header-derived row maps.
type Table struct {
	Columns     []string
	Rows        []map[string]string
	RowCount    int
	ColumnCount int
	Sample      []map[string]string
	Stats       map[string]ColumnStats
}

// PDF holds per-page extracted text.
type PDF struct {
	Pages     []string
	PageCount int
}

// Material is a normalized file record. Exactly one payload field is set,
// matching Kind.
type Material struct {
	Kind  Kind
	Media *Media
	Table *Table
	JSON  interface{}
	PDF   *PDF
	Text  string
}

// Set is an insertion-ordered collection of materials keyed by source URL
// or synthetic key. Iteration order is discovery order, so prompts and
// scratch-directory layouts are deterministic within one fetch.
type Set struct {
	keys  []string
	items map[string]*Material
}

// NewSet returns an empty ordered set.
func NewSet() *Set {
	return &Set{items: make(map[string]*Material)}
}

// Add inserts or replaces a material. First insertion fixes key order.
func (s *Set) Add(key string, m *Material) {
	if _, ok := s.items[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.items[key] = m
}

// Get returns the material for a key.
func (s *Set) Get(key string) (*Material, bool) {
	m, ok := s.items[key]
	return m, ok
}

// Keys returns the keys in insertion order.
func (s *Set) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of materials.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// defaultExtensions maps kinds to the extension used when a key carries
// no usable filename.
var defaultExtensions = map[Kind]string{
	KindCSV:   ".csv",
	KindJSON:  ".json",
	KindExcel: ".xlsx",
	KindPDF:   ".txt", // PDFs materialize as extracted text
	KindText:  ".txt",
	KindImage: ".png",
	KindAudio: ".wav",
}

// Filename derives the on-disk name a material gets inside the scratch
// directory. The same name appears in prompts, so generated code opens
// files that actually exist.
func Filename(key string, kind Kind) string {
	if strings.HasPrefix(key, "image_") && !strings.Contains(key, "/") {
		return key + ".png"
	}

	trimmed := strings.TrimSuffix(key, "/")
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	base := path.Base(trimmed)
	if base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
		if kind == KindPDF {
			ext := path.Ext(base)
			return strings.TrimSuffix(base, ext) + ".txt"
		}
		return base
	}

	ext, ok := defaultExtensions[kind]
	if !ok {
		ext = ".txt"
	}
	return "data" + ext
}
