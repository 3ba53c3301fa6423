// Package encoding renders similarity results in their stable JSON form.
package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/simdev/internal/analysis"
)

// Indent is the indentation used for every exported document
const Indent = "    "

// Decimal is a real number rendered with six fixed decimals
type Decimal float64

func (d Decimal) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(d), 'f', 6, 64), nil
}

type Contribution struct {
	Name         string  `json:"name"`
	Contribution Decimal `json:"contribution"`
}

type RepositoryActivity struct {
	Repository string `json:"repository"`
	Files      int    `json:"files"`
}

// Record is the exported form of one match
type Record struct {
	DeveloperID        string               `json:"developer_id"`
	Score              Decimal              `json:"score"`
	Components         map[string]Decimal   `json:"components"`
	TopLanguages       []Contribution       `json:"top_languages"`
	TopIdentifiers     []Contribution       `json:"top_identifiers"`
	TopRepositories    []RepositoryActivity `json:"top_repositories"`
	SharedRepositories []string             `json:"shared_repositories"`
}

// FromResults converts search results into records. Nil slices become
// empty arrays.
func FromResults(results []analysis.SimilarityResult) []Record {
	records := make([]Record, 0, len(results))
	for _, r := range results {
		rec := Record{
			DeveloperID:        r.DeveloperID,
			Score:              Decimal(r.Score),
			Components:         make(map[string]Decimal, len(r.Components)),
			TopLanguages:       contributions(r.TopLanguages),
			TopIdentifiers:     contributions(r.TopIdentifiers),
			TopRepositories:    make([]RepositoryActivity, 0, len(r.TopRepositories)),
			SharedRepositories: append([]string{}, r.SharedRepositories...),
		}
		for name, score := range r.Components {
			rec.Components[name] = Decimal(score)
		}
		for _, repo := range r.TopRepositories {
			rec.TopRepositories = append(rec.TopRepositories, RepositoryActivity{Repository: repo.Repository, Files: repo.Files})
		}
		records = append(records, rec)
	}
	return records
}

func contributions(in []analysis.Contributor) []Contribution {
	out := make([]Contribution, 0, len(in))
	for _, c := range in {
		out = append(out, Contribution{Name: c.Name, Contribution: Decimal(c.Contribution)})
	}
	return out
}

var bufferPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// Marshal renders records as an indented JSON array with a trailing newline
func Marshal(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", Indent)
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Write renders records to w
func Write(w io.Writer, records []Record) error {
	data, err := Marshal(records)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile renders records to path, creating parent directories
func WriteFile(path string, records []Record) error {
	data, err := Marshal(records)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// Decode reads records previously produced by Write
func Decode(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	return records, nil
}

// ReadFile reads records previously produced by WriteFile
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// ExportPath returns <dir>/similar/<source>.json with path separators in the
// developer id replaced.
func ExportPath(dir, source string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(source)
	return filepath.Join(dir, "similar", name+".json")
}
