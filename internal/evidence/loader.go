package evidence

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/ZanzyTHEbar/simdev/internal/errors"
	"github.com/ZanzyTHEbar/simdev/internal/types"
)

// Format is the layout of an evidence file
type Format string

const (
	FormatDevInfo Format = "dev-info"
	FormatArray   Format = "array"
	FormatLines   Format = "jsonl"
	FormatRecord  Format = "record"
)

const maxLineSize = 16 << 20

// DevInfo is the legacy per-developer, per-repository summary:
// {email: {repo: {files: {...}, langs: {...}, identifiers: {...}}}}
type DevInfo map[string]map[string]RepositoryInfo

// RepositoryInfo is what one developer touched in one repository
type RepositoryInfo struct {
	Files       map[string]FileChange `json:"files"`
	Langs       map[string]int        `json:"langs"`
	Identifiers map[string]int        `json:"identifiers"`
	Imports     map[string]int        `json:"imports,omitempty"`
}

type FileChange struct {
	AddedLines   int `json:"added_lines"`
	DeletedLines int `json:"deleted_lines"`
}

// Load reads evidence from path, detecting the format from its content
func Load(path string) ([]types.Evidence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("evidence file", path)
		}
		return nil, apperrors.NewInternalError("failed to read evidence file", err)
	}
	return Parse(path, data)
}

// Parse decodes evidence; path is only used for error context and format hints
func Parse(path string, data []byte) ([]types.Evidence, error) {
	format, err := DetectFormat(path, data)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatLines:
		return parseLines(path, data)
	case FormatRecord:
		var rec types.Evidence
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, jsonError(path, data, 0, err)
		}
		return []types.Evidence{rec}, nil
	case FormatArray:
		var records []types.Evidence
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, jsonError(path, data, 0, err)
		}
		return records, nil
	default:
		var info DevInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return nil, jsonError(path, data, 0, err)
		}
		return FromDevInfo(info), nil
	}
}

// DetectFormat picks the layout: .jsonl and .ndjson files are JSON Lines, a
// leading '[' is an array, several concatenated objects are JSON Lines and a
// single object is dev-info unless it is one record with a developer_id.
func DetectFormat(path string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatLines, nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", apperrors.NewMalformedInputError(path, 1, 1, "empty evidence file", nil)
	}

	switch trimmed[0] {
	case '[':
		return FormatArray, nil
	case '{':
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		var first json.RawMessage
		if err := dec.Decode(&first); err != nil {
			// let the dev-info decoder report the position
			return FormatDevInfo, nil
		}
		rest := bytes.TrimSpace(trimmed[dec.InputOffset():])
		if len(rest) > 0 && rest[0] == '{' {
			return FormatLines, nil
		}
		if isEvidenceRecord(first) {
			return FormatRecord, nil
		}
		return FormatDevInfo, nil
	default:
		line, col := position(data, leadingSpace(data))
		return "", apperrors.NewMalformedInputError(path, line, col,
			fmt.Sprintf("unexpected character %q at start of evidence", trimmed[0]), nil)
	}
}

// isEvidenceRecord reports whether a lone object is a record rather than a
// dev-info mapping, whose values are always objects.
func isEvidenceRecord(raw json.RawMessage) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	id, ok := fields["developer_id"]
	if !ok {
		return false
	}
	id = bytes.TrimSpace(id)
	return len(id) == 0 || id[0] != '{'
}

func parseLines(path string, data []byte) ([]types.Evidence, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var records []types.Evidence
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec types.Evidence
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, jsonError(path, line, lineNo-1, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.NewMalformedInputError(path, lineNo+1, 0, "unreadable line", err)
	}
	return records, nil
}

// jsonError turns a decoding error into a MalformedInputError. lineOffset is
// added to the computed line so JSON Lines report file lines.
func jsonError(path string, data []byte, lineOffset int, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &syntaxErr):
		// Offset counts the offending byte as read, except at end of input
		offset := int(syntaxErr.Offset)
		if offset > 0 && !strings.HasPrefix(syntaxErr.Error(), "unexpected end") {
			offset--
		}
		line, col := position(data, offset)
		return apperrors.NewMalformedInputError(path, line+lineOffset, col, "invalid JSON", err)
	case errors.As(err, &typeErr):
		line, col := position(data, int(typeErr.Offset))
		msg := fmt.Sprintf("field %q has the wrong type", typeErr.Field)
		return apperrors.NewMalformedInputError(path, line+lineOffset, col, msg, err)
	default:
		return apperrors.NewMalformedInputError(path, lineOffset+1, 0, "invalid JSON", err)
	}
}

// position converts a byte offset into a 1-based line and column
func position(data []byte, offset int) (int, int) {
	if offset > len(data) {
		offset = len(data)
	}
	if offset < 0 {
		offset = 0
	}
	before := data[:offset]
	line := bytes.Count(before, []byte("\n")) + 1
	col := offset - bytes.LastIndexByte(before, '\n')
	return line, col
}

func leadingSpace(data []byte) int {
	return len(data) - len(bytes.TrimLeft(data, " \t\r\n"))
}

// FromDevInfo expands the legacy summary into evidence records. Each touched
// file becomes one unclassified record carrying its file id, so repository
// activity counts distinct files. Each language and token count becomes one
// record whose Occurrences carries the count.
func FromDevInfo(info DevInfo) []types.Evidence {
	var records []types.Evidence

	for _, dev := range sortedKeys(info) {
		repos := info[dev]
		for _, repo := range sortedKeys(repos) {
			ri := repos[repo]
			for _, file := range sortedKeys(ri.Files) {
				records = append(records, types.Evidence{
					DeveloperID:  dev,
					RepositoryID: repo,
					FileID:       file,
				})
			}
			for _, lang := range sortedKeys(ri.Langs) {
				if n := ri.Langs[lang]; n > 0 {
					records = append(records, types.Evidence{
						DeveloperID:  dev,
						RepositoryID: repo,
						Language:     lang,
						Occurrences:  n,
					})
				}
			}
			for _, ident := range sortedKeys(ri.Identifiers) {
				if n := ri.Identifiers[ident]; n > 0 {
					records = append(records, types.Evidence{
						DeveloperID:  dev,
						RepositoryID: repo,
						Identifiers:  []string{ident},
						Occurrences:  n,
					})
				}
			}
			for _, imp := range sortedKeys(ri.Imports) {
				if n := ri.Imports[imp]; n > 0 {
					records = append(records, types.Evidence{
						DeveloperID:  dev,
						RepositoryID: repo,
						Imports:      []string{imp},
						Occurrences:  n,
					})
				}
			}
		}
	}

	return records
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
