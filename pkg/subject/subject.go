// Package subject reads the subject table that drives a normalization run.
package subject

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

// Recognized header columns.
const (
	ColumnID   = "ID"
	ColumnPath = "PATH"
)

var (
	// ErrSubjectFileMissing is returned when the subject table does not exist.
	ErrSubjectFileMissing = errors.New("subject file does not exist")
	// ErrNoSubjects is returned when the table has a header but no rows.
	ErrNoSubjects = errors.New("no subjects")
	// ErrInvalidID is returned for identifiers that cannot name a DAG job or
	// a file.
	ErrInvalidID = errors.New("invalid subject identifier")
)

var validID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidID reports whether id is safe to embed in job names and file names.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// Subject is one scan to be normalized.
type Subject struct {
	ID   string `yaml:"id"`
	Path string `yaml:"path"`
}

// ReadFile parses the CSV subject table at path.
func ReadFile(path string) ([]Subject, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSubjectFileMissing, path)
		}
		return nil, fmt.Errorf("open subject file %s: %w", path, err)
	}
	defer f.Close()

	subjects, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return subjects, nil
}

// Read parses a CSV subject table. A malformed row fails the whole table.
func Read(r io.Reader) ([]Subject, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	idCol, pathCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case ColumnID:
			idCol = i
		case ColumnPath:
			pathCol = i
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("header is missing column %q", ColumnID)
	}
	if pathCol < 0 {
		return nil, fmt.Errorf("header is missing column %q", ColumnPath)
	}

	var subjects []Subject
	seen := make(map[string]int)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := reader.FieldPos(0)
		id := field(record, idCol)
		path := field(record, pathCol)
		if id == "" {
			return nil, fmt.Errorf("line %d: missing %s", line, ColumnID)
		}
		if !ValidID(id) {
			return nil, fmt.Errorf("line %d: %w %q: only letters, digits, '.', '_' and '-' are allowed", line, ErrInvalidID, id)
		}
		if path == "" {
			return nil, fmt.Errorf("line %d: subject %s is missing %s", line, id, ColumnPath)
		}
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("line %d: duplicate subject %s (first seen on line %d)", line, id, prev)
		}
		seen[id] = line
		subjects = append(subjects, Subject{ID: id, Path: path})
	}
	if len(subjects) == 0 {
		return nil, ErrNoSubjects
	}
	return subjects, nil
}

// IDs returns the subject identifiers in table order.
func IDs(subjects []Subject) []string {
	ids := make([]string, len(subjects))
	for i, s := range subjects {
		ids[i] = s.ID
	}
	return ids
}

func field(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
