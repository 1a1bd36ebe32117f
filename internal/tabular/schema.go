package tabular

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

// ErrInvalidSchema is returned for empty schemas or duplicate field names.
var ErrInvalidSchema = errors.New("invalid schema")

// Schema is an ordered, duplicate-free list of field names. Rows are zipped
// onto it positionally. A Schema is immutable after construction.
type Schema struct {
	fields []string
	index  map[string]int
}

// NewSchema validates fields and builds a Schema.
func NewSchema(fields []string) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalidSchema)
	}

	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if f == "" {
			return nil, fmt.Errorf("%w: field %d is blank", ErrInvalidSchema, i+1)
		}
		if _, dup := index[f]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, f)
		}
		index[f] = i
	}

	return &Schema{fields: slices.Clone(fields), index: index}, nil
}

// DefaultSchema returns the built-in import registry layout.
func DefaultSchema() *Schema {
	s, err := NewSchema(importRegistryFields)
	if err != nil {
		panic(err)
	}
	return s
}

// LoadSchemaFile reads one field name per line. Blank lines and lines
// starting with # are ignored.
func LoadSchemaFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema file: %w", err)
	}
	defer f.Close()

	var fields []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields = append(fields, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	s, err := NewSchema(fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Width is the number of fields.
func (s *Schema) Width() int { return len(s.fields) }


// Field returns the name at position i.
func (s *Schema) Field(i int) string { return s.fields[i] }

// Index returns the position of name, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}
