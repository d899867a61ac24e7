package db

import (
	"errors"
	"strconv"
	"strings"
)

// IndexFieldType enumerates supported index field types.
type IndexFieldType int

const (
	// IndexFieldText is an analyzed full-text field.
	IndexFieldText IndexFieldType = iota
	// IndexFieldTag is an exact-match field.
	IndexFieldTag
)

// IndexField describes one searchable document path.
type IndexField struct {
	Path   string  // dotted document path, e.g. address.postalCode
	Alias  string  // identifier used in queries; derived from Path when empty
	Type   IndexFieldType
	Weight float64 // TEXT only; zero means 1
}

// Name returns the query identifier of the field.
func (f *IndexField) Name() string {
	if f.Alias != "" {
		return f.Alias
	}
	return FieldAlias(f.Path)
}

// FieldAlias turns a dotted path into a query identifier (address.postalCode -> address_postalCode).
func FieldAlias(path string) string {
	return strings.ReplaceAll(path, ".", "_")
}

// IndexDefinition is a complete search index definition.
type IndexDefinition struct {
	Name   string
	Prefix string // key prefix of indexed documents
	Fields []IndexField
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool)
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Path == "" {
			return errors.New("field path is required at index " + strconv.Itoa(i))
		}
		key := f.Name()
		if !IsValidIdentifier(key) {
			return errors.New("field alias contains invalid characters: " + key)
		}
		if seen[key] {
			return errors.New("duplicate field name: " + key)
		}
		seen[key] = true

		if f.Weight < 0 {
			return errors.New("negative weight for field " + key)
		}
	}

	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
