package db

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/recherche/internal/domain/search/query"
)

// IndexBuilder is a fluent builder for index definitions.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix sets the key prefix of indexed documents.
func (b *IndexBuilder) Prefix(prefix string) *IndexBuilder {
	b.def.Prefix = prefix
	return b
}

// Text adds a TEXT field at path with weight.
func (b *IndexBuilder) Text(path string, weight float64) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Path: path, Type: IndexFieldText, Weight: weight})
	return b
}

// Tag adds a TAG field at path.
func (b *IndexBuilder) Tag(path string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Path: path, Type: IndexFieldTag})
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}

// MustBuild calls Build and panics on error.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// PersonIndex defines the person index: every searchable field as weighted TEXT
// plus the identity key as TAG.
func PersonIndex(name, prefix string, fields []query.Field) *IndexDefinition {
	b := NewIndex(name).Prefix(prefix)
	for _, f := range fields {
		b.Text(f.Path, f.Weight)
	}
	return b.Tag("username").MustBuild()
}

// String returns a debug representation resembling the FT.CREATE command.
func (idx *IndexDefinition) String() string {
	parts := []string{"FT.CREATE", idx.Name, "ON", "JSON"}
	if idx.Prefix != "" {
		parts = append(parts, "PREFIX", "1", idx.Prefix)
	}
	parts = append(parts, "SCHEMA")
	for i := range idx.Fields {
		f := &idx.Fields[i]
		parts = append(parts, "$."+f.Path, "AS", f.Name())
		switch f.Type {
		case IndexFieldTag:
			parts = append(parts, "TAG")
		case IndexFieldText:
			parts = append(parts, "TEXT")
			if f.Weight > 0 && f.Weight != 1 {
				parts = append(parts, "WEIGHT", strconv.FormatFloat(f.Weight, 'f', -1, 64))
			}
		}
	}
	return strings.Join(parts, " ")
}
