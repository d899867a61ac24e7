package bleve

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/kailas-cloud/recherche/internal/db"
)

// buildMapping maps each definition field at its dotted path. Unlisted fields are
// not indexed; the raw document and its version are stored but not searchable.
func buildMapping(def *db.IndexDefinition) *mapping.IndexMappingImpl {
	root := bleve.NewDocumentStaticMapping()

	for i := range def.Fields {
		f := &def.Fields[i]
		var fm *mapping.FieldMapping
		switch f.Type {
		case db.IndexFieldTag:
			fm = bleve.NewKeywordFieldMapping()
		default:
			fm = bleve.NewTextFieldMapping()
		}
		fm.Store = false
		fm.IncludeInAll = false

		parts := strings.Split(f.Path, ".")
		parent := root
		for _, p := range parts[:len(parts)-1] {
			parent = subDocument(parent, p)
		}
		parent.AddFieldMappingsAt(parts[len(parts)-1], fm)
	}

	src := bleve.NewTextFieldMapping()
	src.Index = false
	src.Store = true
	src.IncludeInAll = false
	src.IncludeTermVectors = false
	src.DocValues = false
	root.AddFieldMappingsAt(sourceField, src)

	ver := bleve.NewNumericFieldMapping()
	ver.Index = false
	ver.Store = true
	ver.IncludeInAll = false
	ver.DocValues = false
	root.AddFieldMappingsAt(versionField, ver)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = root
	return m
}

func subDocument(parent *mapping.DocumentMapping, name string) *mapping.DocumentMapping {
	if sub, ok := parent.Properties[name]; ok {
		return sub
	}
	sub := bleve.NewDocumentStaticMapping()
	parent.AddSubDocumentMapping(name, sub)
	return sub
}
