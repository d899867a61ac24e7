// Package bleve implements db.Store on an embedded bleve full-text index.
package bleve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/kailas-cloud/recherche/internal/db"
)

var _ db.Store = (*Store)(nil)

const (
	sourceField  = "__source"
	versionField = "__version"
)

// Config selects where indexes live. An empty Dir keeps everything in memory.
type Config struct {
	Dir string
}

// Store keeps one bleve index per index name.
type Store struct {
	cfg Config

	mu      sync.RWMutex
	indexes map[string]*index
	closed  bool
}

type index struct {
	// mu serializes writes so versions grow by exactly one per write.
	mu  sync.Mutex
	idx bleve.Index
}

// NewStore creates an empty store.
func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg, indexes: make(map[string]*index)}
}

// Ping fails once the store is closed.
func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &db.Error{Op: db.OpPing, Err: db.ErrClosed}
	}
	return nil
}

// WaitForReady returns immediately: an embedded store is ready once constructed.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// Close closes every index.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, ix := range s.indexes {
		_ = ix.idx.Close()
	}
}

// EnsureIndex opens or creates the index for def.
func (s *Store) EnsureIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return db.ErrClosed
	}
	if _, ok := s.indexes[def.Name]; ok {
		return nil
	}

	m := buildMapping(def)
	var (
		idx bleve.Index
		err error
	)
	if s.cfg.Dir == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		path := filepath.Join(s.cfg.Dir, def.Name+".bleve")
		if _, statErr := os.Stat(path); statErr == nil {
			idx, err = bleve.Open(path)
		} else {
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	s.indexes[def.Name] = &index{idx: idx}
	return nil
}

// DropIndex closes and forgets the index. On-disk data is removed.
func (s *Store) DropIndex(_ context.Context, name string) error {
	s.mu.Lock()
	ix, ok := s.indexes[name]
	delete(s.indexes, name)
	s.mu.Unlock()
	if !ok {
		return db.ErrIndexNotFound
	}
	if err := ix.idx.Close(); err != nil {
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	if s.cfg.Dir != "" {
		if err := os.RemoveAll(filepath.Join(s.cfg.Dir, name+".bleve")); err != nil {
			return &db.Error{Op: db.OpDropIndex, Err: err}
		}
	}
	return nil
}

func (s *Store) lookup(name string) (*index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, db.ErrClosed
	}
	ix, ok := s.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", db.ErrIndexNotFound, name)
	}
	return ix, nil
}

// Get reads one document by id.
func (s *Store) Get(ctx context.Context, name, id string) (*db.GetResponse, error) {
	ix, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	docs, err := ix.load(ctx, []string{id})
	if err != nil {
		return nil, &db.Error{Op: db.OpJSONGet, Err: err}
	}
	resp := &db.GetResponse{Index: name, ID: id}
	if d, ok := docs[id]; ok {
		resp.Found = true
		resp.Source = d.source
		resp.Version = d.version
	}
	return resp, nil
}

// Index upserts one document.
func (s *Store) Index(ctx context.Context, req *db.IndexRequest) (*db.IndexResponse, error) {
	ix, err := s.lookup(req.Index)
	if err != nil {
		return nil, err
	}
	data, err := indexable(req.Source)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", req.ID, err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	current, err := ix.load(ctx, []string{req.ID})
	if err != nil {
		return nil, &db.Error{Op: db.OpJSONGet, Err: err}
	}
	version := current[req.ID].version + 1
	data[versionField] = float64(version)
	if err := ix.idx.Index(req.ID, data); err != nil {
		return nil, &db.Error{Op: db.OpJSONSet, Err: err}
	}
	return &db.IndexResponse{Index: req.Index, ID: req.ID, Version: version, Result: resultFor(version)}, nil
}

// Bulk writes all decodable items in a single bleve batch.
func (s *Store) Bulk(ctx context.Context, req *db.BulkRequest) (*db.BulkResponse, error) {
	if len(req.Items) == 0 {
		return &db.BulkResponse{}, nil
	}
	ix, err := s.lookup(req.Index)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	ids := make([]string, len(req.Items))
	for i, it := range req.Items {
		ids[i] = it.ID
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	current, err := ix.load(ctx, ids)
	if err != nil {
		return nil, &db.Error{Op: db.OpJSONGet, Err: err}
	}

	items := make([]db.BulkItemResponse, len(req.Items))
	batch := ix.idx.NewBatch()
	pending := make(map[string]int64, len(req.Items))
	for i, it := range req.Items {
		items[i].ID = it.ID
		data, err := indexable(it.Source)
		if err != nil {
			items[i].Err = err
			continue
		}
		// Repeated ids within one batch keep counting from the previous item.
		version, seen := pending[it.ID]
		if !seen {
			version = current[it.ID].version
		}
		version++
		data[versionField] = float64(version)
		if err := batch.Index(it.ID, data); err != nil {
			items[i].Err = err
			continue
		}
		pending[it.ID] = version
		items[i].Version = version
		items[i].Result = resultFor(version)
	}
	if err := ix.idx.Batch(batch); err != nil {
		return nil, &db.Error{Op: db.OpJSONSet, Err: err}
	}
	return &db.BulkResponse{Took: time.Since(start), Items: items}, nil
}

type stored struct {
	source  []byte
	version int64
}

// load fetches stored source and version for ids that exist.
func (ix *index) load(ctx context.Context, ids []string) (map[string]stored, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery(ids), len(ids), 0, false)
	req.Fields = []string{sourceField, versionField}
	res, err := ix.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make(map[string]stored, len(res.Hits))
	for _, h := range res.Hits {
		d := stored{}
		if src, ok := h.Fields[sourceField].(string); ok {
			d.source = []byte(src)
		}
		if v, ok := h.Fields[versionField].(float64); ok {
			d.version = int64(v)
		}
		out[h.ID] = d
	}
	return out, nil
}

// indexable decodes a JSON object and attaches the raw payload as stored source.
func indexable(source []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(source, &data); err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}
	if data == nil {
		return nil, errors.New("decode source: not a JSON object")
	}
	data[sourceField] = string(source)
	return data, nil
}

func resultFor(version int64) string {
	if version == 1 {
		return db.ResultCreated
	}
	return db.ResultUpdated
}
