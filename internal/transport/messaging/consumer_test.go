package messaging

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recherche/internal/async"
	"github.com/kailas-cloud/recherche/internal/domain"
	"github.com/kailas-cloud/recherche/internal/domain/person"
)

// --- Mocks ---

type mockIndexer struct {
	err     error
	indexed []person.Person
}

func (m *mockIndexer) Index(_ context.Context, p person.Person) *async.Future[domain.IndexOutcome] {
	if m.err != nil {
		return async.Failed[domain.IndexOutcome](m.err)
	}
	m.indexed = append(m.indexed, p)
	return async.Completed(domain.IndexOutcome{ID: p.Key(), Version: 1, Result: domain.ResultCreated})
}

// --- Tests ---

func TestHandle_IndexesEvent(t *testing.T) {
	idx := &mockIndexer{}
	c := NewConsumer(Config{}, idx, zap.NewNop())

	payload := `{"id":42,"nss":"756.1234.5678.97","lastName":"Favre","firstName":"Luc","birthDate":"1975-06-30"}`
	if err := c.Handle(context.Background(), []byte(payload)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(idx.indexed) != 1 {
		t.Fatalf("indexed %d persons, want 1", len(idx.indexed))
	}
	p := idx.indexed[0]
	if p.Key() != "p42" || p.LastName != "Favre" || p.NSS != "756.1234.5678.97" {
		t.Errorf("indexed person = %+v", p)
	}
}

func TestHandle_MalformedPayload(t *testing.T) {
	idx := &mockIndexer{}
	c := NewConsumer(Config{}, idx, zap.NewNop())

	for _, payload := range []string{`not json`, `{"lastName":"Favre"}`} {
		err := c.Handle(context.Background(), []byte(payload))
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("Handle(%q) err = %v, want ErrInvalidArgument", payload, err)
		}
	}
	if len(idx.indexed) != 0 {
		t.Errorf("malformed payloads were indexed: %+v", idx.indexed)
	}
}

func TestHandle_IndexFailure(t *testing.T) {
	boom := errors.New("backend down")
	c := NewConsumer(Config{}, &mockIndexer{err: boom}, zap.NewNop())

	err := c.Handle(context.Background(), []byte(`{"id":7}`))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if errors.Is(err, domain.ErrInvalidArgument) {
		t.Error("backend failure must stay retryable")
	}
}

func TestPing_NotConnected(t *testing.T) {
	c := NewConsumer(Config{}, &mockIndexer{}, zap.NewNop())
	if err := c.Ping(context.Background()); err == nil {
		t.Error("Ping before Connect should fail")
	}
	if err := c.Start(context.Background()); err == nil {
		t.Error("Start before Connect should fail")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close before Connect: %v", err)
	}
}
