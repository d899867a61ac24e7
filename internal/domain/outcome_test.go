package domain

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/recherche/internal/domain/batch"
)

func TestBulkOutcomeCounts(t *testing.T) {
	o := BulkOutcome{Items: []batch.Result{
		batch.NewOK("a", 1),
		batch.NewError("b", errors.New("boom")),
		batch.NewOK("c", 2),
	}}
	if o.Succeeded() != 2 {
		t.Errorf("Succeeded() = %d, want 2", o.Succeeded())
	}
	if o.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", o.Failed())
	}
}
