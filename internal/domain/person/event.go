package person

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/recherche/internal/domain"
)

// CreatedEvent is published upstream when a person record is created.
type CreatedEvent struct {
	ID        int64  `json:"id"`
	NSS       string `json:"nss"`
	LastName  string `json:"lastName"`
	FirstName string `json:"firstName"`
	BirthDate string `json:"birthDate"`
}

// DecodeCreatedEvent parses an event payload.
func DecodeCreatedEvent(data []byte) (CreatedEvent, error) {
	var e CreatedEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return CreatedEvent{}, fmt.Errorf("%w: decode created event: %v", domain.ErrInvalidArgument, err)
	}
	if e.ID <= 0 {
		return CreatedEvent{}, fmt.Errorf("%w: created event without id", domain.ErrInvalidArgument)
	}
	return e, nil
}

// ToPerson projects the event onto an indexable person. The identity key is derived from the event id.
func (e CreatedEvent) ToPerson() Person {
	return Person{
		Username:  "p" + strconv.FormatInt(e.ID, 10),
		NSS:       e.NSS,
		LastName:  e.LastName,
		FirstName: e.FirstName,
		BirthDate: e.BirthDate,
	}
}
