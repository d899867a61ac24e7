// Package person holds the indexed person document and the events that feed it.
package person

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/recherche/internal/domain"
)

// Address is the postal address sub-record.
type Address struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	PostalCode string `json:"postalCode"`
	Locality   string `json:"locality"`
}

// Employer is the employer sub-record. IDE is the Swiss enterprise identifier (CHE-XXX.XXX.XXX).
type Employer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	URL   string `json:"url,omitempty"`
	IDE   string `json:"ide"`
}

// Person is the document stored in and returned by the search backend.
// Username is the identity key.
type Person struct {
	Address   Address  `json:"address"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email"`
	WorkEmail string   `json:"workEmail,omitempty"`
	Username  string   `json:"username"`
	Password  string   `json:"password,omitempty"`
	Sex       string   `json:"sex"`
	NSS       string   `json:"nss"`
	Phone     string   `json:"phone"`
	BirthDate string   `json:"birthDate"`
	Employer  Employer `json:"employer"`
}

// Key returns the identity key used as backend document id.
func (p Person) Key() string { return p.Username }

// Encode serializes the person to its backend JSON representation.
func (p Person) Encode() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode person %q: %w", p.Username, err)
	}
	return b, nil
}

// Decode parses a backend JSON payload. A payload without identity key is rejected.
func Decode(data []byte) (Person, error) {
	var p Person
	if err := json.Unmarshal(data, &p); err != nil {
		return Person{}, fmt.Errorf("decode person: %w", err)
	}
	if p.Username == "" {
		return Person{}, errors.New("decode person: missing username")
	}
	return p, nil
}

// Validate checks the mandatory fields of an externally supplied person.
func (p Person) Validate() error {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("address.street", p.Address.Street)
	check("address.number", p.Address.Number)
	check("address.postalCode", p.Address.PostalCode)
	check("address.locality", p.Address.Locality)
	check("firstName", p.FirstName)
	check("lastName", p.LastName)
	check("email", p.Email)
	check("username", p.Username)
	check("sex", p.Sex)
	check("nss", p.NSS)
	check("phone", p.Phone)
	check("birthDate", p.BirthDate)
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrInvalidArgument, strings.Join(missing, ", "))
	}
	return nil
}
