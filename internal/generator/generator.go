// Package generator produces synthetic person documents for load runs.
package generator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/recherche/internal/domain/person"
)

const (
	suffixMin = 1_000_000
	suffixMax = 8_999_999
	// suffixDigits is the width of every suffix in [suffixMin, suffixMax].
	suffixDigits = 7

	defaultWorkers = 4
)

var (
	birthFrom = time.Date(1930, time.January, 1, 0, 0, 0, 0, time.UTC)
	birthTo   = time.Date(2005, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// Generate builds one person from f. The result depends only on the state of f.
func Generate(f *gofakeit.Faker) person.Person {
	first, last := f.FirstName(), f.LastName()
	handle := slug(string([]rune(first)[:1]) + last)
	company := f.Company()
	domain := slug(company) + ".ch"
	employer := person.Employer{
		Name:  company,
		Email: "info@" + domain,
		URL:   "https://www." + domain,
		IDE:   fmt.Sprintf("CHE-%03d.%03d.%03d", f.IntRange(100, 999), f.IntRange(100, 999), f.IntRange(100, 999)),
	}

	return person.Person{
		Address: person.Address{
			Street:     f.StreetName(),
			Number:     f.StreetNumber(),
			Complement: complement(f),
			PostalCode: fmt.Sprintf("%04d", f.IntRange(1000, 9658)),
			Locality:   f.City(),
		},
		FirstName: first,
		LastName:  last,
		Email:     fmt.Sprintf("%s.%s@%s", slug(first), slug(last), f.DomainName()),
		WorkEmail: fmt.Sprintf("%s@%s", handle, domain),
		Username:  handle + suffix(f),
		Password:  f.Password(true, true, true, false, false, 12),
		Sex:       f.Gender(),
		NSS:       fmt.Sprintf("756.%04d.%04d.%02d", f.IntRange(1000, 9999), f.IntRange(1000, 9999), f.IntRange(10, 99)),
		Phone:     f.Phone(),
		BirthDate: f.DateRange(birthFrom, birthTo).Format(time.DateOnly),
		Employer:  employer,
	}
}

func complement(f *gofakeit.Faker) string {
	if f.IntRange(0, 3) > 0 {
		return ""
	}
	return string(rune('a' + f.IntRange(0, 3)))
}

func suffix(f *gofakeit.Faker) string {
	return strconv.Itoa(f.IntRange(suffixMin, suffixMax))
}

// rekey draws a new numeric suffix for p, keeping its handle.
func rekey(f *gofakeit.Faker, p *person.Person) {
	handle := p.Username[:len(p.Username)-suffixDigits]
	p.Username = handle + suffix(f)
}

// slug keeps the lowercase ASCII letters and digits of s.
func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "x"
	}
	return b.String()
}

// Generator streams persons from a fixed pool of workers, each owning its own Faker.
type Generator struct {
	workers int
	seed    uint64
	seeded  bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes runs reproducible: worker i draws from seed+i.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.seed = seed
		g.seeded = true
	}
}

// New creates a generator with the given number of workers (<= 0 means 4).
func New(workers int, opts ...Option) *Generator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	g := &Generator{workers: workers}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Generator) faker(i int) *gofakeit.Faker {
	if !g.seeded {
		return gofakeit.New(0)
	}
	return gofakeit.New(g.seed + uint64(i))
}

// keySet records the identity keys issued by one stream.
type keySet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func (k *keySet) claim(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.seen[key]; ok {
		return false
	}
	k.seen[key] = struct{}{}
	return true
}

// Stream returns an infinite sequence of persons. Generation is paced by the consumer.
// Each call starts a fresh sequence whose identity keys never repeat. The channel is
// closed once ctx is done and every worker has exited.
//
// Uniqueness is tracked in memory: the stream keeps one key per emitted person (tens of
// bytes each) until ctx is done, so a stream of n persons holds O(n) memory.
func (g *Generator) Stream(ctx context.Context) <-chan person.Person {
	out := make(chan person.Person)
	keys := &keySet{seen: make(map[string]struct{})}
	eg, ctx := errgroup.WithContext(ctx)
	for i := range g.workers {
		f := g.faker(i)
		eg.Go(func() error {
			for {
				p := Generate(f)
				for !keys.claim(p.Username) {
					rekey(f, &p)
				}
				select {
				case out <- p:
				case <-ctx.Done():
					return nil
				}
			}
		})
	}
	go func() {
		_ = eg.Wait()
		close(out)
	}()
	return out
}

// Take returns the first n persons of a fresh stream. It stops early when ctx is done.
func (g *Generator) Take(ctx context.Context, n int) ([]person.Person, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	out := make([]person.Person, 0, n)
	stream := g.Stream(ctx)
	for len(out) < n {
		select {
		case p, ok := <-stream:
			if !ok {
				return out, ctx.Err()
			}
			out = append(out, p)
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out, nil
}
