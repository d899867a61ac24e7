package load

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

func TestWindower(t *testing.T) {
	w := newWindower(2, t0, 100*time.Millisecond)
	var got []Sample
	got = append(got, w.observe(at(10))...)
	got = append(got, w.observe(at(50))...)
	got = append(got, w.observe(at(120))...)
	// Nothing completes between 200ms and 400ms.
	got = append(got, w.advance(at(410))...)
	got = append(got, w.observe(at(430))...)
	got = append(got, w.flush(at(450))...)

	want := []int{2, 1, 0, 0, 1}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d: %+v", len(got), len(want), got)
	}
	total := 0
	for i, s := range got {
		if s.Count != want[i] {
			t.Errorf("sample %d count = %d, want %d", i, s.Count, want[i])
		}
		if s.Level != 2 {
			t.Errorf("sample %d level = %d", i, s.Level)
		}
		if i > 0 && !s.Start.Equal(got[i-1].End) {
			t.Errorf("sample %d starts at %v, previous ended at %v", i, s.Start, got[i-1].End)
		}
		total += s.Count
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	if !got[0].Start.Equal(t0) {
		t.Errorf("first window starts at %v, want level start", got[0].Start)
	}
	last := got[len(got)-1]
	if !last.End.Equal(at(450)) || last.Width() != 50*time.Millisecond {
		t.Errorf("last window = [%v, %v), want partial window ending at flush", last.Start, last.End)
	}
}

func TestWindower_FlushOnBoundary(t *testing.T) {
	w := newWindower(0, t0, 100*time.Millisecond)
	w.observe(at(30))
	got := w.flush(at(100))
	if len(got) != 1 || got[0].Count != 1 || !got[0].End.Equal(at(100)) {
		t.Fatalf("flush = %+v, want one full window", got)
	}
}

func TestWindower_FlushEmpty(t *testing.T) {
	w := newWindower(0, t0, time.Second)
	if got := w.flush(t0); len(got) != 0 {
		t.Errorf("flush of an empty zero-length level = %+v", got)
	}
}

func TestConcurrencies(t *testing.T) {
	tests := []struct {
		levels, step int
		want         []int
	}{
		{4, 10, []int{1, 10, 20, 30}},
		{3, 1, []int{1, 1, 2}},
		{1, 10, []int{1}},
		{0, 10, []int{}},
	}
	for _, tt := range tests {
		got := Concurrencies(tt.levels, tt.step)
		if len(got) != len(tt.want) {
			t.Errorf("Concurrencies(%d, %d) = %v, want %v", tt.levels, tt.step, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Concurrencies(%d, %d) = %v, want %v", tt.levels, tt.step, got, tt.want)
				break
			}
		}
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.BatchSize != 5000 || cfg.Step != 10 || cfg.Window != time.Second || cfg.Levels != 10 {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	bad := []Config{
		{BatchSize: -1, Levels: 1, Step: 1, Window: time.Second},
		{BatchSize: 1, Levels: -1, Step: 1, Window: time.Second},
		{BatchSize: 1, Levels: 1, Step: -1, Window: time.Second},
		{BatchSize: 1, Levels: 1, Step: 1, Window: -time.Second},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", c)
		}
	}
}
