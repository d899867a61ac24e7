package load

import "time"

// Sample is the number of completions observed in one throughput window of a level.
type Sample struct {
	Level int       `json:"level"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`
}

// Width returns the window length. Only the last window of a level may be shorter
// than the configured width.
func (s Sample) Width() time.Duration { return s.End.Sub(s.Start) }

// windower buckets completions into fixed windows anchored at the level start.
// Windows are contiguous; elapsed windows are closed even when nothing completed.
type windower struct {
	level int
	start time.Time
	width time.Duration
	index int
	count int
}

func newWindower(level int, start time.Time, width time.Duration) *windower {
	return &windower{level: level, start: start, width: width}
}

func (w *windower) bounds(i int) (time.Time, time.Time) {
	from := w.start.Add(time.Duration(i) * w.width)
	return from, from.Add(w.width)
}

// roll closes every window that ended at or before now.
func (w *windower) roll(now time.Time) []Sample {
	idx := int(now.Sub(w.start) / w.width)
	var out []Sample
	for w.index < idx {
		from, to := w.bounds(w.index)
		out = append(out, Sample{Level: w.level, Start: from, End: to, Count: w.count})
		w.index++
		w.count = 0
	}
	return out
}

// observe counts one completion seen at now.
func (w *windower) observe(now time.Time) []Sample {
	out := w.roll(now)
	w.count++
	return out
}

// advance closes elapsed windows without counting anything.
func (w *windower) advance(now time.Time) []Sample { return w.roll(now) }

// flush closes the remaining windows; the last one ends at end.
func (w *windower) flush(end time.Time) []Sample {
	out := w.roll(end)
	from, _ := w.bounds(w.index)
	if w.count > 0 || end.After(from) {
		out = append(out, Sample{Level: w.level, Start: from, End: end, Count: w.count})
		w.count = 0
	}
	return out
}
