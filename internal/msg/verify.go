package msg

import (
	"encoding/json"
	"sort"
)

// Verifier checks a consumed tape for duplicate event IDs and per-symbol sequence regressions
type Verifier struct {
	counts    map[string]int
	lastSeq   map[string]int64 // topic/symbol -> last sequence
	total     int
	malformed int
	regressed int
}

// VerifyReport summarises what a Verifier has seen
type VerifyReport struct {
	Total       int
	Unique      int
	Malformed   int
	Regressions int
	Duplicates  map[string]int
}

// Passed reports whether the tape had no duplicates
func (r VerifyReport) Passed() bool {
	return len(r.Duplicates) == 0
}

// DuplicateIDs returns the duplicated event IDs in sorted order
func (r VerifyReport) DuplicateIDs() []string {
	ids := make([]string, 0, len(r.Duplicates))
	for id := range r.Duplicates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewVerifier creates an empty verifier
func NewVerifier() *Verifier {
	return &Verifier{
		counts:  make(map[string]int),
		lastSeq: make(map[string]int64),
	}
}

// Observe records one consumed record
func (v *Verifier) Observe(rec Record) {
	v.total++

	var m struct {
		Envelope
		Sequence *int64 `json:"sequence"`
	}
	if err := json.Unmarshal(rec.Value, &m); err != nil || m.EventID == "" {
		v.malformed++
		return
	}
	v.counts[m.EventID]++

	// aggregates carry no sequence
	if m.Sequence == nil || v.counts[m.EventID] > 1 {
		return
	}
	key := rec.Topic + "/" + m.Symbol
	if last, ok := v.lastSeq[key]; ok && *m.Sequence <= last {
		v.regressed++
	}
	v.lastSeq[key] = *m.Sequence
}

// Report returns the current results
func (v *Verifier) Report() VerifyReport {
	r := VerifyReport{
		Total:       v.total,
		Unique:      len(v.counts),
		Malformed:   v.malformed,
		Regressions: v.regressed,
		Duplicates:  make(map[string]int),
	}
	for id, n := range v.counts {
		if n > 1 {
			r.Duplicates[id] = n
		}
	}
	return r
}
