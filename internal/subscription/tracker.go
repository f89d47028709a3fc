package subscription

import (
	"sort"
	"sync"
)

// State is the lifecycle position of one channel-prefixed symbol
type State uint8

const (
	Unrequested State = iota
	Requested
	Confirmed
)

func (s State) String() string {
	switch s {
	case Requested:
		return "requested"
	case Confirmed:
		return "confirmed"
	default:
		return "unrequested"
	}
}

// Entry is a snapshot of one tracked symbol
type Entry struct {
	Symbol string
	State  State
}

// Tracker records which symbols have been requested and which the server has confirmed.
// Requests come from caller goroutines and confirmations from the receive loop, so every
// transition takes the same lock.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]State
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]State)}
}

// Request marks symbol as Requested. It returns false, and changes nothing, when the
// symbol is already Requested or Confirmed; only a true result should produce a command.
func (t *Tracker) Request(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[symbol]; ok {
		return false
	}
	t.entries[symbol] = Requested
	return true
}

// Confirm marks symbol as Confirmed whether or not it was requested first
func (t *Tracker) Confirm(symbol string) {
	t.mu.Lock()
	t.entries[symbol] = Confirmed
	t.mu.Unlock()
}

// Remove forgets symbol and reports whether it was tracked
func (t *Tracker) Remove(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.entries[symbol]
	delete(t.entries, symbol)
	return ok
}

// Withdraw forgets symbol only while it is still Requested, so that a request whose
// command never reached the server can be issued again
func (t *Tracker) Withdraw(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entries[symbol] != Requested {
		return false
	}
	delete(t.entries, symbol)
	return true
}

// State returns the current state of symbol
func (t *Tracker) State(symbol string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[symbol]
}

// IsSubscribed reports whether symbol is Confirmed
func (t *Tracker) IsSubscribed(symbol string) bool {
	return t.State(symbol) == Confirmed
}

// Len returns the number of tracked symbols
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Entries returns a snapshot sorted by symbol
func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	out := make([]Entry, 0, len(t.entries))
	for sym, st := range t.entries {
		out = append(out, Entry{Symbol: sym, State: st})
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Reset drops every entry and returns the symbols that were tracked, sorted
func (t *Tracker) Reset() []string {
	t.mu.Lock()
	dropped := make([]string, 0, len(t.entries))
	for sym := range t.entries {
		dropped = append(dropped, sym)
	}
	t.entries = make(map[string]State)
	t.mu.Unlock()

	sort.Strings(dropped)
	return dropped
}
