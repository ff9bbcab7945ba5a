package chat

import (
	"sort"
)

// Ledger is the ordered message sequence for the active session. It is
// append-only from the UI's perspective; a history fetch replaces it
// wholesale. Only the reconciler mutates it.
type Ledger struct {
	messages []Message
}

// Append adds one message to the end of the ledger.
func (l *Ledger) Append(m Message) {
	l.messages = append(l.messages, m)
}

// Replace swaps in a full authoritative history, sorted ascending by
// CreatedAt. The sort is stable so messages sharing a timestamp keep the
// order the backend returned them in.
func (l *Ledger) Replace(messages []Message) {
	sorted := make([]Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	l.messages = sorted
}

// Clear empties the ledger.
func (l *Ledger) Clear() {
	l.messages = nil
}

// Messages returns a copy of the ledger contents.
func (l *Ledger) Messages() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len reports the number of messages.
func (l *Ledger) Len() int {
	return len(l.messages)
}
