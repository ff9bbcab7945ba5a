package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerReplaceSortsAscending(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var l Ledger
	l.Replace([]Message{
		{Content: "c", CreatedAt: base.Add(2 * time.Minute)},
		{Content: "a", CreatedAt: base},
		{Content: "b", CreatedAt: base.Add(time.Minute)},
	})

	got := l.Messages()
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Content)
	assert.Equal(t, "b", got[1].Content)
	assert.Equal(t, "c", got[2].Content)
}

func TestLedgerReplaceStableOnEqualTimestamps(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var l Ledger
	l.Replace([]Message{
		{Content: "first", CreatedAt: ts},
		{Content: "second", CreatedAt: ts},
		{Content: "third", CreatedAt: ts},
	})

	got := l.Messages()
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "second", got[1].Content)
	assert.Equal(t, "third", got[2].Content)
}

func TestLedgerReplaceDoesNotAliasInput(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	input := []Message{
		{Content: "later", CreatedAt: base.Add(time.Hour)},
		{Content: "earlier", CreatedAt: base},
	}
	var l Ledger
	l.Replace(input)

	assert.Equal(t, "later", input[0].Content, "caller's slice must stay untouched")
	assert.Equal(t, "earlier", l.Messages()[0].Content)
}

func TestLedgerAppendAndClear(t *testing.T) {
	var l Ledger
	l.Append(Message{Content: "one"})
	l.Append(Message{Content: "two"})
	assert.Equal(t, 2, l.Len())

	snapshot := l.Messages()
	snapshot[0].Content = "mutated"
	assert.Equal(t, "one", l.Messages()[0].Content)

	l.Clear()
	assert.Zero(t, l.Len())
	assert.Empty(t, l.Messages())
}
