package msg

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(t *testing.T, topic string, v any) Record {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return Record{Topic: topic, Value: data}
}

func TestVerifier_Clean(t *testing.T) {
	v := NewVerifier()
	v.Observe(rec(t, TopicQuotes, QuoteMsg{EventID: "Q:AAPL:1", Symbol: "AAPL", Sequence: 1}))
	v.Observe(rec(t, TopicQuotes, QuoteMsg{EventID: "Q:AAPL:2", Symbol: "AAPL", Sequence: 2}))
	v.Observe(rec(t, TopicQuotes, QuoteMsg{EventID: "Q:MSFT:1", Symbol: "MSFT", Sequence: 1}))
	v.Observe(rec(t, TopicAggregates, AggregateMsg{EventID: "A:AAPL:1000", Symbol: "AAPL"}))

	r := v.Report()
	assert.True(t, r.Passed())
	assert.Equal(t, 4, r.Total)
	assert.Equal(t, 4, r.Unique)
	assert.Zero(t, r.Regressions)
}

func TestVerifier_DuplicatesAndRegressions(t *testing.T) {
	v := NewVerifier()
	v.Observe(rec(t, TopicTrades, TradeMsg{EventID: "T:IBM:5", Symbol: "IBM", Sequence: 5}))
	v.Observe(rec(t, TopicTrades, TradeMsg{EventID: "T:IBM:5", Symbol: "IBM", Sequence: 5}))
	v.Observe(rec(t, TopicTrades, TradeMsg{EventID: "T:IBM:4", Symbol: "IBM", Sequence: 4}))
	v.Observe(Record{Topic: TopicTrades, Value: []byte("not json")})

	r := v.Report()
	assert.False(t, r.Passed())
	assert.Equal(t, []string{"T:IBM:5"}, r.DuplicateIDs())
	assert.Equal(t, 2, r.Duplicates["T:IBM:5"])
	assert.Equal(t, 1, r.Regressions, "the duplicate itself is not counted as a regression")
	assert.Equal(t, 1, r.Malformed)
	assert.Equal(t, 4, r.Total)
}
