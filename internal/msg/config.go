package msg

// Topic names
const (
	TopicQuotes     = "market.quotes"
	TopicTrades     = "market.trades"
	TopicAggregates = "market.aggregates"
)

// Topics lists every topic the stream client publishes to
func Topics() []string {
	return []string{TopicQuotes, TopicTrades, TopicAggregates}
}
