package msg

import "encoding/json"

// Record represents a consumed Kafka record
type Record struct {
	Topic     string
	Key       string
	Value     []byte
	Partition int32
	Offset    int64
	Timestamp int64
}

// Envelope carries the fields shared by every published message
type Envelope struct {
	EventID      string `json:"event_id"`
	Symbol       string `json:"symbol"`
	TsUnixMillis int64  `json:"ts_unix_millis"`
}

// Envelope decodes the shared header of the record value
func (r Record) Envelope() (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(r.Value, &e)
	return e, err
}
