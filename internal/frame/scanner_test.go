package frame

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanner_YieldsEveryObject(t *testing.T) {
	objects := []string{
		`{"ev":"Q","sym":"MSFT","bp":1.5}`,
		`{"ev":"T","sym":"AAPL","c":[1,2,[3]],"n":{"a":{"b":[]}}}`,
		`{"ev":"status","message":"braces } { ] [ inside \"quoted\" text"}`,
		`{"ev":"T","sym":"X","i":"a\\"}`,
	}
	buf := []byte("[" + objects[0] + "," + objects[1] + " ,\n" + objects[2] + "," + objects[3] + "]")

	s := NewScanner(buf)
	var got []string
	for s.Next() {
		span := s.Span()
		assert.True(t, json.Valid(span), string(span))
		got = append(got, string(span))
	}
	require.NoError(t, s.Err())
	assert.Equal(t, objects, got)
}

func TestScanner_SpansAreSubslices(t *testing.T) {
	buf := []byte(`[{"a":1},{"b":2},{"c":3}]`)

	ranges, err := Spans(buf)
	require.NoError(t, err)
	require.Len(t, ranges, 3)
	assert.Equal(t, `{"a":1}`, string(buf[ranges[0].Start:ranges[0].End]))
	assert.Equal(t, `{"b":2}`, string(buf[ranges[1].Start:ranges[1].End]))
	assert.Equal(t, `{"c":3}`, string(buf[ranges[2].Start:ranges[2].End]))
}

func TestScanner_Restartable(t *testing.T) {
	buf := []byte(`[{"a":1},{"b":{"c":[1,2]}}]`)

	first, err := Spans(buf)
	require.NoError(t, err)

	s := NewScanner(buf)
	for s.Next() {
	}
	s.Reset(buf)
	var again []Range
	for s.Next() {
		start, end := s.Range()
		again = append(again, Range{Start: start, End: end})
	}
	require.NoError(t, s.Err())
	assert.Equal(t, first, again)
}

func TestScanner_SkipsNonObjects(t *testing.T) {
	ranges, err := Spans([]byte(`[1, "x", true, null, [{"nested":1}], {"a":1}]`))
	require.NoError(t, err)
	require.Len(t, ranges, 1)
}

func TestScanner_Empty(t *testing.T) {
	ranges, err := Spans([]byte(" [ ] "))
	require.NoError(t, err)
	assert.Empty(t, ranges)
}

func TestScanner_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		buf   string
		spans int
	}{
		{"not an array", `{"ev":"Q"}`, 0},
		{"empty buffer", ``, 0},
		{"unterminated array", `[{"a":1}`, 1},
		{"unterminated object", `[{"a":1},{"b":2`, 1},
		{"unterminated nested", `[{"a":[1,2}]`, 0},
		{"unterminated string", `[{"a":"abc}]`, 0},
		{"stray close", `[}]`, 0},
		{"missing comma", `[{"a":1} {"b":2}]`, 1},
		{"missing comma after scalar", `[1 {"a":1}]`, 0},
		{"doubled comma", `[{"a":1},,]`, 1},
		{"trailing comma", `[{"a":1},]`, 1},
		{"leading comma", `[,{"a":1}]`, 0},
		{"data after close", `[{"a":1}]garbage`, 1},
		{"second array", `[{"a":1}][{"b":2}]`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranges, err := Spans([]byte(tt.buf))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedFrame)
			assert.Len(t, ranges, tt.spans)

			var mfe *MalformedFrameError
			assert.ErrorAs(t, err, &mfe)
		})
	}
}

func TestScanner_TrailingWhitespaceAllowed(t *testing.T) {
	ranges, err := Spans([]byte("  [ {\"a\":1} , {\"b\":2} ]\r\n"))
	require.NoError(t, err)
	assert.Len(t, ranges, 2)

	ranges, err = Spans([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, ranges)
}

func TestScanner_RemainingAfterTrailingData(t *testing.T) {
	s := NewScanner([]byte(`[{"a":1}] x`))
	require.True(t, s.Next())
	require.False(t, s.Next())
	assert.ErrorIs(t, s.Err(), ErrMalformedFrame)
	assert.Equal(t, "x", string(s.Remaining()))
}

func TestDiscriminant(t *testing.T) {
	tests := []struct {
		span string
		want byte
		ok   bool
	}{
		{`{"ev":"Q","sym":"A"}`, 'Q', true},
		{`{"ev":"status"}`, 's', true},
		{`{ "ev":"status","status":"connected"}`, 's', true},
		{`{"sym":"A","ev":"T"}`, 'T', true},
		{`{"sym":"A"}`, 0, false},
		{`{"ev":1}`, 0, false},
	}

	for _, tt := range tests {
		got, ok := Discriminant([]byte(tt.span))
		assert.Equal(t, tt.ok, ok, tt.span)
		assert.Equal(t, tt.want, got, tt.span)
	}
}
