package frame

import (
	"errors"
	"fmt"
)

// ErrMalformedFrame is matched by every MalformedFrameError
var ErrMalformedFrame = errors.New("malformed frame")

// MalformedFrameError reports where structural scanning gave up
type MalformedFrameError struct {
	Offset int
	Reason string
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame at offset %d: %s", e.Offset, e.Reason)
}

func (e *MalformedFrameError) Is(target error) bool {
	return target == ErrMalformedFrame
}

// Scanner walks the top-level objects of a JSON array frame without building a tree.
// Elements that are not objects are skipped. Elements must be separated by exactly one
// comma and only whitespace may follow the closing ']'. A Scanner is not safe for
// concurrent use; Reset it to scan another frame or to rescan the same one.
type Scanner struct {
	buf     []byte
	pos     int
	start   int
	end     int
	started bool
	done    bool
	// needSep is set after an element, comma after a separator
	needSep bool
	comma   bool
	err     error
	stack   []byte
}

// NewScanner returns a scanner positioned before the first object of buf
func NewScanner(buf []byte) *Scanner {
	s := &Scanner{}
	s.Reset(buf)
	return s
}

// Reset rewinds the scanner onto buf, keeping its internal buffers
func (s *Scanner) Reset(buf []byte) {
	s.buf = buf
	s.pos = 0
	s.start, s.end = 0, 0
	s.started = false
	s.done = false
	s.needSep, s.comma = false, false
	s.err = nil
	s.stack = s.stack[:0]
}

// Next advances to the next object. It returns false at the end of the array or on error.
func (s *Scanner) Next() bool {
	if s.done {
		return false
	}
	if !s.started {
		s.skipSpace()
		if s.pos >= len(s.buf) || s.buf[s.pos] != '[' {
			return s.fail(s.pos, "frame does not open with '['")
		}
		s.pos++
		s.started = true
	}

	for {
		s.skipSpace()
		if s.pos >= len(s.buf) {
			return s.fail(s.pos, "unterminated array")
		}

		c := s.buf[s.pos]
		if s.needSep {
			switch c {
			case ']':
				return s.close()
			case ',':
				s.pos++
				s.needSep, s.comma = false, true
				continue
			default:
				return s.fail(s.pos, "missing ',' between elements")
			}
		}

		switch c {
		case ']':
			if s.comma {
				return s.fail(s.pos, "trailing ','")
			}
			return s.close()
		case ',':
			return s.fail(s.pos, "unexpected ','")
		case '{':
			start := s.pos
			end, ok := s.skipComposite()
			if !ok {
				return false
			}
			s.start, s.end = start, end
			s.pos = end
			s.needSep, s.comma = true, false
			return true
		case '[':
			end, ok := s.skipComposite()
			if !ok {
				return false
			}
			s.pos = end
		case '"':
			end, ok := s.skipString(s.pos + 1)
			if !ok {
				return s.fail(s.pos, "unterminated string")
			}
			s.pos = end
		case '}':
			return s.fail(s.pos, "unexpected '}'")
		default:
			s.skipScalar()
		}
		s.needSep, s.comma = true, false
	}
}

// close consumes the closing ']' and rejects anything but whitespace after it
func (s *Scanner) close() bool {
	s.pos++
	s.skipSpace()
	if s.pos < len(s.buf) {
		return s.fail(s.pos, "data after closing ']'")
	}
	s.done = true
	return false
}

// Span returns the bytes of the current object. The slice aliases the scanned buffer.
func (s *Scanner) Span() []byte {
	return s.buf[s.start:s.end]
}

// Range returns the half-open byte range of the current object
func (s *Scanner) Range() (start, end int) {
	return s.start, s.end
}

// Remaining returns the unscanned tail of the buffer. After a failure it starts at the
// element that could not be scanned.
func (s *Scanner) Remaining() []byte {
	if s.pos >= len(s.buf) {
		return nil
	}
	return s.buf[s.pos:]
}

// Err returns the error that stopped the scan, if any
func (s *Scanner) Err() error {
	return s.err
}

func (s *Scanner) fail(offset int, reason string) bool {
	s.err = &MalformedFrameError{Offset: offset, Reason: reason}
	s.done = true
	return false
}

func (s *Scanner) skipSpace() {
	for s.pos < len(s.buf) {
		switch s.buf[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

// skipComposite consumes the object or array at s.pos and returns the offset just past it
func (s *Scanner) skipComposite() (int, bool) {
	open := s.pos
	s.stack = s.stack[:0]

	for i := s.pos; i < len(s.buf); i++ {
		switch c := s.buf[i]; c {
		case '"':
			end, ok := s.skipString(i + 1)
			if !ok {
				return 0, s.fail(i, "unterminated string")
			}
			i = end - 1
		case '{', '[':
			s.stack = append(s.stack, c)
		case '}', ']':
			want := byte('{')
			if c == ']' {
				want = '['
			}
			if len(s.stack) == 0 || s.stack[len(s.stack)-1] != want {
				return 0, s.fail(i, fmt.Sprintf("mismatched '%c'", c))
			}
			s.stack = s.stack[:len(s.stack)-1]
			if len(s.stack) == 0 {
				return i + 1, true
			}
		}
	}

	return 0, s.fail(open, "unterminated structure")
}

// skipString returns the offset just past the closing quote of a string whose body starts at i
func (s *Scanner) skipString(i int) (int, bool) {
	for ; i < len(s.buf); i++ {
		switch s.buf[i] {
		case '\\':
			i++
		case '"':
			return i + 1, true
		}
	}
	return 0, false
}

func (s *Scanner) skipScalar() {
	for s.pos < len(s.buf) {
		switch s.buf[s.pos] {
		case ',', ']', '}', '[', '{', '"', ' ', '\t', '\n', '\r':
			return
		}
		s.pos++
	}
}

// Range is a half-open byte range inside a frame
type Range struct {
	Start int
	End   int
}

// Spans collects every object range in buf
func Spans(buf []byte) ([]Range, error) {
	var out []Range
	s := NewScanner(buf)
	for s.Next() {
		start, end := s.Range()
		out = append(out, Range{Start: start, End: end})
	}
	return out, s.Err()
}
