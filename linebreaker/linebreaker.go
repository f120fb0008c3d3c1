// Package linebreaker wraps armored output at a fixed column.
package linebreaker

import (
	"io"
)

// Breaker breaks data across several lines, all of the same byte length
// (except possibly the last). Lines are broken with a single '\n'.  No
// newline follows the final line; Close flushes it.
type Breaker struct {
	lineLength int
	used       int
	out        io.Writer
	started    bool
}

func NewLineBreaker(out io.Writer, lineLength int) *Breaker {
	if lineLength < 1 {
		lineLength = 1
	}
	return &Breaker{
		lineLength: lineLength,
		out:        out,
	}
}

func (l *Breaker) Write(b []byte) (n int, err error) {
	for len(b) > 0 {
		if l.used == l.lineLength {
			if _, err = l.out.Write([]byte{'\n'}); err != nil {
				return
			}
			l.used = 0
		}
		chunk := l.lineLength - l.used
		if chunk > len(b) {
			chunk = len(b)
		}
		var written int
		written, err = l.out.Write(b[:chunk])
		n += written
		l.used += written
		l.started = true
		if err != nil {
			return
		}
		b = b[chunk:]
	}
	return
}

// Close terminates the final line.  The underlying writer is not closed.
func (l *Breaker) Close() (err error) {
	if l.started {
		_, err = l.out.Write([]byte{'\n'})
	}
	return
}
