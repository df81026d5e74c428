package engine

import (
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
)

var crlf = []byte("\r\n")

// foldWriter folds content lines longer than 75 octets into continuation
// lines starting with a space, never splitting a UTF-8 sequence. Each Write
// must carry whole CRLF-terminated lines, which is how the go-ical encoder
// writes.
type foldWriter struct {
	w io.Writer
}

func (f foldWriter) Write(p []byte) (int, error) {
	var buf bytes.Buffer
	rest := p
	for len(rest) > 0 {
		line, tail, found := bytes.Cut(rest, crlf)
		foldLine(&buf, line)
		if found {
			buf.Write(crlf)
		}
		rest = tail
	}
	if _, err := f.w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func foldLine(buf *bytes.Buffer, line []byte) {
	limit := config.ICalLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		buf.Write(line[:cut])
		buf.Write(crlf)
		buf.WriteByte(' ')
		line = line[cut:]
		limit = config.ICalLineOctets - 1
	}
	buf.Write(line)
}
