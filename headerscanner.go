package httplite

import (
	"bytes"
	"fmt"

	"golang.org/x/net/http/httpguts"
)

// headerScanner walks the header lines of a request.
//
// b must hold the header lines, each terminated by CRLF, followed by
// the empty line closing the header block.
type headerScanner struct {
	b []byte

	key   []byte
	value []byte

	err error
}

func (s *headerScanner) next() bool {
	line, rest, ok := bytes.Cut(s.b, strCRLF)
	if !ok {
		s.err = ErrUnterminatedHeaders
		return false
	}
	s.b = rest
	if len(line) == 0 {
		// Blank line - end of headers.
		return false
	}

	if line[0] == ' ' || line[0] == '\t' {
		s.err = fmt.Errorf("%w: obsolete line folding in %q", ErrInvalidHeader, line)
		return false
	}

	// Key ends at first colon.
	k, v, ok := bytes.Cut(line, strColon)
	if !ok {
		s.err = fmt.Errorf("%w: missing colon in %q", ErrInvalidHeader, line)
		return false
	}
	if !httpguts.ValidHeaderFieldName(b2s(k)) {
		s.err = fmt.Errorf("%w: malformed name in %q", ErrInvalidHeader, line)
		return false
	}

	v = trim(v)
	if !httpguts.ValidHeaderFieldValue(b2s(v)) {
		s.err = fmt.Errorf("%w: malformed value for %q", ErrInvalidHeader, k)
		return false
	}

	s.key = k
	s.value = v
	return true
}

// trim returns s with leading and trailing spaces and tabs removed.
// It does not assume Unicode or UTF-8.
func trim(s []byte) []byte {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	n := len(s)
	for n > i && (s[n-1] == ' ' || s[n-1] == '\t') {
		n--
	}
	return s[i:n]
}
