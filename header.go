package httplite

import (
	"bytes"
	"strings"
)

// Header is a single request header.
//
// Key and Value point into the connection's receive buffer and are valid
// only until the next read on the connection.
type Header struct {
	Key   []byte
	Value []byte
}

// RequestHeader holds the headers of a parsed request in arrival order.
//
// It is forbidden copying RequestHeader instances.
type RequestHeader struct {
	h []Header

	contentLength int
}

// Reset clears the header list.
func (h *RequestHeader) Reset() {
	h.h = h.h[:0]
	h.contentLength = -1
}

// Len returns the number of headers.
func (h *RequestHeader) Len() int {
	return len(h.h)
}

// VisitAll calls f for each header in arrival order.
//
// f must not retain references to key and value after returning.
func (h *RequestHeader) VisitAll(f func(key, value []byte)) {
	for i := range h.h {
		kv := &h.h[i]
		f(kv.Key, kv.Value)
	}
}

// Peek returns the value of the first header named key.
//
// The comparison ignores case. nil is returned for a missing header,
// use Lookup for telling a missing header from an empty one.
func (h *RequestHeader) Peek(key string) []byte {
	v, _ := h.Lookup(key)
	return v
}

// Lookup returns the value of the first header named key and whether
// such a header is present.
func (h *RequestHeader) Lookup(key string) ([]byte, bool) {
	for i := range h.h {
		kv := &h.h[i]
		if strings.EqualFold(b2s(kv.Key), key) {
			return kv.Value, true
		}
	}
	return nil, false
}

// ContentLength returns the parsed Content-Length header value
// or -1 if the request has no Content-Length header.
func (h *RequestHeader) ContentLength() int {
	return h.contentLength
}

// HasAcceptEncoding reports whether Accept-Encoding lists the given
// encoding as a token.
//
// The header value is split on commas and each token is stripped of
// surrounding spaces and tabs before being compared exactly, so "gzip"
// matches "br, gzip" but neither "x-gzip" nor "*".
func (h *RequestHeader) HasAcceptEncoding(encoding string) bool {
	return hasToken(h.Peek(HeaderAcceptEncoding), s2b(encoding))
}

func hasToken(list, token []byte) bool {
	for len(list) > 0 {
		var t []byte
		t, list, _ = bytes.Cut(list, strComma)
		if bytes.Equal(trim(t), token) {
			return true
		}
	}
	return false
}

func (h *RequestHeader) append(key, value []byte) {
	h.h = append(h.h, Header{Key: key, Value: value})
}
