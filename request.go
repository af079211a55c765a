package httplite

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// DefaultMaxRequestHeaders is the header capacity used when
// Server.MaxRequestHeaders is zero.
const DefaultMaxRequestHeaders = 8

// Request is a parsed view over the bytes of a single read.
//
// Method, Path, Body and the header slices alias the buffer passed to Parse,
// so they are valid only until that buffer is overwritten.
//
// It is forbidden copying Request instances.
type Request struct {
	Header RequestHeader

	method     []byte
	path       []byte
	protocol   []byte
	body       []byte
	bodyOffset int

	maxHeaders int
}

// Reset clears the request.
func (req *Request) Reset() {
	req.Header.Reset()
	req.method = nil
	req.path = nil
	req.protocol = nil
	req.body = nil
	req.bodyOffset = 0
}

// Method returns the request method.
func (req *Request) Method() []byte {
	return req.method
}

// Path returns the raw request path. No percent-decoding is applied.
func (req *Request) Path() []byte {
	return req.path
}

// Protocol returns the request protocol, i.e. HTTP/1.1 or HTTP/1.0.
func (req *Request) Protocol() []byte {
	return req.protocol
}

// Body returns the request body.
//
// The body is empty unless the request declares Content-Length.
func (req *Request) Body() []byte {
	return req.body
}

// BodyOffset returns the index in the parsed buffer where the body starts,
// i.e. right after the blank line closing the header block.
func (req *Request) BodyOffset() int {
	return req.bodyOffset
}

// SetMaxHeaders sets the maximum number of headers Parse accepts.
//
// DefaultMaxRequestHeaders is used if n <= 0.
func (req *Request) SetMaxHeaders(n int) {
	req.maxHeaders = n
}

func (req *Request) headerCapacity() int {
	if req.maxHeaders <= 0 {
		return DefaultMaxRequestHeaders
	}
	return req.maxHeaders
}

// Parse parses the request held in buf.
//
// buf must contain exactly the bytes read from the connection. The request
// line and the whole header block must be present in buf, as well as the
// body if Content-Length is declared; bodies spanning several reads are
// not supported and result in ErrBodyTruncated.
//
// All returned errors wrap ErrParse. The request is partially filled
// on ErrInvalidContentLength and ErrBodyTruncated.
func (req *Request) Parse(buf []byte) error {
	req.Reset()

	end := bytes.Index(buf, strCRLFCRLF)
	if end < 0 {
		return ErrUnterminatedHeaders
	}
	lineEnd := bytes.Index(buf, strCRLF)
	if err := req.parseFirstLine(buf[:lineEnd]); err != nil {
		return err
	}

	req.bodyOffset = end + len(strCRLFCRLF)
	if err := req.parseHeaders(buf[lineEnd+len(strCRLF) : req.bodyOffset]); err != nil {
		return err
	}

	n := req.Header.contentLength
	if n < 0 {
		req.body = buf[req.bodyOffset:req.bodyOffset]
		return nil
	}
	if n > len(buf)-req.bodyOffset {
		return fmt.Errorf("%w: Content-Length is %d, got %d bytes", ErrBodyTruncated, n, len(buf)-req.bodyOffset)
	}
	req.body = buf[req.bodyOffset : req.bodyOffset+n]
	return nil
}

func (req *Request) parseFirstLine(line []byte) error {
	method, rest, ok := bytes.Cut(line, []byte{' '})
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRequestLine, line)
	}
	path, protocol, ok := bytes.Cut(rest, []byte{' '})
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRequestLine, line)
	}

	if !httpguts.ValidHeaderFieldName(b2s(method)) {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
	if !isValidPath(path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if !bytes.Equal(protocol, strHTTP11) && !bytes.Equal(protocol, strHTTP10) {
		return fmt.Errorf("%w: unsupported protocol %q", ErrInvalidRequestLine, protocol)
	}

	req.method = method
	req.path = path
	req.protocol = protocol
	return nil
}

func (req *Request) parseHeaders(b []byte) error {
	h := &req.Header
	limit := req.headerCapacity()

	var s headerScanner
	s.b = b
	for s.next() {
		if len(h.h) >= limit {
			return fmt.Errorf("%w: more than %d", ErrTooManyHeaders, limit)
		}
		if strings.EqualFold(b2s(s.key), HeaderContentLength) {
			if err := h.setContentLength(s.value); err != nil {
				return err
			}
		}
		h.append(s.key, s.value)
	}
	return s.err
}

func (h *RequestHeader) setContentLength(v []byte) error {
	n, err := ParseUint(v)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidContentLength, err)
	}
	if h.contentLength >= 0 && h.contentLength != n {
		return fmt.Errorf("%w: conflicting values %d and %d", ErrInvalidContentLength, h.contentLength, n)
	}
	h.contentLength = n
	return nil
}

// isValidPath reports whether path is an origin-form target made of
// visible ASCII characters.
func isValidPath(path []byte) bool {
	if len(path) == 0 || path[0] != '/' {
		return false
	}
	for _, c := range path {
		if c <= ' ' || c >= 0x7f {
			return false
		}
	}
	return true
}
