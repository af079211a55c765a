package httplite

import (
	"bytes"
	"io"

	"github.com/valyala/bytebufferpool"
)

// Response represents an outgoing response.
//
// Headers are framed in the order they were added. The framer never adds
// Content-Length on its own, so whoever sets the body must also add a
// matching Content-Length header; RequestCtx.Success and RequestCtx.Empty
// do both.
//
// It is forbidden copying Response instances.
type Response struct {
	statusCode int
	h          []argsKV
	body       []byte

	connectionClose bool
}

type argsKV struct {
	key   []byte
	value []byte
}

// Reset clears the response.
func (resp *Response) Reset() {
	resp.statusCode = 0
	resp.h = resp.h[:0]
	resp.body = resp.body[:0]
	resp.connectionClose = false
}

// StatusCode returns the response status code.
//
// StatusOK is returned if the status code hasn't been set.
func (resp *Response) StatusCode() int {
	if resp.statusCode == 0 {
		return StatusOK
	}
	return resp.statusCode
}

// SetStatusCode sets the response status code.
func (resp *Response) SetStatusCode(statusCode int) {
	resp.statusCode = statusCode
}

// AddHeader appends a header line. Duplicate keys are kept.
func (resp *Response) AddHeader(key, value string) {
	resp.AddHeaderBytes(key, s2b(value))
}

// AddHeaderBytes appends a header line. value is copied.
func (resp *Response) AddHeaderBytes(key string, value []byte) {
	var kv *argsKV
	resp.h, kv = allocArg(resp.h)
	kv.key = append(kv.key[:0], key...)
	kv.value = append(kv.value[:0], value...)
}

// Peek returns the value of the first header named key, ignoring case.
func (resp *Response) Peek(key string) []byte {
	for i := range resp.h {
		kv := &resp.h[i]
		if bytes.EqualFold(kv.key, s2b(key)) {
			return kv.value
		}
	}
	return nil
}

// Body returns the response body.
func (resp *Response) Body() []byte {
	return resp.body
}

// SetBody sets the response body. body is copied.
func (resp *Response) SetBody(body []byte) {
	resp.body = append(resp.body[:0], body...)
}

// ConnectionClose reports whether the connection must be closed
// after writing the response.
func (resp *Response) ConnectionClose() bool {
	return resp.connectionClose
}

// SetConnectionClose adds 'Connection: close' header and makes the server
// close the connection after writing the response.
func (resp *Response) SetConnectionClose() {
	if !resp.connectionClose {
		resp.AddHeaderBytes(HeaderConnection, strClose)
	}
	resp.connectionClose = true
}

// addContentLength appends Content-Length matching the current body.
func (resp *Response) addContentLength() {
	var kv *argsKV
	resp.h, kv = allocArg(resp.h)
	kv.key = append(kv.key[:0], strContentLength...)
	kv.value = AppendUint(kv.value[:0], len(resp.body))
}

// AppendBytes appends the wire representation of the response to dst
// and returns the extended dst.
func (resp *Response) AppendBytes(dst []byte) []byte {
	statusCode := resp.StatusCode()
	dst = formatStatusLine(dst, strHTTP11, statusCode, s2b(StatusMessage(statusCode)))
	for i := range resp.h {
		kv := &resp.h[i]
		dst = appendHeaderLine(dst, kv.key, kv.value)
	}
	dst = append(dst, strCRLF...)
	return append(dst, resp.body...)
}

var responseBufferPool bytebufferpool.Pool

// WriteTo writes the response to w with a single Write call.
//
// WriteTo implements io.WriterTo.
func (resp *Response) WriteTo(w io.Writer) (int64, error) {
	bb := responseBufferPool.Get()
	bb.B = resp.AppendBytes(bb.B[:0])
	n, err := w.Write(bb.B)
	if err == nil && n != len(bb.B) {
		err = io.ErrShortWrite
	}
	responseBufferPool.Put(bb)
	return int64(n), err
}

// String returns the wire representation of the response.
func (resp *Response) String() string {
	return string(resp.AppendBytes(nil))
}

func appendHeaderLine(dst, key, value []byte) []byte {
	dst = append(dst, key...)
	dst = append(dst, strColonSpace...)
	dst = append(dst, value...)
	return append(dst, strCRLF...)
}

func allocArg(h []argsKV) ([]argsKV, *argsKV) {
	n := len(h)
	if cap(h) > n {
		h = h[:n+1]
	} else {
		h = append(h, argsKV{})
	}
	return h, &h[n]
}
