package httplite

import "errors"

// ErrParse is wrapped by every error returned from Request.Parse.
//
// A request failing to parse gives no reliable response boundary,
// so the server closes the connection without answering, except for
// the errors reported by IsBadRequestError.
var ErrParse = errors.New("cannot parse request")

// Request parse errors. All of them wrap ErrParse.
var (
	ErrUnterminatedHeaders  = parseError("request headers are not terminated within the read buffer")
	ErrInvalidRequestLine   = parseError("invalid request line")
	ErrInvalidMethod        = parseError("invalid request method")
	ErrInvalidPath          = parseError("invalid request path")
	ErrInvalidHeader        = parseError("invalid request header")
	ErrTooManyHeaders       = parseError("too many request headers")
	ErrInvalidContentLength = parseError("invalid Content-Length")
	ErrBodyTruncated        = parseError("request body exceeds the bytes read")
)

// ErrMissingContentLength is logged when a request requiring a body
// comes without Content-Length.
var ErrMissingContentLength = errors.New("missing Content-Length request header")

type wrappedParseError struct {
	msg string
}

func parseError(msg string) error {
	return &wrappedParseError{msg: msg}
}

func (e *wrappedParseError) Error() string {
	return e.msg
}

func (e *wrappedParseError) Unwrap() error {
	return ErrParse
}

// IsBadRequestError reports whether err is a parse error the server
// answers with 400 before closing the connection.
//
// Those errors are detected after the request line and headers have been
// parsed successfully, so a response can still be framed.
func IsBadRequestError(err error) bool {
	return errors.Is(err, ErrInvalidContentLength) || errors.Is(err, ErrBodyTruncated)
}
