package httplite

import "strconv"

// HTTP status codes used by the server.
const (
	StatusOK                  = 200 // RFC 9110, 15.3.1
	StatusCreated             = 201 // RFC 9110, 15.3.2
	StatusBadRequest          = 400 // RFC 9110, 15.5.1
	StatusNotFound            = 404 // RFC 9110, 15.5.5
	StatusInternalServerError = 500 // RFC 9110, 15.6.1
)

var statusMessages = map[int]string{
	StatusOK:                  "OK",
	StatusCreated:             "Created",
	StatusBadRequest:          "Bad Request",
	StatusNotFound:            "Not Found",
	StatusInternalServerError: "Internal Server Error",
}

// StatusMessage returns the reason phrase for the given status code.
func StatusMessage(statusCode int) string {
	if s, ok := statusMessages[statusCode]; ok {
		return s
	}
	return "Unknown Status Code"
}

func formatStatusLine(dst, protocol []byte, statusCode int, statusText []byte) []byte {
	dst = append(dst, protocol...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(statusCode), 10)
	dst = append(dst, ' ')
	dst = append(dst, statusText...)
	return append(dst, strCRLF...)
}
