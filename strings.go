package httplite

var (
	strCRLF       = []byte("\r\n")
	strCRLFCRLF   = []byte("\r\n\r\n")
	strColon      = []byte(":")
	strColonSpace = []byte(": ")
	strComma      = []byte(",")
	strHTTP10     = []byte("HTTP/1.0")
	strHTTP11     = []byte("HTTP/1.1")

	strContentLength = []byte("Content-Length")

	strClose = []byte("close")
	strGzip  = []byte("gzip")
)

// Methods understood by the route table.
const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

// Header names inspected or emitted by the server.
const (
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderConnection      = "Connection"
	HeaderContentEncoding = "Content-Encoding"
	HeaderContentLength   = "Content-Length"
	HeaderContentType     = "Content-Type"
	HeaderUserAgent       = "User-Agent"
)

const (
	contentTypeText  = "text/plain"
	contentTypeOctet = "application/octet-stream"
)
