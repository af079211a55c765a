/*
Package httplite provides a small HTTP/1.1 server built directly on TCP.

The server reads every request from a fixed-size per-connection buffer and
dispatches it to a static route table:

    * GET  /               - empty 200 response.
    * GET  /echo/{rest}    - echoes {rest}, gzip-compressed when the client
                             lists gzip in Accept-Encoding.
    * GET  /user-agent     - echoes the User-Agent request header.
    * GET  /files/{name}   - returns the named file from Storage.
    * POST /files/{name}   - stores the request body under the given name.

Anything else gets 404.

Connections are kept alive: after a response is written the server reads the
next request from the same connection until the peer closes it. A malformed
request closes the connection without a response, since there is no reliable
way to tell where the next request starts.

The server is packed with the following limits:

    * The number of concurrent connections (Server.Concurrency), overall
      and per client address (Server.MaxConnsPerIP).
    * The receive buffer size, which bounds the request size (Server.ReadBufferSize).
    * The number of request headers (Server.MaxRequestHeaders).
    * Optional per-read and per-write timeouts.
*/
package httplite
