//go:build windows

package httplite

import "net"

// listen returns the listener used by ListenAndServe.
//
// SO_REUSEPORT is not available on Windows, so ReusePort is ignored.
func (s *Server) listen(network, addr string) (net.Listener, error) {
	return net.Listen(network, addr)
}
