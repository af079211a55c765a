//go:build !windows

package httplite

import (
	"net"

	"github.com/valyala/tcplisten"
)

// listen returns the listener used by ListenAndServe.
//
// With ReusePort set, several processes may listen on the same addr and
// the kernel spreads incoming connections among them.
func (s *Server) listen(network, addr string) (net.Listener, error) {
	if !s.ReusePort {
		return net.Listen(network, addr)
	}
	cfg := &tcplisten.Config{
		ReusePort:   true,
		DeferAccept: true,
		FastOpen:    true,
	}
	return cfg.NewListener(network, addr)
}
