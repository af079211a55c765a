package httplite

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/panjf2000/gnet"
)

// ListenAndServeGnet serves HTTP requests from the given TCP addr using
// gnet event loops for network I/O.
//
// Every inbound packet is one read into the connection's receive buffer,
// as with ListenAndServe. Handlers run on a goroutine pool outside the
// event loops, so slow Storage calls don't stall the other connections
// of a loop. Bytes arriving while a request of the same connection is
// being handled are discarded.
func (s *Server) ListenAndServeGnet(addr string) error {
	gs := newGnetServer(s)
	return gnet.Serve(gs, gnetAddr(addr),
		gnet.WithMulticore(true),
		gnet.WithReusePort(s.ReusePort))
}

// StopGnet stops the gnet engine started by ListenAndServeGnet on addr.
func StopGnet(ctx context.Context, addr string) error {
	return gnet.Stop(ctx, gnetAddr(addr))
}

func gnetAddr(addr string) string {
	return "tcp://" + addr
}

type gnetServer struct {
	gnet.EventServer

	s     *Server
	pool  *ants.Pool
	conns int64
}

func newGnetServer(s *Server) *gnetServer {
	// A connection has at most one request in flight, so the pool
	// never overflows while the connection limit holds.
	pool, err := ants.NewPool(s.getConcurrency(),
		ants.WithNonblocking(true),
		ants.WithExpiryDuration(s.maxIdleWorkerDuration()))
	if err != nil {
		panic(fmt.Sprintf("BUG: cannot create goroutine pool: %s", err))
	}
	return &gnetServer{
		s:    s,
		pool: pool,
	}
}

// OnInitComplete fires when the engine is ready for accepting connections.
func (gs *gnetServer) OnInitComplete(srv gnet.Server) (action gnet.Action) {
	gs.s.logger().Printf("HTTP server is listening on %s (multi-cores: %t, loops: %d)",
		srv.Addr, srv.Multicore, srv.NumEventLoop)
	return
}

// OnShutdown stops the handler goroutines.
func (gs *gnetServer) OnShutdown(srv gnet.Server) {
	gs.pool.Release()
}

// OnOpened attaches a gnetConn with its RequestCtx to c, or closes c
// if the concurrency limit or the per-IP limit is reached.
func (gs *gnetServer) OnOpened(c gnet.Conn) (out []byte, action gnet.Action) {
	s := gs.s
	s.Metrics.connAccepted()
	if atomic.AddInt64(&gs.conns, 1) > int64(s.getConcurrency()) {
		atomic.AddInt64(&gs.conns, -1)
		s.Metrics.connRejected()
		return nil, gnet.Close
	}
	var ip uint32
	if s.MaxConnsPerIP > 0 {
		ip = addrUint32IP(c.RemoteAddr())
		if ip != 0 && s.perIPConnCounter.Register(ip) > s.MaxConnsPerIP {
			s.perIPConnCounter.Unregister(ip)
			atomic.AddInt64(&gs.conns, -1)
			s.Metrics.connRejected()
			return nil, gnet.Close
		}
	}
	s.Metrics.connOpened()
	gc := &gnetConn{
		c:  c,
		ip: ip,
	}
	gc.ctx = s.acquireCtx(gc)
	c.SetContext(gc)
	return
}

// OnClosed detaches the gnetConn from c.
//
// The RequestCtx goes back to the pool unless a handler still holds it.
func (gs *gnetServer) OnClosed(c gnet.Conn, err error) (action gnet.Action) {
	gc, ok := c.Context().(*gnetConn)
	if !ok {
		return
	}
	c.SetContext(nil)
	if gc.ip != 0 {
		gs.s.perIPConnCounter.Unregister(gc.ip)
	}
	atomic.AddInt64(&gs.conns, -1)
	gs.s.Metrics.connClosed()
	if atomic.SwapInt32(&gc.state, gnetConnClosed) == gnetConnIdle {
		gs.s.releaseCtx(gc.ctx)
	}
	return
}

// React copies the inbound packet into the receive buffer and hands
// the request to the goroutine pool.
//
// The response is sent with AsyncWrite once the handler returns.
func (gs *gnetServer) React(packet []byte, c gnet.Conn) (out []byte, action gnet.Action) {
	gc, ok := c.Context().(*gnetConn)
	if !ok {
		return nil, gnet.Close
	}
	if !atomic.CompareAndSwapInt32(&gc.state, gnetConnIdle, gnetConnBusy) {
		// No pipelining: the previous request is still being handled.
		return
	}
	n := copy(gc.ctx.buf, packet)
	if err := gs.pool.Submit(func() { gs.serve(gc, n) }); err != nil {
		atomic.StoreInt32(&gc.state, gnetConnIdle)
		gs.s.logger().Printf("cannot handle request from %s: %s", c.RemoteAddr(), err)
		return nil, gnet.Close
	}
	return
}

// serve runs one request cycle over the first n bytes of the receive buffer.
//
// The RequestCtx is released here if the connection got closed meanwhile
// or is going to be closed.
func (gs *gnetServer) serve(gc *gnetConn, n int) {
	ctx := gc.ctx
	respond, closeConn := gs.s.serveRead(ctx, ctx.buf[:n])
	var out []byte
	if respond {
		// AsyncWrite holds on to the buffer until the event loop writes it.
		out = ctx.Response.AppendBytes(nil)
	}
	if closeConn || !atomic.CompareAndSwapInt32(&gc.state, gnetConnBusy, gnetConnIdle) {
		gs.s.releaseCtx(ctx)
	}
	c := gc.c
	if out != nil {
		if err := c.AsyncWrite(out); err != nil {
			gs.s.logger().Printf("error when writing response to %s: %s", c.RemoteAddr(), err)
			closeConn = true
		}
	}
	if closeConn {
		c.Close() //nolint:errcheck
	}
}

// gnetConn is the per-connection state of the gnet engine. It exposes
// the connection address to RequestCtx.
//
// Reads and writes go through gnet, never through gnetConn.
type gnetConn struct {
	c   gnet.Conn
	ctx *RequestCtx
	ip  uint32

	state int32
}

const (
	gnetConnIdle int32 = iota
	// ctx is owned by a handler goroutine.
	gnetConnBusy
	gnetConnClosed
)

func (gc *gnetConn) RemoteAddr() net.Addr {
	return gc.c.RemoteAddr()
}

func (gc *gnetConn) Read(p []byte) (int, error) {
	panic("BUG: unexpected Read call")
}

func (gc *gnetConn) Write(p []byte) (int, error) {
	panic("BUG: unexpected Write call")
}

func (gc *gnetConn) Close() error {
	panic("BUG: unexpected Close call")
}
