package httplite

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panjf2000/gnet"
)

func TestGnetServerReact(t *testing.T) {
	t.Parallel()

	gs := newGnetServer(&Server{
		Logger: &customLogger{},
	})
	defer gs.OnShutdown(gnet.Server{})

	// Keep-alive requests share a connection.
	c := newFakeGnetConn()
	if _, action := gs.OnOpened(c); action != gnet.None {
		t.Fatalf("unexpected action %v on open", action)
	}
	for _, tc := range []struct {
		req  string
		resp string
	}{
		{
			"GET /echo/abc HTTP/1.1\r\n\r\n",
			"HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 3\r\n\r\nabc",
		},
		{
			"GET /user-agent HTTP/1.1\r\nUser-Agent: gnet/1.0\r\n\r\n",
			"HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 8\r\n\r\ngnet/1.0",
		},
		{
			"GET /nonexistent HTTP/1.1\r\n\r\n",
			"HTTP/1.1 404 Not Found\r\nContent-Type: text/plain\r\nContent-Length: 0\r\n\r\n",
		},
	} {
		testGnetReact(t, gs, c, tc.req, tc.resp, false)
	}
	gs.OnClosed(c, nil)
	if c.ctx != nil {
		t.Fatalf("context must be detached on close")
	}
	if _, action := gs.React([]byte("GET / HTTP/1.1\r\n\r\n"), c); action != gnet.Close {
		t.Fatalf("unexpected action %v for a closed connection. Expecting %v", action, gnet.Close)
	}

	// Each of these requests closes its connection.
	for _, tc := range []struct {
		req  string
		resp string
	}{
		{
			"POST /files/a HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc",
			"HTTP/1.1 400 Bad Request\r\nContent-Type: text/plain\r\nContent-Length: 0\r\nConnection: close\r\n\r\n",
		},
		{
			"GARBAGE\r\n\r\n",
			"",
		},
	} {
		c := newFakeGnetConn()
		gs.OnOpened(c)
		testGnetReact(t, gs, c, tc.req, tc.resp, true)
		gs.OnClosed(c, nil)
	}

	if gs.conns != 0 {
		t.Fatalf("unexpected number of connections %d. Expecting 0", gs.conns)
	}
}

func testGnetReact(t *testing.T, gs *gnetServer, c *fakeGnetConn, req, expectedResp string, expectedClose bool) {
	t.Helper()

	out, action := gs.React([]byte(req), c)
	if len(out) != 0 || action != gnet.None {
		t.Fatalf("unexpected result %q, %v from React for %q", out, action, req)
	}
	n := 0
	if expectedResp != "" {
		n++
	}
	if expectedClose {
		n++
	}
	c.waitEvents(t, n)
	resp, closed := c.result()
	if resp != expectedResp {
		t.Fatalf("unexpected response %q to %q. Expecting %q", resp, req, expectedResp)
	}
	if closed != expectedClose {
		t.Fatalf("unexpected connection close %v for %q. Expecting %v", closed, req, expectedClose)
	}
}

func TestGnetServerTruncatesToReadBuffer(t *testing.T) {
	t.Parallel()

	gs := newGnetServer(&Server{
		ReadBufferSize: 32,
		Logger:         &customLogger{},
	})
	defer gs.OnShutdown(gnet.Server{})

	c := newFakeGnetConn()
	gs.OnOpened(c)
	defer gs.OnClosed(c, nil)

	testGnetReact(t, gs, c, "GET /echo/abc HTTP/1.1\r\nUser-Agent: something-long\r\n\r\n", "", true)
}

func TestGnetServerSlowHandler(t *testing.T) {
	t.Parallel()

	unblock := make(chan struct{})
	gs := newGnetServer(&Server{
		Handler: func(ctx *RequestCtx) {
			if string(ctx.Request.Path()) == "/slow" {
				<-unblock
			}
			ctx.Success("text/plain", ctx.Request.Path())
		},
		Logger: &customLogger{},
	})
	defer gs.OnShutdown(gnet.Server{})

	c1 := newFakeGnetConn()
	gs.OnOpened(c1)
	c2 := newFakeGnetConn()
	gs.OnOpened(c2)

	reactCh := make(chan struct{})
	go func() {
		gs.React([]byte("GET /slow HTTP/1.1\r\n\r\n"), c1)
		close(reactCh)
	}()
	select {
	case <-reactCh:
	case <-time.After(time.Second):
		t.Fatalf("React must not wait for the handler")
	}

	// The event loop keeps serving other connections.
	testGnetReact(t, gs, c2, "GET /fast HTTP/1.1\r\n\r\n",
		"HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\n/fast", false)

	// Data arriving during the slow request is dropped.
	if out, action := gs.React([]byte("GET /fast HTTP/1.1\r\n\r\n"), c1); len(out) != 0 || action != gnet.None {
		t.Fatalf("unexpected result %q, %v for a busy connection", out, action)
	}

	unblock <- struct{}{}
	c1.waitEvents(t, 1)
	resp, closed := c1.result()
	expected := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\n/slow"
	if resp != expected {
		t.Fatalf("unexpected response %q. Expecting %q", resp, expected)
	}
	if closed {
		t.Fatalf("the connection must stay open")
	}

	// The peer goes away while its request is being handled.
	go gs.React([]byte("GET /slow HTTP/1.1\r\n\r\n"), c2)
	waitGnetConnState(t, c2, gnetConnBusy)
	gs.OnClosed(c2, nil)
	unblock <- struct{}{}
	c2.waitEvents(t, 1)

	gs.OnClosed(c1, nil)
	if gs.conns != 0 {
		t.Fatalf("unexpected number of connections %d. Expecting 0", gs.conns)
	}
}

func waitGnetConnState(t *testing.T, c *fakeGnetConn, state int32) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for {
		c.lock.Lock()
		gc, _ := c.ctx.(*gnetConn)
		c.lock.Unlock()
		if gc != nil && atomic.LoadInt32(&gc.state) == state {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for connection state %d", state)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestGnetServerConcurrency(t *testing.T) {
	t.Parallel()

	gs := newGnetServer(&Server{
		Concurrency: 1,
	})
	defer gs.OnShutdown(gnet.Server{})

	c1 := newFakeGnetConn()
	if _, action := gs.OnOpened(c1); action != gnet.None {
		t.Fatalf("unexpected action %v. Expecting %v", action, gnet.None)
	}
	c2 := newFakeGnetConn()
	if _, action := gs.OnOpened(c2); action != gnet.Close {
		t.Fatalf("unexpected action %v. Expecting %v", action, gnet.Close)
	}
	gs.OnClosed(c2, nil)
	if gs.conns != 1 {
		t.Fatalf("unexpected number of connections %d. Expecting 1", gs.conns)
	}

	gs.OnClosed(c1, nil)
	c3 := newFakeGnetConn()
	if _, action := gs.OnOpened(c3); action != gnet.None {
		t.Fatalf("unexpected action %v. Expecting %v", action, gnet.None)
	}
	gs.OnClosed(c3, nil)
}

func TestGnetRemoteAddr(t *testing.T) {
	t.Parallel()

	addrCh := make(chan net.Addr, 1)
	gs := newGnetServer(&Server{
		Handler: func(ctx *RequestCtx) {
			addrCh <- ctx.RemoteAddr()
			ctx.Success("text/plain", nil)
		},
	})
	defer gs.OnShutdown(gnet.Server{})

	c := newFakeGnetConn()
	gs.OnOpened(c)
	defer gs.OnClosed(c, nil)

	gs.React([]byte("GET / HTTP/1.1\r\n\r\n"), c)
	select {
	case addr := <-addrCh:
		if addr.String() != "10.0.0.1:1234" {
			t.Fatalf("unexpected remote addr %s. Expecting %s", addr, "10.0.0.1:1234")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout")
	}
	c.waitEvents(t, 1)
}

// fakeGnetConn implements the parts of gnet.Conn used by gnetServer.
type fakeGnetConn struct {
	gnet.Conn

	addr net.Addr

	lock   sync.Mutex
	ctx    interface{}
	out    []byte
	closed bool

	// events receives a value per AsyncWrite and Close call.
	events chan struct{}
}

func newFakeGnetConn() *fakeGnetConn {
	return &fakeGnetConn{
		addr: &net.TCPAddr{
			IP:   net.IPv4(10, 0, 0, 1),
			Port: 1234,
		},
		events: make(chan struct{}, 16),
	}
}

func (c *fakeGnetConn) Context() interface{} {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.ctx
}

func (c *fakeGnetConn) SetContext(ctx interface{}) {
	c.lock.Lock()
	c.ctx = ctx
	c.lock.Unlock()
}

func (c *fakeGnetConn) RemoteAddr() net.Addr {
	return c.addr
}

func (c *fakeGnetConn) AsyncWrite(buf []byte) error {
	c.lock.Lock()
	c.out = append(c.out, buf...)
	c.lock.Unlock()
	c.events <- struct{}{}
	return nil
}

func (c *fakeGnetConn) Close() error {
	c.lock.Lock()
	c.closed = true
	c.lock.Unlock()
	c.events <- struct{}{}
	return nil
}

func (c *fakeGnetConn) waitEvents(t *testing.T, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		select {
		case <-c.events:
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for connection event %d of %d", i+1, n)
		}
	}
}

// result returns the bytes written since the previous call and whether
// the connection is closed.
func (c *fakeGnetConn) result() (string, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	out := string(c.out)
	c.out = c.out[:0]
	return out, c.closed
}
