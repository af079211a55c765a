package httplite

import (
	"net"
	"testing"
	"time"

	"github.com/panjf2000/gnet"
)

func TestAddrUint32IP(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		addr     net.Addr
		expected uint32
	}{
		{&net.TCPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 80}, 0x01020304},
		{&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}, 0x7f000001},
		{&net.TCPAddr{IP: net.ParseIP("::1")}, 0},
		{&net.UnixAddr{Name: "/tmp/sock", Net: "unix"}, 0},
		{zeroIPAddr, 0},
	} {
		if n := addrUint32IP(tc.addr); n != tc.expected {
			t.Fatalf("unexpected value %#x for %s. Expecting %#x", n, tc.addr, tc.expected)
		}
	}
}

func TestPerIPConnCounter(t *testing.T) {
	t.Parallel()

	var cc perIPConnCounter

	for i := 1; i < 100; i++ {
		if n := cc.Register(123); n != i {
			t.Fatalf("unexpected counter value %d. Expecting %d", n, i)
		}
	}

	n := cc.Register(456)
	if n != 1 {
		t.Fatalf("unexpected counter value %d. Expecting 1", n)
	}

	for i := 1; i < 100; i++ {
		cc.Unregister(123)
	}
	cc.Unregister(456)

	n = cc.Register(123)
	if n != 1 {
		t.Fatalf("unexpected counter value %d. Expecting 1", n)
	}
	cc.Unregister(123)

	if len(cc.m) != 0 {
		t.Fatalf("unexpected entries left in the counter: %v", cc.m)
	}
}

func TestWrapPerIPConn(t *testing.T) {
	t.Parallel()

	var cc perIPConnCounter
	addr := &net.TCPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 1234}

	c1 := &addrConn{addr: addr}
	w1 := wrapPerIPConn(&cc, c1, 1)
	if w1 == nil {
		t.Fatalf("the first connection must be accepted")
	}

	c2 := &addrConn{addr: addr}
	if w := wrapPerIPConn(&cc, c2, 1); w != nil {
		t.Fatalf("the second connection must be rejected")
	}
	if !c2.closed {
		t.Fatalf("the rejected connection must be closed")
	}

	if err := w1.Close(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !c1.closed {
		t.Fatalf("the underlying connection must be closed")
	}

	c3 := &addrConn{addr: addr}
	w3 := wrapPerIPConn(&cc, c3, 1)
	if w3 == nil {
		t.Fatalf("the connection must be accepted after the previous one is closed")
	}
	w3.Close()

	c4 := &addrConn{addr: &net.TCPAddr{IP: net.ParseIP("::1")}}
	if w := wrapPerIPConn(&cc, c4, 1); w != net.Conn(c4) {
		t.Fatalf("connections without IPv4 address must not be wrapped")
	}
}

func TestServerMaxConnsPerIP(t *testing.T) {
	t.Parallel()

	s := &Server{
		MaxConnsPerIP: 1,
		Logger:        &customLogger{},
	}
	ln, err := s.listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("cannot listen: %s", err)
	}
	defer ln.Close()
	go s.Serve(ln) //nolint:errcheck

	c1, err := net.Dial("tcp4", ln.Addr().String())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	defer c1.Close()
	if _, err = c1.Write([]byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	expected := "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"
	buf := make([]byte, len(expected))
	if err = readFull(c1, buf); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if string(buf) != expected {
		t.Fatalf("unexpected response %q. Expecting %q", buf, expected)
	}

	c2, err := net.Dial("tcp4", ln.Addr().String())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	defer c2.Close()
	c2.Write([]byte("GET / HTTP/1.1\r\n\r\n")) //nolint:errcheck
	c2.SetReadDeadline(time.Now().Add(time.Second)) //nolint:errcheck
	if n, err := c2.Read(buf); n != 0 || err == nil {
		t.Fatalf("the second connection from the same address must be closed, got %q, %v", buf[:n], err)
	}
}

func TestGnetServerMaxConnsPerIP(t *testing.T) {
	t.Parallel()

	gs := newGnetServer(&Server{
		MaxConnsPerIP: 1,
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
	gs.OnClosed(c1, nil)

	c3 := newFakeGnetConn()
	if _, action := gs.OnOpened(c3); action != gnet.None {
		t.Fatalf("unexpected action %v. Expecting %v", action, gnet.None)
	}
	gs.OnClosed(c3, nil)
	if gs.conns != 0 {
		t.Fatalf("unexpected number of connections %d. Expecting 0", gs.conns)
	}
}

func readFull(c net.Conn, buf []byte) error {
	if err := c.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
		return err
	}
	for len(buf) > 0 {
		n, err := c.Read(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// addrConn is a net.Conn with a fixed remote address.
type addrConn struct {
	net.Conn

	addr   net.Addr
	closed bool
}

func (c *addrConn) RemoteAddr() net.Addr {
	return c.addr
}

func (c *addrConn) Close() error {
	c.closed = true
	return nil
}
