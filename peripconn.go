package httplite

import (
	"net"
	"sync"
)

// perIPConnCounter counts open connections per client IPv4 address.
type perIPConnCounter struct {
	pool sync.Pool
	m    map[uint32]int
	lock sync.Mutex
}

// Register adds a connection from ip and returns the number of open
// connections from ip, including the new one.
func (cc *perIPConnCounter) Register(ip uint32) int {
	cc.lock.Lock()
	if cc.m == nil {
		cc.m = make(map[uint32]int)
	}
	n := cc.m[ip] + 1
	cc.m[ip] = n
	cc.lock.Unlock()
	return n
}

func (cc *perIPConnCounter) Unregister(ip uint32) {
	cc.lock.Lock()
	defer cc.lock.Unlock()
	if cc.m == nil {
		panic("BUG: perIPConnCounter.Register() wasn't called")
	}
	n := cc.m[ip] - 1
	if n <= 0 {
		delete(cc.m, ip)
		return
	}
	cc.m[ip] = n
}

// perIPConn unregisters itself from the counter on Close.
type perIPConn struct {
	net.Conn

	counter *perIPConnCounter
	ip      uint32
}

func acquirePerIPConn(conn net.Conn, ip uint32, counter *perIPConnCounter) net.Conn {
	v := counter.pool.Get()
	if v == nil {
		return &perIPConn{
			Conn:    conn,
			counter: counter,
			ip:      ip,
		}
	}
	c := v.(*perIPConn)
	c.Conn = conn
	c.ip = ip
	return c
}

func (c *perIPConn) Close() error {
	err := c.Conn.Close()
	c.counter.Unregister(c.ip)
	c.Conn = nil
	c.counter.pool.Put(c)
	return err
}

// wrapPerIPConn registers c and returns it wrapped, or nil after closing c
// if its address already holds maxConns connections.
//
// Connections without an IPv4 remote address are not limited.
func wrapPerIPConn(counter *perIPConnCounter, c net.Conn, maxConns int) net.Conn {
	ip := addrUint32IP(c.RemoteAddr())
	if ip == 0 {
		return c
	}
	if n := counter.Register(ip); n > maxConns {
		counter.Unregister(ip)
		c.Close()
		return nil
	}
	return acquirePerIPConn(c, ip, counter)
}

// addrUint32IP returns the IPv4 address of addr, or 0 for other addresses.
func addrUint32IP(addr net.Addr) uint32 {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return 0
	}
	return ip2uint32(tcpAddr.IP.To4())
}

func ip2uint32(ip net.IP) uint32 {
	if len(ip) != 4 {
		return 0
	}
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}
