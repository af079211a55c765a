package httplite

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// RequestHandler must process incoming requests.
//
// RequestHandler must not keep references to ctx or its members after
// returning: the request aliases the connection's receive buffer, which is
// overwritten by the next read.
type RequestHandler func(ctx *RequestCtx)

// ListenAndServe serves the route table on the given TCP address,
// reading and writing files through st.
//
// st may be nil, in which case the /files/ routes never succeed.
func ListenAndServe(addr string, st Storage) error {
	s := &Server{
		Storage: st,
	}
	return s.ListenAndServe(addr)
}

// Server implements HTTP server.
//
// Default Server settings should satisfy the majority of Server users.
// Adjust Server settings only if you really understand the consequences.
//
// It is forbidden copying Server instances. Create new Server instances
// instead.
type Server struct {
	// Handler for processing incoming requests.
	//
	// Route is used if not set.
	Handler RequestHandler

	// Storage backing the /files/ routes.
	//
	// File reads answer 404 and file writes answer 500 if not set.
	Storage Storage

	// Per-connection receive buffer size. A request, including its body,
	// must fit into a single read of this size.
	//
	// DefaultReadBufferSize is used if 0.
	ReadBufferSize int

	// Maximum number of headers per request. Requests with more headers
	// are rejected by closing the connection.
	//
	// DefaultMaxRequestHeaders is used if 0.
	MaxRequestHeaders int

	// Maximum duration for waiting on each read from a connection,
	// including the wait for the next request on a kept-alive connection.
	//
	// By default read timeout is unlimited.
	ReadTimeout time.Duration

	// Maximum duration for writing a response.
	//
	// By default response write timeout is unlimited.
	WriteTimeout time.Duration

	// The maximum number of concurrent connections the server may serve.
	// Connections accepted over the limit are closed immediately.
	//
	// DefaultConcurrency is used if 0.
	Concurrency int

	// Maximum number of concurrent connections from a single IPv4 address.
	// Extra connections are closed immediately.
	//
	// By default the number of connections per address is unlimited.
	MaxConnsPerIP int

	// Idle connection workers are stopped after this duration.
	//
	// 10 seconds are used if 0.
	MaxIdleWorkerDuration time.Duration

	// Listen with SO_REUSEPORT, TCP_DEFER_ACCEPT and TCP_FASTOPEN enabled
	// in ListenAndServe. Only tcp4 is supported then.
	ReusePort bool

	// Logs all connection errors, including the ones caused by clients
	// going away (broken pipe, connection reset, i/o timeout).
	LogAllErrors bool

	// Logger, which is used by RequestCtx.Logger() and for server errors.
	//
	// By default standard logger from log package is used.
	Logger Logger

	// Metrics collects server counters. Optional.
	Metrics *Metrics

	ctxPool          sync.Pool
	perIPConnCounter perIPConnCounter
}

const (
	// DefaultConcurrency is the maximum number of concurrent connections
	// used when Server.Concurrency is 0.
	DefaultConcurrency = 256 * 1024

	// DefaultReadBufferSize is the receive buffer size used when
	// Server.ReadBufferSize is 0.
	DefaultReadBufferSize = 1024
)

// RequestCtx contains incoming request and manages outgoing response.
//
// It is forbidden copying RequestCtx instances.
type RequestCtx struct {
	// Incoming request.
	Request Request

	// Outgoing response.
	Response Response

	// Unique id of the request.
	ID uint64

	// Start time for the request processing.
	Time time.Time

	logger ctxLogger
	s      *Server
	c      io.ReadWriteCloser

	// Receive buffer owned by the connection. Overwritten by every read.
	buf []byte

	// Framed response for event-loop engines writing it after the handler returns.
	wbuf []byte

	pathRest []byte
}

type remoteAddrer interface {
	RemoteAddr() net.Addr
}

type readDeadliner interface {
	SetReadDeadline(time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(time.Time) error
}

// Logger is used for logging formatted messages.
type Logger interface {
	// Printf must have the same semantics as log.Printf.
	Printf(format string, args ...interface{})
}

type ctxLogger struct {
	ctx    *RequestCtx
	logger Logger
}

func (cl *ctxLogger) Printf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	ctx := cl.ctx
	req := &ctx.Request
	cl.logger.Printf("%.3f #%016X - %s - %s %s - %s",
		time.Since(ctx.Time).Seconds(), ctx.ID, ctx.RemoteAddr(), req.Method(), req.Path(), s)
}

var zeroIPAddr = &net.IPAddr{
	IP: net.IPv4zero,
}

// RemoteAddr returns client address for the given request.
func (ctx *RequestCtx) RemoteAddr() net.Addr {
	x, ok := ctx.c.(remoteAddrer)
	if !ok {
		return zeroIPAddr
	}
	return x.RemoteAddr()
}

// PathRest returns the part of the request path following the prefix of
// the matched route, e.g. "foo/bar" for "/echo/foo/bar".
//
// It is empty for exact routes.
func (ctx *RequestCtx) PathRest() []byte {
	return ctx.pathRest
}

// Storage returns the server storage. It may be nil.
func (ctx *RequestCtx) Storage() Storage {
	return ctx.s.Storage
}

// Success sets 200 status, Content-Type and body together with a matching
// Content-Length.
//
// It is safe modifying body buffer after the Success() call.
func (ctx *RequestCtx) Success(contentType string, body []byte) {
	ctx.SetResponse(StatusOK, contentType, body)
}

// SetResponse sets status code, Content-Type and body together with
// a matching Content-Length.
func (ctx *RequestCtx) SetResponse(statusCode int, contentType string, body []byte) {
	resp := &ctx.Response
	resp.SetStatusCode(statusCode)
	resp.AddHeader(HeaderContentType, contentType)
	resp.SetBody(body)
	resp.addContentLength()
}

// Empty sets the given status code and Content-Type with an empty body.
func (ctx *RequestCtx) Empty(statusCode int, contentType string) {
	ctx.SetResponse(statusCode, contentType, nil)
}

// Logger returns logger, which may be used for logging arbitrary
// request-specific messages inside RequestHandler.
//
// Each message logged via returned logger contains request-specific information
// such as request id, remote address, request method and request path.
func (ctx *RequestCtx) Logger() Logger {
	if ctx.logger.ctx == nil {
		ctx.logger.ctx = ctx
	}
	if ctx.logger.logger == nil {
		ctx.logger.logger = ctx.s.logger()
	}
	return &ctx.logger
}

// ListenAndServe serves HTTP requests from the given TCP4 addr.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := s.listen("tcp4", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves incoming connections from the given listener.
//
// Serve blocks until the given listener returns permanent error.
// This error is returned from Serve, unless it is caused by closing ln,
// in which case nil is returned.
func (s *Server) Serve(ln net.Listener) error {
	var lastOverflowErrorTime time.Time
	var lastPerIPErrorTime time.Time
	var c net.Conn
	var err error

	maxWorkersCount := s.getConcurrency()
	wp := &workerPool{
		WorkerFunc:            s.serveConn,
		MaxWorkersCount:       maxWorkersCount,
		MaxIdleWorkerDuration: s.MaxIdleWorkerDuration,
		LogAllErrors:          s.LogAllErrors,
		Logger:                s.logger(),
	}
	wp.Start()

	for {
		if c, err = acceptConn(s, ln); err != nil {
			wp.Stop()
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.Metrics.connAccepted()
		if s.MaxConnsPerIP > 0 {
			pic := wrapPerIPConn(&s.perIPConnCounter, c, s.MaxConnsPerIP)
			if pic == nil {
				s.Metrics.connRejected()
				if time.Since(lastPerIPErrorTime) > time.Minute {
					s.logger().Printf("The number of connections from %s exceeds MaxConnsPerIP=%d",
						c.RemoteAddr(), s.MaxConnsPerIP)
					lastPerIPErrorTime = time.Now()
				}
				continue
			}
			c = pic
		}
		if !wp.Serve(c) {
			s.Metrics.connRejected()
			c.Close()
			if time.Since(lastOverflowErrorTime) > time.Minute {
				s.logger().Printf("The incoming connection cannot be served, because %d concurrent connections are served. "+
					"Try increasing Server.Concurrency", maxWorkersCount)
				lastOverflowErrorTime = time.Now()
			}
			// Give the busy workers a chance to finish.
			runtime.Gosched()
		}
	}
}

func acceptConn(s *Server, ln net.Listener) (net.Conn, error) {
	for {
		c, err := ln.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Temporary() { //nolint:staticcheck
				s.logger().Printf("Temporary error when accepting new connections: %s", netErr)
				time.Sleep(time.Second)
				continue
			}
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				s.logger().Printf("Permanent error when accepting new connections: %s", err)
			}
			return nil, err
		}
		return c, nil
	}
}

var defaultLogger = Logger(log.New(os.Stderr, "", log.LstdFlags))

func (s *Server) logger() Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return defaultLogger
}

func (s *Server) getConcurrency() int {
	n := s.Concurrency
	if n <= 0 {
		n = DefaultConcurrency
	}
	return n
}

func (s *Server) maxIdleWorkerDuration() time.Duration {
	if s.MaxIdleWorkerDuration <= 0 {
		return 10 * time.Second
	}
	return s.MaxIdleWorkerDuration
}

func (s *Server) readBufferSize() int {
	n := s.ReadBufferSize
	if n <= 0 {
		n = DefaultReadBufferSize
	}
	return n
}

func (s *Server) handler() RequestHandler {
	if s.Handler != nil {
		return s.Handler
	}
	return Route
}

// ServeConn serves HTTP requests from the given connection until the peer
// closes it or an error occurs.
//
// ServeConn returns nil if the peer closed the connection cleanly.
// It returns non-nil error otherwise.
//
// Connection c must deliver every request in a single Read call.
//
// ServeConn closes c before returning.
func (s *Server) ServeConn(c io.ReadWriteCloser) error {
	err := s.serveConn(c)
	err1 := c.Close()
	if err == nil {
		err = err1
	}
	return err
}

// serveConn runs the connection loop. It leaves c unclosed.
func (s *Server) serveConn(c io.ReadWriteCloser) error {
	s.Metrics.connOpened()
	defer s.Metrics.connClosed()

	var rd readDeadliner
	readTimeout := s.ReadTimeout
	if readTimeout > 0 {
		rd, _ = c.(readDeadliner)
	}

	var wd writeDeadliner
	writeTimeout := s.WriteTimeout
	if writeTimeout > 0 {
		wd, _ = c.(writeDeadliner)
	}

	ctx := s.acquireCtx(c)
	defer s.releaseCtx(ctx)

	var (
		err       error
		n         int
		respond   bool
		closeConn bool
	)
	for {
		if rd != nil {
			if err = rd.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
				break
			}
		}
		n, err = c.Read(ctx.buf)
		if n == 0 {
			// The peer has gone.
			if err == io.EOF {
				err = nil
			}
			break
		}

		respond, closeConn = s.serveRead(ctx, ctx.buf[:n])
		if respond {
			if wd != nil {
				if err = wd.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
					break
				}
			}
			if _, werr := ctx.Response.WriteTo(c); werr != nil {
				err = fmt.Errorf("error when writing response: %w", werr)
				break
			}
		}
		if closeConn {
			break
		}
		if err != nil {
			// The request has been served, but the read that carried it failed.
			if err == io.EOF {
				err = nil
			}
			break
		}
	}
	return err
}

// serveRead parses the request in b and runs the handler for it.
//
// respond is false if no response may be written, closeConn is true if the
// connection must be closed after the optional response.
func (s *Server) serveRead(ctx *RequestCtx, b []byte) (respond, closeConn bool) {
	ctx.ID++
	ctx.Time = time.Now()
	ctx.Response.Reset()
	ctx.pathRest = nil

	if err := ctx.Request.Parse(b); err != nil {
		s.Metrics.parseFailed()
		if !IsBadRequestError(err) {
			s.logger().Printf("error when parsing request from %s: %s", ctx.RemoteAddr(), err)
			return false, true
		}
		ctx.Logger().Printf("%s", err)
		ctx.Empty(StatusBadRequest, contentTypeText)
		ctx.Response.SetConnectionClose()
		s.Metrics.requestServed(StatusBadRequest)
		return true, true
	}

	s.handler()(ctx)
	s.Metrics.requestServed(ctx.Response.StatusCode())
	return true, ctx.Response.ConnectionClose()
}

var globalCtxID uint64

func (s *Server) acquireCtx(c io.ReadWriteCloser) *RequestCtx {
	v := s.ctxPool.Get()
	var ctx *RequestCtx
	if v == nil {
		ctx = &RequestCtx{
			s: s,
		}
	} else {
		ctx = v.(*RequestCtx)
	}
	if n := s.readBufferSize(); cap(ctx.buf) < n {
		ctx.buf = make([]byte, n)
	} else {
		ctx.buf = ctx.buf[:n]
	}
	ctx.Request.SetMaxHeaders(s.MaxRequestHeaders)
	ctx.ID = atomic.AddUint64(&globalCtxID, 1) << 32
	ctx.c = c
	return ctx
}

func (s *Server) releaseCtx(ctx *RequestCtx) {
	ctx.c = nil
	ctx.Request.Reset()
	ctx.pathRest = nil
	s.ctxPool.Put(ctx)
}
