package httplite

import "bytes"

type route struct {
	method  string
	path    string
	prefix  bool
	handler RequestHandler
}

// routes is the route table. Exact routes are matched before prefix
// routes; within each group the first declared match wins.
var routes = [...]route{
	{method: MethodGet, path: "/", handler: rootHandler},
	{method: MethodGet, path: "/user-agent", handler: userAgentHandler},
	{method: MethodGet, path: "/echo/", prefix: true, handler: echoHandler},
	{method: MethodGet, path: "/files/", prefix: true, handler: fileReadHandler},
	{method: MethodPost, path: "/files/", prefix: true, handler: fileWriteHandler},
}

const filesPrefix = "/files/"

// Route dispatches ctx to the handler registered in the route table
// for the request method and path, or to the not-found handler.
//
// Route is the default Server.Handler.
func Route(ctx *RequestCtx) {
	h, rest := lookupRoute(ctx.Request.Method(), ctx.Request.Path())
	ctx.pathRest = rest
	h(ctx)
}

// lookupRoute returns the handler for the given method and path together
// with the path remainder after the matched prefix.
func lookupRoute(method, path []byte) (RequestHandler, []byte) {
	m := b2s(method)
	p := b2s(path)
	for i := range routes {
		r := &routes[i]
		if !r.prefix && r.method == m && r.path == p {
			return r.handler, path[len(path):]
		}
	}
	for i := range routes {
		r := &routes[i]
		if r.prefix && r.method == m && bytes.HasPrefix(path, s2b(r.path)) {
			return r.handler, path[len(r.path):]
		}
	}
	return notFoundHandler, nil
}
