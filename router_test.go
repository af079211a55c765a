package httplite

import (
	"reflect"
	"testing"
)

func TestLookupRoute(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		method  string
		path    string
		handler RequestHandler
		rest    string
	}{
		{"GET", "/", rootHandler, ""},
		{"GET", "/user-agent", userAgentHandler, ""},
		{"GET", "/echo/", echoHandler, ""},
		{"GET", "/echo/abc", echoHandler, "abc"},
		{"GET", "/echo/a/b/c", echoHandler, "a/b/c"},
		{"GET", "/echo/%20", echoHandler, "%20"},
		{"GET", "/files/foo", fileReadHandler, "foo"},
		{"POST", "/files/foo", fileWriteHandler, "foo"},
		{"GET", "/echo", notFoundHandler, ""},
		{"GET", "/user-agent/", notFoundHandler, ""},
		{"GET", "/nonexistent", notFoundHandler, ""},
		{"POST", "/", notFoundHandler, ""},
		{"POST", "/echo/abc", notFoundHandler, ""},
		{"PUT", "/files/foo", notFoundHandler, ""},
		{"get", "/", notFoundHandler, ""},
		{"HEAD", "/", notFoundHandler, ""},
	} {
		h, rest := lookupRoute([]byte(tc.method), []byte(tc.path))
		if reflect.ValueOf(h).Pointer() != reflect.ValueOf(tc.handler).Pointer() {
			t.Fatalf("unexpected handler for %s %s", tc.method, tc.path)
		}
		if string(rest) != tc.rest {
			t.Fatalf("unexpected path rest %q for %s %s. Expecting %q", rest, tc.method, tc.path, tc.rest)
		}
	}
}

func TestRouteSetsPathRest(t *testing.T) {
	t.Parallel()

	s := &Server{}
	ctx := s.acquireCtx(&readWriter{})
	defer s.releaseCtx(ctx)

	if err := ctx.Request.Parse([]byte("GET /echo/hello HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	Route(ctx)
	if string(ctx.PathRest()) != "hello" {
		t.Fatalf("unexpected path rest %q. Expecting %q", ctx.PathRest(), "hello")
	}
	if string(ctx.Response.Body()) != "hello" {
		t.Fatalf("unexpected body %q. Expecting %q", ctx.Response.Body(), "hello")
	}
}
