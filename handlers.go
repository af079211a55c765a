package httplite

import (
	"errors"
	"io/fs"
	"strings"
)

func rootHandler(ctx *RequestCtx) {
	ctx.Response.SetStatusCode(StatusOK)
	ctx.Response.addContentLength()
}

// echoHandler answers with the path remainder, gzipped if the client
// accepts gzip.
func echoHandler(ctx *RequestCtx) {
	rest := ctx.PathRest()
	if !ctx.Request.Header.HasAcceptEncoding("gzip") {
		ctx.Success(contentTypeText, rest)
		return
	}

	resp := &ctx.Response
	resp.SetStatusCode(StatusOK)
	resp.AddHeaderBytes(HeaderContentEncoding, strGzip)
	resp.AddHeader(HeaderContentType, contentTypeText)
	resp.body = AppendGzipBytes(resp.body[:0], rest)
	resp.addContentLength()
}

func userAgentHandler(ctx *RequestCtx) {
	ua, ok := ctx.Request.Header.Lookup(HeaderUserAgent)
	if !ok {
		ctx.Empty(StatusBadRequest, contentTypeText)
		return
	}
	ctx.Success(contentTypeText, ua)
}

func fileReadHandler(ctx *RequestCtx) {
	st := ctx.Storage()
	if st == nil {
		ctx.Empty(StatusNotFound, contentTypeOctet)
		return
	}
	name := string(ctx.PathRest())
	data, err := st.ReadAll(name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, ErrInvalidName) {
			ctx.Logger().Printf("cannot read %q: %s", name, err)
		}
		ctx.Empty(StatusNotFound, contentTypeOctet)
		return
	}
	ctx.Success(contentTypeOctet, data)
}

func fileWriteHandler(ctx *RequestCtx) {
	if ctx.Request.Header.ContentLength() < 0 {
		ctx.Logger().Printf("%s", ErrMissingContentLength)
		ctx.Empty(StatusBadRequest, contentTypeOctet)
		return
	}
	st := ctx.Storage()
	if st == nil {
		ctx.Logger().Printf("cannot write files: no storage configured")
		ctx.Empty(StatusInternalServerError, contentTypeOctet)
		return
	}
	name := string(ctx.PathRest())
	if err := st.WriteAll(name, ctx.Request.Body()); err != nil {
		if errors.Is(err, ErrInvalidName) {
			ctx.Empty(StatusBadRequest, contentTypeOctet)
			return
		}
		ctx.Logger().Printf("cannot write %q: %s", name, err)
		ctx.Empty(StatusInternalServerError, contentTypeOctet)
		return
	}
	ctx.Empty(StatusCreated, contentTypeOctet)
}

// notFoundHandler answers 404 with the content type of the path family,
// so clients always get well-formed headers.
func notFoundHandler(ctx *RequestCtx) {
	contentType := contentTypeText
	if strings.HasPrefix(b2s(ctx.Request.Path()), filesPrefix) {
		contentType = contentTypeOctet
	}
	ctx.Empty(StatusNotFound, contentType)
}
