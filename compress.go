package httplite

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

var (
	gzipReaderPool sync.Pool
	gzipWriterPool sync.Pool
)

func acquireGzipReader(r io.Reader) (*gzip.Reader, error) {
	v := gzipReaderPool.Get()
	if v == nil {
		return gzip.NewReader(r)
	}
	zr := v.(*gzip.Reader)
	if err := zr.Reset(r); err != nil {
		return nil, err
	}
	return zr, nil
}

func releaseGzipReader(zr *gzip.Reader) {
	zr.Close()
	gzipReaderPool.Put(zr)
}

// gzipEpoch is written as the header modification time. The gzip writer
// encodes the zero time.Time as a non-zero timestamp.
var gzipEpoch = time.Unix(0, 0)

// acquireGzipWriter returns a writer in its initial state: Reset drops
// both the compressor state and the gzip header of the previous use.
func acquireGzipWriter(w io.Writer) *gzip.Writer {
	v := gzipWriterPool.Get()
	if v == nil {
		zw, err := gzip.NewWriterLevel(w, gzip.DefaultCompression)
		if err != nil {
			panic(fmt.Sprintf("BUG: unexpected error from gzip.NewWriterLevel: %s", err))
		}
		zw.ModTime = gzipEpoch
		return zw
	}
	zw := v.(*gzip.Writer)
	zw.Reset(w)
	zw.ModTime = gzipEpoch
	return zw
}

func releaseGzipWriter(zw *gzip.Writer) {
	gzipWriterPool.Put(zw)
}

// AppendGzipBytes appends gzipped src to dst and returns the resulting dst.
//
// The whole of src is compressed in one shot. The output is deterministic:
// the gzip header carries no name, comment or modification time.
func AppendGzipBytes(dst, src []byte) []byte {
	w := &byteSliceWriter{b: dst}
	zw := acquireGzipWriter(w)
	zw.Write(src) //nolint:errcheck
	zw.Close()    //nolint:errcheck
	releaseGzipWriter(zw)
	return w.b
}

// WriteGunzip writes ungzipped p to w and returns the number of uncompressed
// bytes written to w.
func WriteGunzip(w io.Writer, p []byte) (int, error) {
	r := &byteSliceReader{b: p}
	zr, err := acquireGzipReader(r)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, zr)
	releaseGzipReader(zr)
	nn := int(n)
	if int64(nn) != n {
		return 0, fmt.Errorf("too much data gunzipped: %d", n)
	}
	return nn, err
}

// AppendGunzipBytes appends gunzipped src to dst and returns the resulting dst.
func AppendGunzipBytes(dst, src []byte) ([]byte, error) {
	w := &byteSliceWriter{b: dst}
	_, err := WriteGunzip(w, src)
	return w.b, err
}

type byteSliceWriter struct {
	b []byte
}

func (w *byteSliceWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

type byteSliceReader struct {
	b []byte
}

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}
