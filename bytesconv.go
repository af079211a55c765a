package httplite

import (
	"errors"
	"fmt"
	"unsafe"
)

// AppendUint appends n to dst and returns dst (which may be newly allocated).
func AppendUint(dst []byte, n int) []byte {
	if n < 0 {
		panic("BUG: int must be positive")
	}

	var b [20]byte
	buf := b[:]
	i := len(buf)
	var q int
	for n >= 10 {
		i--
		q = n / 10
		buf[i] = '0' + byte(n-q*10)
		n = q
	}
	i--
	buf[i] = '0' + byte(n)

	return append(dst, buf[i:]...)
}

// maxIntChars keeps ParseUint results far below the int overflow point
// on 32-bit platforms.
const maxIntChars = 9

var errEmptyInt = errors.New("empty integer")

// ParseUint parses a non-negative decimal integer from buf.
//
// Every byte of buf must be a digit.
func ParseUint(buf []byte) (int, error) {
	n := len(buf)
	if n == 0 {
		return -1, errEmptyInt
	}
	if n > maxIntChars {
		return -1, fmt.Errorf("too long int %q", buf)
	}
	v := 0
	for i := 0; i < n; i++ {
		k := buf[i] - '0'
		if k > 9 {
			return -1, fmt.Errorf("unexpected char %q at position %d in %q. Expected 0-9", buf[i], i, buf)
		}
		v = 10*v + int(k)
	}
	return v, nil
}

// b2s converts byte slice to a string without memory allocation.
//
// The returned string must not outlive b's next modification.
func b2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// s2b converts string to a byte slice without memory allocation.
//
// The returned slice must not be modified.
func s2b(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
