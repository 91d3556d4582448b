// Package iox holds small io.Closer conveniences shared across packages.
package iox

import "io"

// DiscardClose closes c, ignoring the close error. Meant for defers on
// response bodies and files whose close failure has no recovery path:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc adapts c's Close to the no-argument function t.Cleanup and
// b.Cleanup expect:
//
//	t.Cleanup(iox.CloseFunc(store))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr invokes fn and ignores its error. For deferred cleanup that
// is not a Close, such as a flush:
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) { _ = fn() }
