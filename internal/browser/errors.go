package browser

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotRunning  = errors.New("browser not running")
	ErrStaleHandle = errors.New("stale page handle")
	ErrNoFrame     = errors.New("no frame available")
	ErrNoPage      = errors.New("no active page")
)

// staleSignatures are lowercase fragments of debug-protocol errors that
// mean the page or session behind a handle is gone.
var staleSignatures = []string{
	"target closed",
	"target page, context or browser has been closed",
	"page has been closed",
	"session closed",
	"session with given id not found",
	"no target with given id",
	"target not found",
	"detached",
	"inspected target navigated or closed",
	"cannot find context with specified id",
	"use of closed network connection",
}

// IsStale reports whether err means the handle it came from no longer
// points at a live tab.
func IsStale(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStaleHandle) || errors.Is(err, ErrNoPage) {
		return true
	}
	// A deadline on a live page is a timeout, not a dead handle.
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range staleSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
