// Package server assembles the service: browser session, dispatcher,
// viewer hub and HTTP routes, and runs them until shutdown.
//
// On startup a port held by another instance of the service is not an
// error: Run returns ErrAlreadyRunning and the caller exits cleanly.
package server
