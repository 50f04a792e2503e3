package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrAlreadyRunning means another instance of the service owns the address.
var ErrAlreadyRunning = errors.New("browserd already running")

const queryTimeout = 2 * time.Second

func isAddrInUse(err error) bool {
	if errors.Is(err, syscall.EADDRINUSE) {
		return true
	}
	// Windows and some wrapped errors only carry the text.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "address already in use") ||
		strings.Contains(msg, "only one usage of each socket address")
}

// statusReply is the part of the root status response that identifies
// this service.
type statusReply struct {
	Running *bool `json:"running"`
	Port    *int  `json:"port"`
}

// queryExisting asks whatever listens on addr for its status and reports
// whether it answers like this service.
func queryExisting(ctx context.Context, addr string) (bool, error) {
	client := resty.New().
		SetTimeout(queryTimeout).
		SetHeader("Accept", "application/json")

	var status statusReply
	resp, err := client.R().
		SetContext(ctx).
		SetResult(&status).
		Get("http://" + addr + "/")
	if err != nil {
		return false, fmt.Errorf("query %s: %w", addr, err)
	}
	if !resp.IsSuccess() {
		return false, fmt.Errorf("query %s: status %d", addr, resp.StatusCode())
	}
	return status.Running != nil && status.Port != nil, nil
}
