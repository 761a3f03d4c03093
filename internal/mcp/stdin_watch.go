package mcp

import (
	"context"
	"os"
	"time"

	"interviewlab/internal/logging"
)

// DefaultParentPoll is how often WatchParent checks the parent pid.
var DefaultParentPoll = 2 * time.Second

// WatchParent monitors for parent process death in a background goroutine.
// When the parent pid changes (the agent host exited or restarted), it calls
// cancelFn so the stdio server shuts down instead of lingering.
//
// It must not read from stdin: the SDK's StdioTransport owns stdin and any
// stolen byte corrupts the JSON-RPC stream.
//
// The goroutine exits when ctx is canceled or parent death is detected.
func WatchParent(ctx context.Context, cancelFn context.CancelFunc) {
	ppid := os.Getppid()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(DefaultParentPoll):
				if os.Getppid() != ppid {
					logging.New("mcp").Warn("parent process died, initiating shutdown", "parent_pid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}
