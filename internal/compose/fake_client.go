package compose

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// FakeClient is a Client for tests. It records every call in order and can
// be primed to fail.
type FakeClient struct {
	mu sync.Mutex

	// Calls holds one entry per operation, e.g. "down", "up",
	// "recreate webui".
	Calls []string

	// PSOutput is returned by PS.
	PSOutput string

	// LogLines are written by Logs before it waits for cancellation.
	LogLines []string

	// LogsFollowing, when set, is closed once Logs has written its lines
	// and is about to wait for cancellation. Cleared after the first Logs
	// call.
	LogsFollowing chan struct{}

	// Err, when set, is returned by every mutating operation.
	Err error
}

var _ Client = &FakeClient{}

// Up records the call.
func (f *FakeClient) Up(ctx context.Context, projectDir string) error {
	return f.record("up")
}

// Down records the call.
func (f *FakeClient) Down(ctx context.Context, projectDir string) error {
	return f.record("down")
}

// Recreate records the call with the service name.
func (f *FakeClient) Recreate(ctx context.Context, projectDir, service string) error {
	return f.record("recreate " + service)
}

// PS returns the primed output.
func (f *FakeClient) PS(ctx context.Context, projectDir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "ps")
	return f.PSOutput, f.Err
}

// Logs writes the primed lines and blocks until the context is cancelled.
func (f *FakeClient) Logs(ctx context.Context, projectDir, service string, w io.Writer) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, "logs "+service)
	lines := f.LogLines
	following := f.LogsFollowing
	f.LogsFollowing = nil
	f.mu.Unlock()
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	if following != nil {
		close(following)
	}
	<-ctx.Done()
	return nil
}

func (f *FakeClient) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
	return f.Err
}
