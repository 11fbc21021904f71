package compose

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"
)

// Client is the narrow interface to the container orchestrator. The manager
// depends only on these operations succeeding or failing; container
// internals are out of scope.
type Client interface {
	// Up starts the full service set defined in projectDir.
	Up(ctx context.Context, projectDir string) error
	// Down stops and removes the full service set. A project that is not
	// running is not an error.
	Down(ctx context.Context, projectDir string) error
	// Recreate restarts a single service without touching its dependencies.
	Recreate(ctx context.Context, projectDir, service string) error
	// PS returns the orchestrator's view of the running services.
	PS(ctx context.Context, projectDir string) (string, error)
	// Logs follows the log stream of one service, writing to w until the
	// context is cancelled.
	Logs(ctx context.Context, projectDir, service string, w io.Writer) error
}

// NewClient returns a Client backed by the docker compose CLI.
func NewClient(logger logr.Logger) Client {
	return &cmdClient{logger: logger.WithName("compose")}
}

type cmdClient struct {
	logger logr.Logger
}

func (c *cmdClient) Up(ctx context.Context, projectDir string) error {
	return c.run(ctx, projectDir, "up", "-d")
}

func (c *cmdClient) Down(ctx context.Context, projectDir string) error {
	return c.run(ctx, projectDir, "down")
}

func (c *cmdClient) Recreate(ctx context.Context, projectDir, service string) error {
	return c.run(ctx, projectDir, "up", "-d", "--force-recreate", "--no-deps", service)
}

func (c *cmdClient) PS(ctx context.Context, projectDir string) (string, error) {
	cmd := c.command(ctx, projectDir, "ps")
	var outb, errb bytes.Buffer
	cmd.Stdout = &outb
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		return "", formatError(cmd, &errb, err)
	}
	return outb.String(), nil
}

func (c *cmdClient) Logs(ctx context.Context, projectDir, service string, w io.Writer) error {
	cmd := c.command(ctx, projectDir, "logs", "--follow", service)
	var errb bytes.Buffer
	cmd.Stdout = w
	cmd.Stderr = &errb
	err := cmd.Run()
	// Cancellation is the normal way to stop following logs.
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return formatError(cmd, &errb, err)
	}
	return nil
}

func (c *cmdClient) run(ctx context.Context, projectDir string, args ...string) error {
	cmd := c.command(ctx, projectDir, args...)
	var errb bytes.Buffer
	cmd.Stderr = &errb
	c.logger.V(1).Info("Running orchestrator command", "args", cmd.Args)
	if err := cmd.Run(); err != nil {
		return formatError(cmd, &errb, err)
	}
	return nil
}

func (c *cmdClient) command(ctx context.Context, projectDir string, args ...string) *exec.Cmd {
	full := append([]string{"compose", "--project-directory", projectDir}, args...)
	return exec.CommandContext(ctx, "docker", full...)
}

// formatError surfaces the orchestrator's stderr alongside the exec error so
// failures are diagnosable from the operator-facing message alone.
func formatError(cmd *exec.Cmd, stderr *bytes.Buffer, err error) error {
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		return fmt.Errorf("command %q failed: %w", strings.Join(cmd.Args, " "), err)
	}
	return fmt.Errorf("command %q failed: %w: %s", strings.Join(cmd.Args, " "), err, msg)
}
