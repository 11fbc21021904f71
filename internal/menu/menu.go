// Package menu is the interactive operator surface: a blocking numbered menu
// that applies one mutation at a time. The loop is the top-level recovery
// boundary; every operation error is printed and the menu is shown again.
package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/localserve/localserve/internal/compose"
	"github.com/localserve/localserve/internal/mutator"
	"github.com/localserve/localserve/internal/store"
	"github.com/localserve/localserve/internal/updater"
)

const menuText = `
localserve
 1) Select active model
 2) Set context-window size
 3) Reset context-window size to engine default
 4) Download a model
 5) Add whitelist entry
 6) Enable/disable whitelist
 7) Show status
 8) Follow service logs
 9) Restart all services
10) Update deployment definition
11) Exit
`

// Menu runs the interactive loop.
type Menu struct {
	mut        *mutator.Mutator
	upd        *updater.Updater
	orch       compose.Client
	projectDir string
	updateURL  string

	in     *bufio.Scanner
	out    io.Writer
	logger logr.Logger
}

// New returns a new Menu reading operator input from in and printing to out.
func New(
	mut *mutator.Mutator,
	upd *updater.Updater,
	orch compose.Client,
	projectDir string,
	updateURL string,
	in io.Reader,
	out io.Writer,
	logger logr.Logger,
) *Menu {
	return &Menu{
		mut:        mut,
		upd:        upd,
		orch:       orch,
		projectDir: projectDir,
		updateURL:  updateURL,
		in:         bufio.NewScanner(in),
		out:        out,
		logger:     logger.WithName("menu"),
	}
}

// Run shows the menu until the operator exits or input ends. It always
// returns nil on a graceful exit; operation failures are reported inline and
// never terminate the loop.
func (m *Menu) Run(ctx context.Context) error {
	for {
		fmt.Fprint(m.out, menuText)
		choice, ok := m.prompt("Choice: ")
		if !ok {
			return nil
		}

		var err error
		switch strings.TrimSpace(choice) {
		case "1":
			err = m.selectModel(ctx)
		case "2":
			err = m.setContextSize(ctx)
		case "3":
			err = m.mut.ResetContextSize(ctx)
		case "4":
			err = m.downloadModel(ctx)
		case "5":
			err = m.addWhitelistEntry(ctx)
		case "6":
			err = m.toggleWhitelist(ctx)
		case "7":
			err = m.showStatus(ctx)
		case "8":
			err = m.followLogs(ctx)
		case "9":
			err = m.restart(ctx)
		case "10":
			err = m.applyUpdate(ctx)
		case "11":
			fmt.Fprintln(m.out, "Bye.")
			return nil
		default:
			fmt.Fprintln(m.out, "Please choose 1-11.")
			continue
		}
		if err != nil {
			fmt.Fprintf(m.out, "Error: %s\n", err)
		}
	}
}

func (m *Menu) selectModel(ctx context.Context) error {
	models, err := m.mut.ListModels()
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return errors.New("no models in the model store; download one first")
	}
	for i, name := range models {
		fmt.Fprintf(m.out, "%2d) %s\n", i+1, name)
	}
	answer, ok := m.prompt("Model number: ")
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil || n < 1 || n > len(models) {
		return fmt.Errorf("pick a number between 1 and %d", len(models))
	}
	name := models[n-1]
	if err := m.mut.SetActiveModel(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Active model is now %s.\n", name)
	return nil
}

func (m *Menu) setContextSize(ctx context.Context) error {
	answer, ok := m.prompt("Context size (positive integer, or 'default'): ")
	if !ok {
		return nil
	}
	answer = strings.TrimSpace(answer)
	if answer == "default" {
		return m.mut.ResetContextSize(ctx)
	}
	n, err := strconv.Atoi(answer)
	if err != nil {
		return fmt.Errorf("context size must be a positive integer or 'default'")
	}
	if err := m.mut.SetContextSize(ctx, n); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Context size is now %d.\n", n)
	return nil
}

func (m *Menu) downloadModel(ctx context.Context) error {
	answer, ok := m.prompt("Model URL: ")
	if !ok {
		return nil
	}
	if err := m.mut.DownloadModel(ctx, answer); err != nil {
		return err
	}
	fmt.Fprintln(m.out, "Download complete.")
	return nil
}

func (m *Menu) addWhitelistEntry(ctx context.Context) error {
	answer, ok := m.prompt("IPv4 address: ")
	if !ok {
		return nil
	}
	added, err := m.mut.AddWhitelistEntry(ctx, strings.TrimSpace(answer))
	if err != nil {
		return err
	}
	if !added {
		fmt.Fprintln(m.out, "Address is already whitelisted; nothing to do.")
		return nil
	}
	fmt.Fprintln(m.out, "Address whitelisted.")
	return nil
}

func (m *Menu) toggleWhitelist(ctx context.Context) error {
	state, err := m.mut.ToggleWhitelist(ctx)
	if errors.Is(err, store.ErrWhitelistStateUnknown) {
		return fmt.Errorf("whitelist state is unrecognizable; repair %s by hand", "whitelist.conf")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Whitelist is now %s.\n", state)
	return nil
}

func (m *Menu) showStatus(ctx context.Context) error {
	model, err := m.mut.CurrentModel()
	if err != nil {
		return err
	}
	size, err := m.mut.CurrentContextSize()
	if err != nil {
		return err
	}
	entries, state, err := m.mut.WhitelistEntries()
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Active model:  %s\n", model)
	if size > 0 {
		fmt.Fprintf(m.out, "Context size:  %d\n", size)
	} else {
		fmt.Fprintln(m.out, "Context size:  engine default")
	}
	fmt.Fprintf(m.out, "Whitelist:     %s (%s)\n", state, strings.Join(entries, ", "))

	ps, err := m.orch.PS(ctx, m.projectDir)
	if err != nil {
		return err
	}
	fmt.Fprintln(m.out, ps)
	return nil
}

// followLogs streams one service's logs until the operator interrupts, then
// returns to the menu rather than terminating the process.
func (m *Menu) followLogs(ctx context.Context) error {
	answer, ok := m.prompt(fmt.Sprintf("Service (%s/%s) [%s]: ", compose.ServiceLlama, compose.ServiceWebUI, compose.ServiceLlama))
	if !ok {
		return nil
	}
	service := strings.TrimSpace(answer)
	if service == "" {
		service = compose.ServiceLlama
	}
	if service != compose.ServiceLlama && service != compose.ServiceWebUI {
		return fmt.Errorf("unknown service %q", service)
	}

	fmt.Fprintln(m.out, "Following logs; interrupt (Ctrl-C) to return to the menu.")
	followCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if err := m.orch.Logs(followCtx, m.projectDir, service, m.out); err != nil {
		return err
	}
	fmt.Fprintln(m.out, "Stopped following logs.")
	return nil
}

func (m *Menu) restart(ctx context.Context) error {
	if err := m.orch.Down(ctx, m.projectDir); err != nil {
		return err
	}
	if err := m.orch.Up(ctx, m.projectDir); err != nil {
		return err
	}
	fmt.Fprintln(m.out, "All services restarted.")
	return nil
}

func (m *Menu) applyUpdate(ctx context.Context) error {
	outcome, err := m.upd.CheckAndApply(ctx, m.updateURL)
	if err != nil {
		return err
	}
	switch outcome {
	case updater.OutcomeApplied:
		fmt.Fprintln(m.out, "Deployment definition updated and services redeployed.")
	default:
		fmt.Fprintln(m.out, "Already up to date.")
	}
	return nil
}

func (m *Menu) prompt(label string) (string, bool) {
	fmt.Fprint(m.out, label)
	if !m.in.Scan() {
		return "", false
	}
	return m.in.Text(), true
}
