// Package console implements the line-oriented inspection shell.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"codeberg.org/mutker/agxmon/internal/errors"
	"codeberg.org/mutker/agxmon/internal/history"
	"codeberg.org/mutker/agxmon/internal/monitor"
	"codeberg.org/mutker/agxmon/internal/telemetry"
)

const defaultHistoryRows = 10

// Controller is the part of the monitor the console drives
type Controller interface {
	Start() error
	Stop() error
	Status() (monitor.Status, error)
	LatestData() (telemetry.Snapshot, error)
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string) error
}

// Console reads commands line by line and writes replies to out
type Console struct {
	ctrl     Controller
	hist     history.Recorder
	out      io.Writer
	now      func() time.Time
	commands map[string]command
}

// New returns a console. hist may be nil.
func New(ctrl Controller, hist history.Recorder, out io.Writer) *Console {
	c := &Console{
		ctrl: ctrl,
		hist: hist,
		out:  out,
		now:  time.Now,
	}
	c.commands = map[string]command{
		"status":  {"status", "connection state and counters", c.status},
		"data":    {"data", "latest telemetry snapshot", c.data},
		"start":   {"start", "start monitoring", c.start},
		"stop":    {"stop", "stop monitoring", c.stop},
		"history": {"history [n]", "recorded snapshots, newest first", c.history},
		"help":    {"help", "list commands", c.help},
		"quit":    {"quit", "exit agxmon", nil},
	}

	return c
}

// Run executes commands from in until quit, end of input or ctx is done.
// It reports whether quit was requested.
func (c *Console) Run(ctx context.Context, in io.Reader) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case line, ok := <-lines:
			if !ok {
				return false, <-scanErr
			}
			if c.Execute(ctx, line) {
				return true, nil
			}
			c.prompt()
		}
	}
}

// Execute runs a single command line and reports whether it was quit
func (c *Console) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	name := strings.ToLower(fields[0])
	cmd, ok := c.commands[name]
	if !ok {
		fmt.Fprintf(c.out, "unknown command %q, try help\n", fields[0])
		return false
	}
	if cmd.run == nil {
		return true
	}

	if err := cmd.run(ctx, fields[1:]); err != nil {
		fmt.Fprintf(c.out, "%s: %v\n", name, err)
	}

	return false
}

func (c *Console) prompt() {
	fmt.Fprint(c.out, "agxmon> ")
}

func (c *Console) help(context.Context, []string) error {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, name := range names {
		cmd := c.commands[name]
		fmt.Fprintf(tw, "  %s\t%s\n", cmd.usage, cmd.help)
	}

	return tw.Flush()
}

func (c *Console) start(context.Context, []string) error {
	if err := c.ctrl.Start(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "monitor started")

	return nil
}

func (c *Console) stop(context.Context, []string) error {
	if err := c.ctrl.Stop(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "monitor stopped")

	return nil
}

func (c *Console) status(context.Context, []string) error {
	st, err := c.ctrl.Status()
	if err != nil {
		return err
	}

	lastMessage := "never"
	if !st.LastMessageTime.IsZero() {
		lastMessage = c.now().Sub(st.LastMessageTime).Round(time.Second).String() + " ago"
	}
	lastError := st.LastError
	if lastError == "" {
		lastError = "-"
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "state:\t%s\n", st.State)
	fmt.Fprintf(tw, "running:\t%t\n", st.Running)
	fmt.Fprintf(tw, "url:\t%s\n", st.URL)
	fmt.Fprintf(tw, "uptime:\t%s\n", st.Uptime.Round(time.Second))
	fmt.Fprintf(tw, "connected:\t%s (%.1f%%)\n", st.ConnectedTime.Round(time.Second), st.Reliability)
	fmt.Fprintf(tw, "reconnects:\t%d (attempts %d)\n", st.TotalReconnects, st.ReconnectAttempts)
	fmt.Fprintf(tw, "messages:\t%d (parse errors %d)\n", st.MessagesReceived, st.ParseErrors)
	fmt.Fprintf(tw, "last message:\t%s\n", lastMessage)
	fmt.Fprintf(tw, "data valid:\t%t\n", st.DataValid)
	fmt.Fprintf(tw, "last error:\t%s\n", lastError)

	return tw.Flush()
}

func (c *Console) data(context.Context, []string) error {
	snap, err := c.ctrl.LatestData()
	if err != nil {
		return err
	}
	if snap.CapturedAt.IsZero() {
		fmt.Fprintln(c.out, "no data received")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "valid:\t%t\n", snap.Valid)
	fmt.Fprintf(tw, "timestamp:\t%s\n", snap.Timestamp)
	fmt.Fprintf(tw, "age:\t%s\n", c.now().Sub(snap.CapturedAt).Round(time.Second))
	fmt.Fprintf(tw, "cpu:\t%d cores, %.1f%% avg\n", snap.CPU.CoreCount, snap.CPU.AverageUsage())
	for _, core := range snap.CPU.ActiveCores() {
		fmt.Fprintf(tw, "  core %d:\t%.1f%% @ %.0f MHz\n", core.ID, core.Usage, core.Frequency)
	}
	fmt.Fprintf(tw, "ram:\t%s\n", formatUsage(snap.Memory.RAM))
	fmt.Fprintf(tw, "swap:\t%s\n", formatUsage(snap.Memory.Swap))
	t := snap.Temperature
	fmt.Fprintf(tw, "temperature:\tcpu %.1f gpu %.1f soc0 %.1f soc1 %.1f tj %.1f\n", t.CPU, t.GPU, t.SOC0, t.SOC1, t.TJ)
	p := snap.Power
	fmt.Fprintf(tw, "power:\tgpu_soc %.0f cpu_cv %.0f sys_5v0 %.0f (total %.0f %s)\n",
		p.GPUSOC.Current, p.CPUCV.Current, p.SYS5V0.Current, p.TotalCurrent(), p.GPUSOC.Unit)
	fmt.Fprintf(tw, "gpu:\t%.1f%%\n", snap.GPU.Load3D)

	return tw.Flush()
}

func (c *Console) history(ctx context.Context, args []string) error {
	if c.hist == nil || !c.hist.Enabled() {
		fmt.Fprintln(c.out, "history is disabled")
		return nil
	}

	n := defaultHistoryRows
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return errors.New().WithData(errors.ErrInvalidArgument, args[0]).WithMessage("invalid count")
		}
		n = v
	}

	entries, err := c.hist.Recent(ctx, n)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "no history recorded")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "captured\tcpu%\tram\ttj\tpower\tgpu%")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f/%.1f %s\t%.1f\t%.0f\t%.1f\n",
			e.CapturedAt.Local().Format(time.TimeOnly), e.CPUUsage,
			e.RAMUsed, e.RAMTotal, e.RAMUnit, e.TempTJ, e.PowerTotal, e.GPULoad)
	}

	return tw.Flush()
}

func formatUsage(u telemetry.MemoryUsage) string {
	if u.Total == 0 {
		return "-"
	}

	return fmt.Sprintf("%.1f/%.1f %s (cached %.1f)", u.Used, u.Total, u.Unit, u.Cached)
}
