// Package cmd provides the command-line interface of allocate.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/allocate/datarecording"
	"github.com/sarchlab/allocate/monitoring"
	"github.com/sarchlab/allocate/report"
	"github.com/sarchlab/allocate/stress"
)

// Exit codes of the allocate command.
const (
	ExitOK                = 0
	ExitInvalidArgument   = 1
	ExitAllocationFailure = 2
)

type options struct {
	sizeMB  int64
	count   int64
	delay   int64
	verbose bool

	backend     string
	rss         bool
	record      string
	monitorPort int
	openBrowser bool
}

// runner holds what the command talks to, so tests can replace the clock and
// the allocator.
type runner struct {
	stdout    io.Writer
	stderr    io.Writer
	sleeper   stress.Sleeper
	allocator stress.Allocator
}

type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

func newRootCmd(r *runner) *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "allocate [SIZE] [COUNT] [TIME]",
		Short: "Put a machine's memory under controlled pressure.",
		Long: `allocate creates COUNT (default: 1) memory allocations of SIZE ` +
			`megabytes, with TIME (default: 1) seconds of sleep between each ` +
			`allocation. Every byte of every allocation is written so that ` +
			`the memory is really committed. Once all allocations are made, ` +
			`they are freed in reverse order with the same delay.`,
		Args:          cobra.MaximumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := o.fillFromArgs(cmd, args)
			if err != nil {
				return err
			}

			return r.run(o)
		},
	}

	cmd.SetOut(r.stdout)
	cmd.SetErr(r.stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := cmd.Flags()
	flags.Int64VarP(&o.sizeMB, "size", "m", 0,
		"specifies the size (mb) of allocations")
	flags.Int64VarP(&o.count, "count", "c", 1,
		"specifies the number of allocations")
	flags.Int64VarP(&o.delay, "time", "t", 1,
		"specifies the delay in secs between allocations")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "verbose mode")
	flags.StringVar(&o.backend, "backend", stress.DefaultBackend(),
		"memory source of the blocks, mmap or heap")
	flags.BoolVar(&o.rss, "rss", false,
		"print the resident set size after every total (needs -v)")
	flags.StringVar(&o.record, "record", "",
		"record every step into the SQLite database NAME.sqlite3")
	flags.IntVar(&o.monitorPort, "monitor", -1,
		"serve the run state over HTTP on this port, 0 picks a free port")
	flags.BoolVar(&o.openBrowser, "open", false,
		"open the monitoring page in a browser (needs --monitor)")

	return cmd
}

func (o *options) fillFromArgs(cmd *cobra.Command, args []string) error {
	positional := []struct {
		flag  string
		param string
		value *int64
	}{
		{"size", stress.ParamSize, &o.sizeMB},
		{"count", stress.ParamCount, &o.count},
		{"time", stress.ParamDelay, &o.delay},
	}

	for i, arg := range args {
		p := positional[i]
		if cmd.Flags().Changed(p.flag) {
			continue
		}

		v, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return &stress.ConfigurationError{
				Param:  p.param,
				Reason: fmt.Sprintf("is not a number: %q", arg),
			}
		}

		*p.value = v
	}

	return nil
}

func (r *runner) run(o *options) error {
	req, err := stress.Validate(o.sizeMB, o.count, o.delay, o.verbose)
	if err != nil {
		return err
	}

	builder := stress.MakeBuilder()
	if r.sleeper != nil {
		builder = builder.WithSleeper(r.sleeper)
	}

	allocator := r.allocator
	if allocator == nil {
		allocator, err = stress.NewAllocator(o.backend)
		if err != nil {
			return &usageError{err: err}
		}
	}
	builder = builder.WithAllocator(allocator)

	var sampler *monitoring.ResourceSampler
	if o.rss || o.record != "" || o.monitorPort >= 0 {
		sampler, err = monitoring.NewResourceSampler()
		if err != nil {
			fmt.Fprintf(r.stderr, "Resource sampling disabled: %v\n", err)
		}
	}

	reporter := report.NewStatusReporter(r.stdout, req)
	if o.rss && sampler != nil {
		reporter.WithMemoryTeller(sampler)
	}
	builder = builder.WithHook(reporter)

	if o.record != "" {
		recorder, err := datarecording.New(o.record)
		if err != nil {
			return err
		}
		defer recorder.Close()

		steps := datarecording.NewStepRecorder(recorder)
		if sampler != nil {
			steps.WithMemoryTeller(sampler)
		}
		builder = builder.WithHook(steps)
	}

	if o.monitorPort >= 0 {
		monitor := monitoring.NewMonitor().
			WithWriter(r.stderr).
			WithPortNumber(o.monitorPort)
		if sampler != nil {
			monitor.WithResourceSampler(sampler)
		}

		_, err := monitor.StartServer()
		if err != nil {
			return err
		}
		defer monitor.StopServer()

		if o.openBrowser {
			err = monitor.OpenInBrowser()
			if err != nil {
				fmt.Fprintf(r.stderr, "Cannot open browser: %v\n", err)
			}
		}

		builder = builder.WithHook(monitor)
	}

	return builder.Build(req).Run()
}

func (r *runner) execute(args []string) int {
	cmd := newRootCmd(r)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return r.exitCode(err)
}

func (r *runner) exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cfgErr *stress.ConfigurationError
	var failure *stress.AllocationFailure
	var usageErr *usageError

	switch {
	case errors.As(err, &cfgErr):
		fmt.Fprintf(r.stderr, "Invalid argument: %v!\n", cfgErr)
		return ExitInvalidArgument
	case errors.As(err, &failure):
		fmt.Fprintf(r.stderr, "Allocation failed: %v\n", failure)
		fmt.Fprintf(r.stderr, "Released %d blocks and the block table.\n",
			failure.Released)
		return ExitAllocationFailure
	case errors.As(err, &usageErr):
		fmt.Fprintf(r.stderr, "Invalid argument: %v\n", usageErr)
		return ExitInvalidArgument
	default:
		fmt.Fprintf(r.stderr, "Error: %v\n", err)
		return ExitInvalidArgument
	}
}

// Execute runs the command with the process arguments and exits with its
// exit code.
func Execute() {
	r := &runner{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	atexit.Exit(r.execute(os.Args[1:]))
}
