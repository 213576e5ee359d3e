// Package report prints the progress of a stress run for a human operator.
package report

import (
	"fmt"
	"io"

	"github.com/sarchlab/allocate/hooking"
	"github.com/sarchlab/allocate/stress"
)

// A MemoryTeller reports the resident memory of the running process.
type MemoryTeller interface {
	ResidentBytes() (uint64, error)
}

// StatusReporter prints the running total after every step of a verbose run
// and stays silent otherwise.
type StatusReporter struct {
	w   io.Writer
	req stress.Request
	rss MemoryTeller
}

// NewStatusReporter creates a reporter that writes to w.
func NewStatusReporter(w io.Writer, req stress.Request) *StatusReporter {
	return &StatusReporter{
		w:   w,
		req: req,
	}
}

// WithMemoryTeller makes the reporter add the resident set size after each
// total.
func (r *StatusReporter) WithMemoryTeller(t MemoryTeller) *StatusReporter {
	r.rss = t
	return r
}

// Func prints the line that belongs to the hook site.
func (r *StatusReporter) Func(ctx hooking.HookCtx) {
	if !r.req.Verbose {
		return
	}

	s, ok := ctx.Item.(stress.Snapshot)
	if !ok {
		return
	}

	if ctx.Pos == stress.HookPosPhaseStart {
		r.printBanner(s.Phase)
		return
	}

	if stress.TotalChanged(ctx.Pos) {
		r.PrintTotal(s.Total)
	}
}

// PrintTotal prints the running total in megabytes.
func (r *StatusReporter) PrintTotal(total uint64) {
	fmt.Fprintf(r.w, "Total allocated size: %.2f M\n", toMB(total))

	if r.rss == nil {
		return
	}

	rss, err := r.rss.ResidentBytes()
	if err != nil {
		fmt.Fprintf(r.w, "Resident set size: unavailable (%v)\n", err)
		return
	}

	fmt.Fprintf(r.w, "Resident set size: %.2f M\n", toMB(rss))
}

func (r *StatusReporter) printBanner(p stress.Phase) {
	switch p {
	case stress.PhaseInit:
		fmt.Fprintf(r.w,
			"Making %d allocations, each with size %dM, "+
				"with %d secs delay in between\n\n",
			r.req.BlockCount, r.req.SizeMB(), int64(r.req.StepDelay.Seconds()))
		fmt.Fprintln(r.w, "Creating array of memory block pointers")
	case stress.PhaseAllocating:
		fmt.Fprint(r.w, "Allocation starts:\n----------\n")
	case stress.PhaseDeallocating:
		fmt.Fprint(r.w, "\nDeallocation starts:\n----------\n")
	case stress.PhaseTeardown:
		fmt.Fprintln(r.w, "Freeing array of memory block pointers")
	}
}

func toMB(bytes uint64) float64 {
	return float64(bytes) / float64(stress.MB)
}
