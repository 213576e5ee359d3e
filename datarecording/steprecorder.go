package datarecording

import (
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/allocate/hooking"
	"github.com/sarchlab/allocate/stress"
)

// StepTable is the table that holds one row per lifecycle step.
const StepTable = "allocate_steps"

// A StepEntry is one recorded lifecycle step.
type StepEntry struct {
	RunID      string
	Seq        int64
	Phase      string
	Event      string
	SlotIndex  int64
	Occupied   int64
	TotalBytes int64
	RSSBytes   int64
	WallTimeNs int64
}

// A MemoryTeller reports the resident memory of the running process.
type MemoryTeller interface {
	ResidentBytes() (uint64, error)
}

// StepRecorder is a hook that records every lifecycle step.
type StepRecorder struct {
	recorder DataRecorder
	runID    string
	rss      MemoryTeller
	now      func() time.Time
}

// NewStepRecorder creates a StepRecorder and its table.
func NewStepRecorder(recorder DataRecorder) *StepRecorder {
	recorder.CreateTable(StepTable, StepEntry{})

	return &StepRecorder{
		recorder: recorder,
		runID:    xid.New().String(),
		now:      time.Now,
	}
}

// WithMemoryTeller makes the recorder store the resident set size with each
// step.
func (r *StepRecorder) WithMemoryTeller(t MemoryTeller) *StepRecorder {
	r.rss = t
	return r
}

// RunID returns the identifier stored with every row of this run.
func (r *StepRecorder) RunID() string {
	return r.runID
}

// Func records the step. Steps that end a run flush the recorder.
func (r *StepRecorder) Func(ctx hooking.HookCtx) {
	s, ok := ctx.Item.(stress.Snapshot)
	if !ok {
		return
	}

	entry := StepEntry{
		RunID:      r.runID,
		Seq:        int64(ctx.Seq),
		Phase:      s.Phase.String(),
		Event:      ctx.Pos.Name,
		SlotIndex:  int64(s.Index),
		Occupied:   int64(s.Occupied),
		TotalBytes: int64(s.Total),
		RSSBytes:   -1,
		WallTimeNs: r.now().UnixNano(),
	}

	if r.rss != nil {
		rss, err := r.rss.ResidentBytes()
		if err == nil {
			entry.RSSBytes = int64(rss)
		}
	}

	r.recorder.InsertData(StepTable, entry)

	if ctx.Pos == stress.HookPosTableReleased ||
		ctx.Pos == stress.HookPosAllocationFailed {
		err := r.recorder.Flush()
		if err != nil {
			panic(err)
		}
	}
}
