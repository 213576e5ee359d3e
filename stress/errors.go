package stress

import "fmt"

// An AllocationFailure ends a run when memory cannot be acquired. By the time
// it is returned every block acquired before the failure and the slot table
// have been released.
type AllocationFailure struct {
	// Index is the slot whose block could not be allocated, or -1 if the
	// slot table itself could not be created.
	Index int

	// Size is the number of bytes that was requested, or the number of
	// slots when the slot table could not be created.
	Size uint64

	// Released is the number of blocks released while unwinding.
	Released int

	Err error
}

func (e *AllocationFailure) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("cannot create block table of %d slots: %v",
			e.Size, e.Err)
	}

	return fmt.Sprintf("cannot allocate block %d of %d bytes: %v",
		e.Index, e.Size, e.Err)
}

func (e *AllocationFailure) Unwrap() error {
	return e.Err
}
