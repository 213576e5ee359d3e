package stress

import (
	"fmt"
	"math"
	"time"
)

// MB is the number of bytes in one megabyte as the tool counts it.
const MB uint64 = 1024 * 1024

// Parameter names used in ConfigurationError messages.
const (
	ParamSize  = "allocation size"
	ParamCount = "allocation count"
	ParamDelay = "delay time"
)

// A Request describes one stress run. Use Validate to build one.
type Request struct {
	BlockSize  uint64
	BlockCount uint64
	StepDelay  time.Duration
	Verbose    bool
}

// SizeMB returns the block size in whole megabytes.
func (r Request) SizeMB() uint64 {
	return r.BlockSize / MB
}

// A ConfigurationError reports a parameter that cannot start a run.
type ConfigurationError struct {
	Param  string
	Value  int64
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s %s", e.Param, e.Reason)
}

// Validate checks the raw parameters and converts them into a Request.
// Size is in megabytes and delay in seconds. The first invalid parameter in
// the order size, count, delay is reported.
func Validate(sizeMB, count, delaySec int64, verbose bool) (Request, error) {
	if sizeMB <= 0 {
		return Request{}, mustBePositive(ParamSize, sizeMB)
	}

	if uint64(sizeMB) > math.MaxUint64/MB {
		return Request{}, &ConfigurationError{
			Param:  ParamSize,
			Value:  sizeMB,
			Reason: "is too large",
		}
	}

	if count <= 0 {
		return Request{}, mustBePositive(ParamCount, count)
	}

	if delaySec <= 0 {
		return Request{}, mustBePositive(ParamDelay, delaySec)
	}

	if delaySec > int64(math.MaxInt64/time.Second) {
		return Request{}, &ConfigurationError{
			Param:  ParamDelay,
			Value:  delaySec,
			Reason: "is too large",
		}
	}

	r := Request{
		BlockSize:  uint64(sizeMB) * MB,
		BlockCount: uint64(count),
		StepDelay:  time.Duration(delaySec) * time.Second,
		Verbose:    verbose,
	}

	return r, nil
}

func mustBePositive(param string, value int64) *ConfigurationError {
	return &ConfigurationError{
		Param:  param,
		Value:  value,
		Reason: "must be positive",
	}
}
