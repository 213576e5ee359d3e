package stress

import "time"

// Sentinel is the byte written over every block.
const Sentinel byte = 0xE9

// Touch writes value into every byte of buf so that each page of the buffer
// is backed by physical memory.
func Touch(buf []byte, value byte) {
	if len(buf) == 0 {
		return
	}

	buf[0] = value
	for filled := 1; filled < len(buf); filled *= 2 {
		copy(buf[filled:], buf[:filled])
	}
}

// A Sleeper pauses the run between steps.
type Sleeper interface {
	Sleep(d time.Duration)
}

type wallClockSleeper struct{}

func (wallClockSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}
