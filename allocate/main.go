// Command allocate allocates memory blocks at timed intervals to observe how
// a machine behaves under memory pressure.
package main

import "github.com/sarchlab/allocate/allocate/cmd"

func main() {
	cmd.Execute()
}
