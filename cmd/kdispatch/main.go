// Command kdispatch inspects image layouts and element types, lists and
// tunes work-group partitions, and manages the persisted tuning table.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
