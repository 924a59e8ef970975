// Command gaiaeq-host reads and edits the equalizer of a GAIA headset over
// an RFCOMM serial link.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
