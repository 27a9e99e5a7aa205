// pepmass - Peptide precursor and fragment mass calculator
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/pepmass/cmd/pepmass/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
