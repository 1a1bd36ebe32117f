// Command comexcl imports one month of the Chile import registry and writes
// the records as a JSON envelope to stdout.
package main

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/comexcl/internal/core"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", core.FormatUserError(err))
		os.Exit(1)
	}
}
