// Command ferry copies and moves files. Installed or linked under the name
// cp or mv it behaves as that command; otherwise cp and mv are subcommands.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args))
}

func run(argv []string) int {
	cmd := newRootCmd(filepath.Base(argv[0]))
	cmd.SetArgs(argv[1:])

	executed, err := cmd.ExecuteC()
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	// Flag parsing and other errors raised before a run starts.
	fmt.Fprintf(os.Stderr, "%s: %v\n", executed.Name(), err)
	fmt.Fprintf(os.Stderr, "Try '%s --help' for more information.\n", executed.CommandPath())
	return 1
}

// newRootCmd picks the command tree for the name the binary was invoked as.
func newRootCmd(argv0 string) *cobra.Command {
	switch argv0 {
	case "cp":
		return newCopyCmd("cp")
	case "mv":
		return newMoveCmd("mv")
	}

	root := &cobra.Command{
		Use:           "ferry",
		Short:         "Copy and move files with per-file atomic replacement",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCopyCmd("cp"), newMoveCmd("mv"), newDocsCmd())
	return root
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
