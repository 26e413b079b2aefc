package main

import (
	"fmt"
	"os"

	notebookcmd "go.notebook.dev/notebook/cmd"
	"go.notebook.dev/notebook/core"
)

func main() {
	if err := notebookcmd.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(core.ExitCodeFailedStartup)
	}
}
