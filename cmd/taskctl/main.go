package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appErrors "github.com/noah-isme/taskroster/pkg/errors"
)

var Version = "dev"

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Manage the task list and move student records through CSV",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.backendName, "backend", "", "Persistence backend: rest, file or redis (default from CLIENT_BACKEND)")

	root.AddCommand(listCmd(a))
	root.AddCommand(addCmd(a))
	root.AddCommand(editCmd(a))
	root.AddCommand(toggleCmd(a))
	root.AddCommand(rmCmd(a))
	root.AddCommand(clearCompletedCmd(a))
	root.AddCommand(exportCmd(a))
	root.AddCommand(bridgeCmd(a))
	return root
}

func printError(w *os.File, err error) {
	appErr := appErrors.FromError(err)
	fmt.Fprintln(w, errorStyle.Render("error: "+appErr.Message))
	for _, d := range appErr.Details {
		fmt.Fprintln(w, "  - "+d)
	}
}
