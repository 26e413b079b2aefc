package notebookcmd

import (
	"github.com/spf13/cobra"
	"go.notebook.dev/notebook/config"
)

// NewRootCommand builds the notebook CLI. Running it without a subcommand serves the API.
func NewRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "notebook",
		Short:         "Notebook file manager backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configFlag)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(&configFlag))
	rootCmd.AddCommand(newConfigCommand(&configFlag))

	return rootCmd
}

func newServeCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the upload API and background sweeps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*configFlag)
		},
	}
}

func loadConfig(configFile string) (*config.ManagerDefault, error) {
	if configFile != "" {
		return config.NewManagerFromFile(configFile)
	}

	return config.NewManager()
}
