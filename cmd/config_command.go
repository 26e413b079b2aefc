package notebookcmd

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

func newConfigCommand(configFlag *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the notebook configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration, writing defaults for missing keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Init(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			core := cfg.Config().Core
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config: %s\n", cfg.ConfigFile())
			fmt.Fprintf(out, "listen: :%d\n", core.Port)
			fmt.Fprintf(out, "bucket: %s\n", core.Storage.S3.Bucket)
			fmt.Fprintf(out, "chunk size: %s\n", units.BytesSize(float64(core.Upload.ChunkSize)))
			fmt.Fprintf(out, "direct upload limit: %s\n", units.BytesSize(float64(core.Upload.DirectLimit)))
			fmt.Fprintf(out, "clustered: %t\n", core.ClusterEnabled())

			return nil
		},
	})

	return configCmd
}
