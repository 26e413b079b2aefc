package notebookcmd

import (
	"fmt"

	"go.notebook.dev/notebook"
	_ "go.notebook.dev/notebook/api"
	"go.notebook.dev/notebook/core"
	_ "go.notebook.dev/notebook/service"
	"go.uber.org/zap"
)

// serve boots every registered service and blocks until a signal shuts the process down.
func serve(configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := core.NewLogger(cfg)

	if err = cfg.Init(); err != nil {
		return fmt.Errorf("initialize config: %w", err)
	}

	logger.SetLevelFromConfig()

	ctx, err := core.NewContext(cfg, logger)
	if err != nil {
		return fmt.Errorf("create context: %w", err)
	}

	notebook.NewActiveNotebook(ctx)

	if err = notebook.Init(); err != nil {
		logger.Error("Failed to initialize notebook", zap.Error(err))
		return err
	}

	if err = notebook.Start(); err != nil {
		logger.Error("Failed to start notebook", zap.Error(err))
		return err
	}

	trapSignals()

	if err = notebook.Serve(); err != nil {
		logger.Error("Failed to serve notebook", zap.Error(err))
		return err
	}

	<-notebook.Context().Done()

	return nil
}
