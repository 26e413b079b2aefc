package notebookcmd

import (
	"os"
	"os/signal"
	"syscall"

	"go.notebook.dev/notebook"
	"go.notebook.dev/notebook/core"
	"go.uber.org/zap"
)

func trapSignals() {
	logger := notebook.Context().Logger()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP)

	go func() {
		for sig := range sigs {
			log := logger.With(zap.String("signal", sig.String()))

			switch sig {
			case syscall.SIGQUIT:
				// Open multipart uploads are left for the orphan sweep.
				log.Info("quitting immediately")
				os.Exit(core.ExitCodeForceQuit)
			case syscall.SIGHUP:
				log.Info("ignoring signal")
			default:
				log.Info("shutting down")
				notebook.Shutdown(notebook.ActiveNotebook(), log)
			}
		}
	}()
}
