package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.notebook.dev/notebook/core"
	"go.notebook.dev/notebook/middleware"
	"go.uber.org/zap"
)

var _ core.HTTPService = (*HTTPServiceDefault)(nil)

const shutdownTimeout = 30 * time.Second

func init() {
	core.RegisterService(core.ServiceInfo{
		ID: core.HTTP_SERVICE,
		Factory: func() (core.Service, []core.ContextBuilderOption, error) {
			return NewHTTPService()
		},
	})
}

type HTTPServiceDefault struct {
	ctx    core.Context
	logger *core.Logger
	router *mux.Router
	srv    *http.Server
}

var _ handlers.RecoveryHandlerLogger = (*recoverLogger)(nil)

type recoverLogger struct {
	logger *core.Logger
}

func (r *recoverLogger) Println(v ...interface{}) {
	r.logger.Error("Recovered from panic", zap.Any("panic", v))
}

func NewHTTPService() (*HTTPServiceDefault, []core.ContextBuilderOption, error) {
	_http := &HTTPServiceDefault{
		router: mux.NewRouter(),
	}

	_http.srv = &http.Server{
		Handler:           _http.router,
		ReadHeaderTimeout: 30 * time.Second,
	}

	opts := core.ContextOptions(
		core.ContextWithStartupFunc(func(ctx core.Context) error {
			_http.ctx = ctx
			_http.logger = ctx.Logger()
			return nil
		}),
		core.ContextWithExitFunc(func(ctx core.Context) error {
			return _http.Shutdown()
		}),
	)

	return _http, opts, nil
}

func (h *HTTPServiceDefault) Router() *mux.Router {
	return h.router
}

// Init mounts every registered API below /api.
func (h *HTTPServiceDefault) Init() error {
	h.router.Use(handlers.RecoveryHandler(handlers.RecoveryLogger(&recoverLogger{h.logger}), handlers.PrintRecoveryStack(true)))
	h.srv.Addr = ":" + strconv.FormatUint(uint64(h.ctx.Config().Config().Core.Port), 10)

	apiRouter := h.router.PathPrefix("/api").Subrouter()
	apiRouter.Use(middleware.CorsMiddleware(h.ctx.Config().Config().Core.AllowedOrigins))

	for _, api := range core.GetAPIList() {
		if err := api.Configure(apiRouter); err != nil {
			return err
		}
		h.logger.Debug("configured api", zap.String("api", api.Name()))
	}

	return nil
}

func (h *HTTPServiceDefault) Serve() error {
	ln, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return err
	}

	h.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))

	go func() {
		err := h.srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Fatal("Failed to serve", zap.Error(err))
		}
	}()

	return nil
}

func (h *HTTPServiceDefault) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return h.srv.Shutdown(ctx)
}
