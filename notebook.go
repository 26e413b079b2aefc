package notebook

import (
	"errors"
	"os"
	"sync"

	"go.notebook.dev/notebook/core"
	"go.notebook.dev/notebook/db"
	"go.notebook.dev/notebook/event"
	"go.uber.org/zap"
)

var (
	activeNotebook Notebook
)

type Notebook interface {
	Init() error
	Start() error
	Stop() error
	Context() core.Context
	Serve() error
}

type NotebookImpl struct {
	ctx   core.Context
	ctxMu sync.RWMutex
}

func (n *NotebookImpl) Init() error {
	ctx := n.Context()

	ctx.Logger().Info("Initializing notebook")

	db.LogCacheMode(ctx.Config(), ctx.Logger())

	_, ctxOpts, err := db.NewDatabase(ctx)
	if err != nil {
		ctx.Logger().Error("Error opening database", zap.Error(err))
		return err
	}

	opts, err := n.initServices(ctx)
	if err != nil {
		return err
	}
	ctxOpts = append(ctxOpts, opts...)

	opts, err = n.initAPIs(ctx)
	if err != nil {
		return err
	}
	ctxOpts = append(ctxOpts, opts...)

	ctxOpts = append(ctxOpts, core.ContextWithEvents(core.GetEvents()...))
	ctx, err = core.NewContext(ctx.Config(), ctx.Logger(), ctxOpts...)

	if err != nil {
		ctx.Logger().Error("Error creating context", zap.Error(err))
		return err
	}

	n.SetContext(ctx)

	return nil
}

func (n *NotebookImpl) Start() error {
	ctx := n.Context()
	ctx.Logger().Info("Starting notebook")

	if err := n.startStartupFuncs(ctx); err != nil {
		return err
	}

	if err := n.startCron(ctx); err != nil {
		return err
	}

	if err := n.startHTTP(ctx); err != nil {
		return err
	}

	if err := event.FireBootCompleteEvent(ctx); err != nil {
		ctx.Logger().Error("Error firing boot complete event", zap.Error(err))
		return err
	}

	return nil
}

func (n *NotebookImpl) Stop() error {
	ctx := n.Context()
	ctx.Logger().Info("Stopping notebook")

	n.runExitFuncs(ctx)

	return nil
}

func (n *NotebookImpl) Serve() error {
	ctx := n.Context()
	ctx.Logger().Info("Serving notebook")

	httpSvc, ok := ctx.Service(core.HTTP_SERVICE).(core.HTTPService)
	if !ok {
		ctx.Logger().Error("HTTP service not found")
		return errors.New("http service not found")
	}

	return httpSvc.Serve()
}

func (n *NotebookImpl) initServices(ctx core.Context) (ctxOpts []core.ContextBuilderOption, err error) {
	svcs := core.GetServices()

	for _, svcInfo := range svcs {
		svc, opts, err := svcInfo.Factory()
		if err != nil {
			ctx.Logger().Error("Error creating service", zap.String("service", svcInfo.ID), zap.Error(err))
			return nil, err
		}

		if opts != nil {
			ctxOpts = append(ctxOpts, opts...)
		}

		ctxOpts = append(ctxOpts, core.ContextWithService(svcInfo.ID, svc))
	}

	return ctxOpts, nil
}

func (n *NotebookImpl) initAPIs(ctx core.Context) (ctxOpts []core.ContextBuilderOption, err error) {
	for _, api := range core.GetAPIList() {
		initApi, ok := api.(core.APIInit)
		if !ok {
			continue
		}

		opts, err := initApi.Init()
		if err != nil {
			ctx.Logger().Error("Error initializing api", zap.String("api", api.Name()), zap.Error(err))
			return nil, err
		}

		ctxOpts = append(ctxOpts, opts...)
	}

	return ctxOpts, nil
}

func (n *NotebookImpl) startStartupFuncs(ctx core.Context) error {
	for _, startupFunc := range ctx.StartupFuncs() {
		if err := startupFunc(ctx); err != nil {
			ctx.Logger().Error("Error starting notebook", zap.Error(err))
			return err
		}
	}

	return nil
}

func (n *NotebookImpl) startCron(ctx core.Context) error {
	cronSvc, ok := ctx.Service(core.CRON_SERVICE).(core.CronService)
	if !ok {
		ctx.Logger().Error("Cron service not found")
		return errors.New("cron service not found")
	}

	return cronSvc.Start()
}

func (n *NotebookImpl) startHTTP(ctx core.Context) error {
	httpSvc, ok := ctx.Service(core.HTTP_SERVICE).(core.HTTPService)
	if !ok {
		ctx.Logger().Error("HTTP service not found")
		return errors.New("http service not found")
	}

	return httpSvc.Init()
}

func (n *NotebookImpl) runExitFuncs(ctx core.Context) {
	for _, exitFunc := range ctx.ExitFuncs() {
		if err := exitFunc(ctx); err != nil {
			ctx.Logger().Error("Error stopping notebook", zap.Error(err))
		}
	}
}

func NewNotebook(ctx core.Context) *NotebookImpl {
	return &NotebookImpl{
		ctx: ctx,
	}
}

func (n *NotebookImpl) Context() core.Context {
	n.ctxMu.RLock()
	defer n.ctxMu.RUnlock()
	return n.ctx
}

func (n *NotebookImpl) SetContext(ctx core.Context) {
	n.ctxMu.Lock()
	defer n.ctxMu.Unlock()
	n.ctx = ctx
}

func NewActiveNotebook(ctx core.Context) {
	activeNotebook = NewNotebook(ctx)
}

func Start() error {
	return activeNotebook.Start()
}

func Init() error {
	return activeNotebook.Init()
}

func Stop() error {
	return activeNotebook.Stop()
}

func Serve() error {
	return activeNotebook.Serve()
}

func Context() core.Context {
	return activeNotebook.Context()
}

func ActiveNotebook() Notebook {
	return activeNotebook
}

func Shutdown(activeNotebook Notebook, logger *zap.Logger) {
	ctx := activeNotebook.Context()

	if logger == nil {
		logger = ctx.Logger().Logger
	}

	ctx.Cancel()
	<-ctx.Done()

	if err := activeNotebook.Stop(); err != nil {
		logger.Error("Failed to stop notebook", zap.Error(err))
		ctx.SetExitCode(core.ExitCodeFailedQuit)
	}

	os.Exit(ctx.ExitCode())
}
