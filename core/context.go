package core

import (
	"context"

	"github.com/gookit/event"
	"go.notebook.dev/notebook/config"
	"gorm.io/gorm"
)

type ContextBuilderOption func(Context) (Context, error)

type StartupFunc func(Context) error
type ExitFunc func(Context) error

// Context is the process wide handle passed to every service. It carries the
// shared dependencies plus the lifecycle hooks services register while being built.
type Context struct {
	context.Context
	cancel context.CancelFunc

	cfg    config.Manager
	logger *Logger
	db     *gorm.DB
	events *event.Manager

	services map[string]Service
	startup  []StartupFunc
	exit     []ExitFunc
	exitCode int
}

func NewContext(cfg config.Manager, logger *Logger, options ...ContextBuilderOption) (Context, error) {
	base, cancel := context.WithCancel(context.Background())

	ctx := Context{
		Context:  base,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		events:   event.NewManager("notebook"),
		services: make(map[string]Service),
	}

	for _, opt := range options {
		var err error
		if ctx, err = opt(ctx); err != nil {
			return ctx, err
		}
	}

	return ctx, nil
}

func (ctx *Context) Service(id string) Service {
	return ctx.services[id]
}

func (ctx *Context) StartupFuncs() []StartupFunc {
	return ctx.startup
}

func (ctx *Context) ExitFuncs() []ExitFunc {
	return ctx.exit
}

func (ctx *Context) DB() *gorm.DB {
	return ctx.db
}

func (ctx *Context) Logger() *Logger {
	return ctx.logger
}

func (ctx *Context) Config() config.Manager {
	return ctx.cfg
}

func (ctx *Context) Event() *event.Manager {
	return ctx.events
}

func (ctx *Context) Cancel() {
	ctx.cancel()
}

func (ctx *Context) ExitCode() int {
	return ctx.exitCode
}

func (ctx *Context) SetExitCode(code int) {
	ctx.exitCode = code
}

// GetService fetches a registered service and asserts it to the requested contract.
// It panics when the service is missing, which only happens on a broken dependency list.
func GetService[T any](ctx Context, id string) T {
	svc, ok := ctx.Service(id).(T)
	if !ok {
		panic("service not registered or of wrong type: " + id)
	}

	return svc
}

func ContextWithService(id string, svc Service) ContextBuilderOption {
	return func(ctx Context) (Context, error) {
		ctx.services[id] = svc
		return ctx, nil
	}
}

func ContextWithDB(db *gorm.DB) ContextBuilderOption {
	return func(ctx Context) (Context, error) {
		ctx.db = db
		return ctx, nil
	}
}

// ContextWithEvents attaches the registered event prototypes to the context's event manager.
func ContextWithEvents(events ...Eventer) ContextBuilderOption {
	return func(ctx Context) (Context, error) {
		for _, evt := range events {
			ctx.events.AddEvent(evt)
		}
		return ctx, nil
	}
}

func ContextWithStartupFunc(f StartupFunc) ContextBuilderOption {
	return func(ctx Context) (Context, error) {
		ctx.startup = append(ctx.startup, f)
		return ctx, nil
	}
}

func ContextWithExitFunc(f ExitFunc) ContextBuilderOption {
	return func(ctx Context) (Context, error) {
		ctx.exit = append(ctx.exit, f)
		return ctx, nil
	}
}

func ContextOptions(options ...ContextBuilderOption) []ContextBuilderOption {
	return options
}
