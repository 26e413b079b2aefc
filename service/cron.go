package service

import (
	"errors"

	redislock "github.com/go-co-op/gocron-redis-lock/v2"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.notebook.dev/notebook/config"
	"go.notebook.dev/notebook/core"
	"go.uber.org/zap"
)

var _ core.CronService = (*CronServiceDefault)(nil)

var ErrCronNotStarted = errors.New("cron scheduler not initialized")

func init() {
	core.RegisterService(core.ServiceInfo{
		ID: core.CRON_SERVICE,
		Factory: func() (core.Service, []core.ContextBuilderOption, error) {
			return NewCronService()
		},
	})
}

type CronServiceDefault struct {
	ctx       core.Context
	logger    *core.Logger
	enabled   bool
	scheduler gocron.Scheduler
}

func NewCronService() (*CronServiceDefault, []core.ContextBuilderOption, error) {
	cron := &CronServiceDefault{}

	opts := core.ContextOptions(
		core.ContextWithStartupFunc(func(ctx core.Context) error {
			cron.ctx = ctx
			cron.logger = ctx.Logger()
			cron.enabled = ctx.Config().Config().Core.Cron.Enabled

			scheduler, err := newScheduler(ctx.Config())
			if err != nil {
				return err
			}
			cron.scheduler = scheduler

			return nil
		}),
		core.ContextWithExitFunc(func(ctx core.Context) error {
			return cron.Stop()
		}),
	)

	return cron, opts, nil
}

func newCronService(ctx core.Context, scheduler gocron.Scheduler, enabled bool) *CronServiceDefault {
	return &CronServiceDefault{
		ctx:       ctx,
		logger:    ctx.Logger(),
		enabled:   enabled,
		scheduler: scheduler,
	}
}

// newScheduler uses a redis lock when clustered so a task runs on one node per tick.
func newScheduler(cm config.Manager) (gocron.Scheduler, error) {
	cfg := cm.Config()
	if cfg.Core.ClusterEnabled() && cfg.Core.Clustered.RedisEnabled() {
		locker, err := redislock.NewRedisLocker(cfg.Core.Clustered.Redis.Client(), redislock.WithTries(1), redislock.WithExpiry(cfg.Core.Cron.LockExpiry))
		if err != nil {
			return nil, err
		}

		return gocron.NewScheduler(gocron.WithDistributedLocker(locker))
	}

	return gocron.NewScheduler()
}

func (c *CronServiceDefault) RegisterTask(name string, def gocron.JobDefinition, fn core.CronTaskFunction) error {
	if c.scheduler == nil {
		return ErrCronNotStarted
	}

	task := gocron.NewTask(func() error {
		return fn(c.ctx)
	})

	_, err := c.scheduler.NewJob(def, task,
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithEventListeners(
			gocron.AfterJobRunsWithError(func(jobID uuid.UUID, jobName string, err error) {
				c.logger.Error("Job failed", zap.String("job", jobName), zap.String("id", jobID.String()), zap.Error(err))
			}),
		),
	)
	if err != nil {
		return err
	}

	c.logger.Debug("registered cron task", zap.String("task", name))

	return nil
}

func (c *CronServiceDefault) Start() error {
	if c.scheduler == nil {
		return ErrCronNotStarted
	}

	if !c.enabled {
		c.logger.Info("cron disabled, background sweeps will not run")
		return nil
	}

	c.scheduler.Start()

	return nil
}

func (c *CronServiceDefault) Stop() error {
	if c.scheduler == nil {
		return nil
	}

	return c.scheduler.Shutdown()
}
