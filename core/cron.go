package core

import (
	"github.com/go-co-op/gocron/v2"
)

const CRON_SERVICE = "cron"

type CronTaskFunction func(ctx Context) error

type CronService interface {
	// RegisterTask schedules fn to run with the given definition once the scheduler starts.
	RegisterTask(name string, def gocron.JobDefinition, fn CronTaskFunction) error
	Start() error
	Stop() error

	Service
}

// Cronable services contribute recurring tasks.
type Cronable interface {
	RegisterTasks(cron CronService) error
}
