package task

import (
	"context"
	"log/slog"

	"github.com/angas/spotwindow/config"
	"github.com/angas/spotwindow/forecast"
	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/types"
	"github.com/robfig/cron/v3"
)

type Tasks struct {
	cron            *cron.Cron
	cnfg            *config.AppConfig
	Ingestion       *Ingestion
	PriceTask       func()
	TomorrowTask    func()
	MaintenanceTask func() // nil when the store has no housekeeping
	PublishTask     func()
}

// NewTasks builds the scheduled jobs. Creating the price task fetches prices right away when
// the store lacks today's data.
func NewTasks(
	ing *Ingestion,
	maintainer Maintainer,
	prices types.PriceProvider,
	assembler *forecast.Assembler,
	sinks []Sink,
	cnfg *config.AppConfig,
) *Tasks {
	logger := slog.Default().With("module", "tasks")
	t := &Tasks{
		cron:         cron.New(cron.WithLocation(hours.Location())),
		cnfg:         cnfg,
		Ingestion:    ing,
		PriceTask:    NewPriceIngestionTask(logger.With(slog.String("task", "price_ingestion")), ing),
		TomorrowTask: NewTomorrowPriceTask(logger.With(slog.String("task", "tomorrow_price")), ing),
		PublishTask:  NewPublishTask(logger.With(slog.String("task", "publish")), prices, assembler, sinks...),
	}
	if maintainer != nil {
		t.MaintenanceTask = NewMaintenanceTask(logger.With(slog.String("task", "maintenance")), maintainer, cnfg)
	}
	return t
}

func (t *Tasks) Run() {
	_, err := t.cron.AddFunc(t.cnfg.Scheduler.GetRunAt(), t.PriceTask)
	if err != nil {
		panic(err)
	}
	_, err = t.cron.AddFunc(t.cnfg.Scheduler.GetTomorrowRunAt(), t.TomorrowTask)
	if err != nil {
		panic(err)
	}
	_, err = t.cron.AddFunc(t.cnfg.Scheduler.GetPublishRunAt(), t.PublishTask)
	if err != nil {
		panic(err)
	}
	if t.MaintenanceTask != nil {
		_, err = t.cron.AddFunc(t.cnfg.Scheduler.GetMaintenanceRunAt(), t.MaintenanceTask)
		if err != nil {
			panic(err)
		}
	}
	t.cron.Start()
}

func (t *Tasks) Entries() []cron.Entry {
	return t.cron.Entries()
}

func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}
