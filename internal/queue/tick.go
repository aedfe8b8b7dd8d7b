package queue

import (
	"context"
	"log/slog"

	"github.com/kizunaapp/kizuna/internal/service"
)

// TaskTypeTick is the hourly generation tick task.
const TaskTypeTick = "challenge:tick"

// TickCron fires at minute zero of every hour.
const TickCron = "0 * * * *"

// TickHandler runs the scheduler tick when a tick task is delivered.
func TickHandler(scheduler *service.SchedulerService) Handler {
	return func(ctx context.Context, _ Task) error {
		n, err := scheduler.ScheduleTick(ctx)
		if err != nil {
			return err
		}
		slog.Debug("tick task handled", "generated", n)
		return nil
	}
}
