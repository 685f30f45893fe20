package interfaces

import "context"

type SchedulerInterface interface {
	Init()
	Stop()
	// DailyCheck applies the day rollover to the signed-in user's stats.
	DailyCheck(ctx context.Context) error
}
