package controller

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/random-winner-game/internal/logging"
	"github.com/R3E-Network/random-winner-game/internal/metrics"
)

// cronLogger routes robfig/cron diagnostics to logrus and counts skipped
// ticks.
type cronLogger struct {
	log *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		metrics.RecordPollTick(metrics.ResultSkipped, 0)
		l.log.Entry().WithFields(kvFields(keysAndValues)).Warn("previous refresh still running, tick skipped")
		return
	}
	l.log.Entry().WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Entry().WithError(err).WithFields(kvFields(keysAndValues)).Error("cron: " + msg)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}

// newPoller builds a scheduler whose job never overlaps itself and survives
// panics.
func newPoller(log *logging.Logger) *cron.Cron {
	l := cronLogger{log: log}
	return cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
}
