package jobs

import (
	"time"

	"go.uber.org/zap"
)

// IdleEvicter drops client sessions unused for longer than maxIdle.
type IdleEvicter interface {
	EvictIdle(maxIdle time.Duration) int
}

// ClientSweepJob releases the event loops of clients that stopped calling in.
// Their provider sessions stay in the session store, so a returning client
// bootstraps back into the signed-in state.
type ClientSweepJob struct {
	clients IdleEvicter
	maxIdle time.Duration
	logger  *zap.Logger
}

func NewClientSweepJob(clients IdleEvicter, maxIdle time.Duration, logger *zap.Logger) *ClientSweepJob {
	return &ClientSweepJob{clients: clients, maxIdle: maxIdle, logger: logger.Named("client_sweep")}
}

// Run evicts idle clients and returns how many were removed.
func (j *ClientSweepJob) Run() int {
	evicted := j.clients.EvictIdle(j.maxIdle)
	if evicted > 0 {
		j.logger.Debug("Evicted idle clients", zap.Int("count", evicted), zap.Duration("max_idle", j.maxIdle))
	}
	return evicted
}
