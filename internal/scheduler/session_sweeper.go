package scheduler

import (
	"context"
	"time"

	"github.com/ikkim/storefront-cart/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Sweeper drops sessions that have been idle for at least idle.
type Sweeper interface {
	Sweep(ctx context.Context, idle time.Duration) int
}

// SessionSweeper periodically evicts idle cart sessions.
type SessionSweeper struct {
	cron    *cron.Cron
	sweeper Sweeper
	spec    string
	idle    time.Duration
}

// NewSessionSweeper runs sweeper on the cron spec (e.g. "@every 5m").
func NewSessionSweeper(sweeper Sweeper, spec string, idle time.Duration) *SessionSweeper {
	return &SessionSweeper{
		cron:    cron.New(),
		sweeper: sweeper,
		spec:    spec,
		idle:    idle,
	}
}

func (s *SessionSweeper) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.run)
	if err != nil {
		logger.Error("Failed to add cron job for session sweep", err, map[string]interface{}{
			"spec": s.spec,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Session sweeper started", map[string]interface{}{
		"spec":     s.spec,
		"idle_ttl": s.idle.String(),
	})
	return nil
}

func (s *SessionSweeper) run() {
	evicted := s.sweeper.Sweep(context.Background(), s.idle)
	logger.Debug("Session sweep finished", map[string]interface{}{
		"evicted": evicted,
	})
}

// Stop waits for a running sweep to finish.
func (s *SessionSweeper) Stop() {
	logger.Info("Stopping session sweeper...", nil)
	<-s.cron.Stop().Done()
	logger.Info("Session sweeper stopped", nil)
}
