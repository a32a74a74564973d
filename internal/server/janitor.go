package server

import (
	"context"
	"time"

	"find-the-impostor/internal/room"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const janitorTimeout = time.Minute

// Janitor periodically deletes rooms that have not been touched for the TTL
// and stops watching them.
type Janitor struct {
	service *room.Service
	manager *room.Manager
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
	cron    *cron.Cron
}

func NewJanitor(service *room.Service, manager *room.Manager, ttl time.Duration, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		service: service,
		manager: manager,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// Start schedules Sweep on the cron spec, e.g. "@every 10m".
func (j *Janitor) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), janitorTimeout)
		defer cancel()
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Error("room sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	j.cron = c
	c.Start()
	j.logger.Info("janitor started", zap.String("schedule", schedule), zap.Duration("ttl", j.ttl))
	return nil
}

func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	if j.ttl <= 0 {
		return 0, nil
	}
	cutoff := j.now().UTC().Add(-j.ttl)
	ids, err := j.service.ExpireRooms(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if j.manager != nil {
			j.manager.Forget(id)
		}
	}
	if len(ids) > 0 {
		j.logger.Info("expired rooms deleted", zap.Int("rooms_deleted", len(ids)), zap.Time("cutoff", cutoff))
	}
	return len(ids), nil
}
