package jobs

import (
	"context"

	"github.com/jinkaiteo/edms/internal/cache"
	"github.com/sirupsen/logrus"
)

// CapabilityFlushTask drops every cached capability set so role changes made
// in the directory show up without waiting for the TTL.
type CapabilityFlushTask struct {
	cache cache.CapabilityCache
	cron  string
}

func NewCapabilityFlushTask(schedule string, cache cache.CapabilityCache) *CapabilityFlushTask {
	return &CapabilityFlushTask{
		cache: cache,
		cron:  schedule,
	}
}

func (c *CapabilityFlushTask) Name() string {
	return "capability_flush"
}

func (c *CapabilityFlushTask) Schedule() string {
	return c.cron
}

func (c *CapabilityFlushTask) Run() {
	n, err := c.cache.Flush(context.Background())
	if err != nil {
		logrus.WithError(err).Error("failed to flush capability cache")
		return
	}
	logrus.Debugf("flushed %d cached capability sets", n)
}
