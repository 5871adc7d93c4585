package server

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"mynotes-auth-service/internal/challenge"
)

// StartSweeper schedules periodic deletion of expired challenge rows on the
// given cron spec (e.g. "@every 10m"). Reclamation only: reads already treat
// expired rows as absent, so a missed sweep is harmless. Returns the running
// cron; callers stop it on shutdown. An empty spec disables the sweeper.
func StartSweeper(m *challenge.Machine, spec string, logger *logrus.Logger) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := m.SweepExpired(context.Background())
		if err != nil {
			logger.WithError(err).Warn("challenge sweep failed")
			return
		}
		if n > 0 {
			logger.WithField("deleted", n).Debug("swept expired challenges")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
