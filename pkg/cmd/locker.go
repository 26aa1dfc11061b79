package cmd

import (
	"fmt"
	"log/slog"

	"github.com/chasedharmon/nurture-nest-birth/pkg/locks"
)

// NewLocker returns the distributed run locker when a Redis URL is configured,
// and the in-process locker otherwise. Single-instance deployments need no
// Redis; anything horizontally scaled does.
func NewLocker(redisURL string, logger *slog.Logger) (locks.Locker, error) {
	if redisURL == "" {
		logger.Warn("REDIS_URL not set, using in-process run locks; do not run multiple engine instances")

		return locks.NewMemoryLocker(), nil
	}

	locker, err := locks.NewRedisLocker(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis locker: %w", err)
	}

	return locker, nil
}
