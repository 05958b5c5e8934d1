package feed

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/activity-feed/internal/config"
	"github.com/smartdevs17/activity-feed/pkg/utils"
)

// DefaultRetryConfig is used when the service is built without retry settings
var DefaultRetryConfig = config.RetryConfig{
	MaxAttempts:     5,
	InitialInterval: 10 * time.Millisecond,
	MaxInterval:     500 * time.Millisecond,
}

// withRetry runs fn until it succeeds, fails with a non-transient error or
// the attempt budget is spent. Only CONCURRENCY_ERROR and
// STORAGE_UNAVAILABLE are retried.
func (s *Service) withRetry(ctx context.Context, operation string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.InitialInterval
	b.MaxInterval = s.retry.MaxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn()
		if err != nil && !utils.IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.retry.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			code := utils.ErrorCode(err)
			if s.metrics != nil {
				s.metrics.RecordRetry(operation, code)
			}
			s.logger.WithFields(logrus.Fields{
				"operation":  operation,
				"error_code": code,
				"retry_in":   next,
			}).Debug("Retrying transient storage error")
		}),
	)
	return err
}
