package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/smartdevs17/activity-feed/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"serialization failure", &pq.Error{Code: "40001"}, utils.ErrCodeConcurrency},
		{"deadlock", fmt.Errorf("wrapped: %w", &pq.Error{Code: "40P01"}), utils.ErrCodeConcurrency},
		{"connection failure", &pq.Error{Code: "08006"}, utils.ErrCodeStorageUnavailable},
		{"bad conn", driver.ErrBadConn, utils.ErrCodeStorageUnavailable},
		{"unique violation", &pq.Error{Code: "23505"}, utils.ErrCodeDatabase},
		{"plain", errors.New("boom"), utils.ErrCodeDatabase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyError("test", tt.err)
			assert.Equal(t, tt.code, utils.ErrorCode(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.Nil(t, classifyError("test", nil))
	assert.ErrorIs(t, classifyError("test", context.Canceled), context.Canceled)
	assert.Empty(t, utils.ErrorCode(classifyError("test", context.DeadlineExceeded)))

	validation := utils.NewAppError(utils.ErrCodeValidation, "bad")
	assert.Same(t, validation, classifyError("test", validation))
}

type failingCommit struct{ err error }

func (f failingCommit) Commit() error   { return f.err }
func (f failingCommit) Rollback() error { return nil }

func TestCommitAppendIsNeverRetryable(t *testing.T) {
	err := commitAppend(failingCommit{err: driver.ErrBadConn})
	assert.Equal(t, utils.ErrCodeDatabase, utils.ErrorCode(err))
	assert.False(t, utils.IsTransient(err), "a lost commit may have been applied")
	assert.ErrorIs(t, err, driver.ErrBadConn)

	assert.NoError(t, commitAppend(failingCommit{}))
}
