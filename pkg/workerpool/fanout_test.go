package workerpool

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRunAllSucceed(t *testing.T) {
	var count int64
	tasks := make([]Task, 0, 10)
	for i := 0; i < 10; i++ {
		tasks = append(tasks, Task{
			Label: "t",
			Execute: func(ctx context.Context) error {
				atomic.AddInt64(&count, 1)
				return nil
			},
		})
	}

	stats, err := Run(context.Background(), discardLogger(), 4, tasks)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 10, stats.Completed)
	assert.Equal(t, 0, stats.Failed)
	assert.EqualValues(t, 10, count)
}

func TestRunReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	tasks := []Task{
		{Label: "ok", Execute: func(ctx context.Context) error { return nil }},
		{Label: "bad", Execute: func(ctx context.Context) error { return boom }},
	}

	stats, err := Run(context.Background(), discardLogger(), 2, tasks)
	require.Error(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Completed)
}
