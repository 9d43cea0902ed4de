package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_Enqueue_DeduplicatesSameKey(t *testing.T) {
	q := NewQueue(2, nil)

	jobA, createdA := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "ep1|stream:2|stream:3",
	})
	jobB, createdB := q.Enqueue(EnqueueRequest{
		Source:    "cron",
		DedupeKey: "ep1|stream:2|stream:3",
	})

	require.True(t, createdA)
	require.False(t, createdB)
	require.NotNil(t, jobA)
	require.NotNil(t, jobB)
	assert.Equal(t, jobA.ID, jobB.ID)
}

func TestQueue_Enqueue_DerivesKeyFromPayload(t *testing.T) {
	q := NewQueue(1, nil)

	payload := JobPayload{
		VideoFile: "/videos/ep1.mkv",
		Upper:     SourceRef{Type: SourceBuiltIn, StreamIndex: 2},
		Lower:     SourceRef{Type: SourceExternal, Path: "/videos/ep1.ru.srt"},
	}
	first, created := q.Enqueue(EnqueueRequest{Source: "manual", Payload: payload})
	require.True(t, created)
	assert.Equal(t, "/videos/ep1.mkv|stream:2|file:/videos/ep1.ru.srt", first.DedupeKey)

	_, created = q.Enqueue(EnqueueRequest{Source: "cron", Payload: payload})
	assert.False(t, created)

	payload.Lower = SourceRef{}
	other, created := q.Enqueue(EnqueueRequest{Source: "cron", Payload: payload})
	require.True(t, created)
	assert.Equal(t, "/videos/ep1.mkv|stream:2|auto", other.DedupeKey)
}

func TestQueue_Enqueue_AllowsRetryAfterFailure(t *testing.T) {
	q := NewQueue(1, nil)

	var attempts atomic.Int32
	q.Start(func(_ context.Context, _ *MergeJob) (Result, error) {
		if attempts.Add(1) == 1 {
			return Result{}, assert.AnError
		}
		return Result{}, nil
	})
	defer q.Stop()

	first, created := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "retry-key",
	})
	require.True(t, created)
	require.NotNil(t, first)

	require.Eventually(t, func() bool {
		got, ok := q.Get(first.ID)
		return ok && got != nil && got.Status == StatusFailed
	}, time.Second, 10*time.Millisecond)

	failed, _ := q.Get(first.ID)
	assert.Equal(t, assert.AnError.Error(), failed.Error)

	second, created := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "retry-key",
	})
	require.True(t, created)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)

	require.Eventually(t, func() bool {
		got, ok := q.Get(second.ID)
		return ok && got != nil && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_Enqueue_AllowsRetryAfterSuccess(t *testing.T) {
	q := NewQueue(1, nil)
	q.Start(func(_ context.Context, _ *MergeJob) (Result, error) { return Result{}, nil })
	defer q.Stop()

	first, created := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "done-key",
	})
	require.True(t, created)
	require.NotNil(t, first)

	require.Eventually(t, func() bool {
		got, ok := q.Get(first.ID)
		return ok && got != nil && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)

	second, created := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "done-key",
	})
	require.True(t, created)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestQueue_ListNewestFirst(t *testing.T) {
	q := NewQueue(1, nil)
	for i := range 3 {
		_, created := q.Enqueue(EnqueueRequest{Source: "manual", DedupeKey: fmt.Sprintf("k%d", i)})
		require.True(t, created)
	}

	jobs := q.List()
	require.Len(t, jobs, 3)
	assert.Equal(t, "job-3", jobs[0].ID)
	assert.Equal(t, "job-1", jobs[2].ID)
	assert.Equal(t, 3, q.Counts()[StatusPending])
}

func TestQueue_GetWhileWorkersRun(t *testing.T) {
	q := NewQueue(4, nil)
	q.Start(func(_ context.Context, job *MergeJob) (Result, error) {
		return Result{Output: job.ID + ".srt"}, nil
	})
	defer q.Stop()

	ids := make([]string, 0, 20)
	for i := range 20 {
		job, created := q.Enqueue(EnqueueRequest{Source: "manual", DedupeKey: fmt.Sprintf("busy-%d", i)})
		require.True(t, created)
		ids = append(ids, job.ID)
	}

	require.Eventually(t, func() bool {
		for _, id := range ids {
			got, ok := q.Get(id)
			if !ok || got.Status != StatusSuccess {
				return false
			}
		}
		return true
	}, 2*time.Second, time.Millisecond)

	for _, id := range ids {
		got, ok := q.Get(id)
		require.True(t, ok)
		assert.Equal(t, id+".srt", got.Output)
	}
}
