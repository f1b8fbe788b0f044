package service

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBuildDailySpec(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "08:00", want: "0 0 8 * * *"},
		{in: " 23:59 ", want: "0 59 23 * * *"},
		{in: "0:5", want: "0 5 0 * * *"},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "1:2:3", wantErr: true},
	}
	for _, tc := range cases {
		got, err := buildDailySpec(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestSchedulerService_ScheduleDaily(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSchedulerService(time.UTC, nil)
	id, err := s.ScheduleDaily("digest", "07:30", func() {})
	require.NoError(t, err)

	_, err = s.ScheduleDaily("broken", "7pm", func() {})
	assert.Error(t, err)

	s.Start()
	next := s.Next(id)
	s.Stop()

	assert.Equal(t, 7, next.Hour())
	assert.Equal(t, 30, next.Minute())
	assert.Equal(t, time.UTC, next.Location())
}

func TestSchedulerService_ScheduleIntervalRunsAndRecovers(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSchedulerService(time.UTC, nil)
	_, err := s.ScheduleInterval("bad", 0, func() {})
	assert.Error(t, err)

	var runs atomic.Int32
	id, err := s.ScheduleInterval("tick", 500*time.Millisecond, func() {
		runs.Add(1)
		panic("job blew up")
	})
	require.NoError(t, err)

	s.Start()
	assert.WithinDuration(t, time.Now(), s.Next(id), 2*time.Second)
	// A panicking run must not leave the job marked as still running.
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
	s.Stop()
}
