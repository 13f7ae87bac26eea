package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/raoulx24/cl-retention/internal/logging"
	"github.com/raoulx24/cl-retention/internal/mailbox"
	"github.com/raoulx24/cl-retention/internal/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	for _, spec := range []string{"", "every day", "61 * * * *", "* * * *"} {
		_, err := New(spec, logging.Nop(), mailbox.New[worker.Trigger]())
		assert.Error(t, err, spec)
	}
}

func TestTickPutsTrigger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	mb := mailbox.New[worker.Trigger]()
	s, err := New("0 3 * * *", logging.NewFromCore(core), mb)
	require.NoError(t, err)

	at := time.Date(2024, 5, 26, 3, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	s.tick()
	got := mb.TryTake()
	require.NotNil(t, got)
	assert.Equal(t, worker.Trigger{Reason: "schedule", At: at}, *got)

	s.tick()
	s.tick()
	assert.Equal(t, 1, logs.FilterMessage("previous run still pending, trigger replaced").Len())
}

func TestStartFiresAndStop(t *testing.T) {
	mb := mailbox.New[worker.Trigger]()
	s, err := New("@every 1s", logging.Nop(), mb)
	require.NoError(t, err)

	s.Start()
	assert.False(t, s.Next().IsZero())
	require.Eventually(t, mb.HasJob, 3*time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestReschedule(t *testing.T) {
	s, err := New("@daily", logging.Nop(), mailbox.New[worker.Trigger]())
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	before := s.Next()
	require.NoError(t, s.Reschedule("@hourly"))
	assert.Equal(t, "@hourly", s.spec)
	assert.Len(t, s.cron.Entries(), 1)

	require.Eventually(t, func() bool {
		n := s.Next()
		return !n.IsZero() && !n.After(before)
	}, time.Second, 10*time.Millisecond)

	assert.Error(t, s.Reschedule("not a schedule"))
	assert.Equal(t, "@hourly", s.spec, "invalid spec keeps the current schedule")
	require.NoError(t, s.Reschedule("@hourly"))
}
