package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	counts map[string]int
	err    error
}

func (f *fakeCounter) DueOwnerCounts(ctx context.Context) (map[string]int, error) {
	return f.counts, f.err
}

type fakeNotifier struct {
	sent map[string]int
}

func (f *fakeNotifier) SendReminder(ownerID string, count int) error {
	if f.sent == nil {
		f.sent = make(map[string]int)
	}
	f.sent[ownerID] = count
	return nil
}

func TestRunManualCheckSendsWhenDue(t *testing.T) {
	notifier := &fakeNotifier{}
	s := New(&fakeCounter{counts: map[string]int{"owner-1": 7}}, notifier)

	require.NoError(t, s.RunManualCheck(context.Background(), "owner-1"))
	assert.Equal(t, 7, notifier.sent["owner-1"])
}

func TestRunManualCheckSkipsWhenNothingDue(t *testing.T) {
	notifier := &fakeNotifier{}
	s := New(&fakeCounter{counts: map[string]int{}}, notifier)

	require.NoError(t, s.RunManualCheck(context.Background(), "owner-1"))
	assert.Empty(t, notifier.sent)
}

func TestRunManualCheckPropagatesError(t *testing.T) {
	s := New(&fakeCounter{err: assert.AnError}, &fakeNotifier{})
	assert.Error(t, s.RunManualCheck(context.Background(), "owner-1"))
}

func TestNotificationWindowDefaults(t *testing.T) {
	t.Setenv("NOTIFICATION_START_HOUR", "")
	t.Setenv("NOTIFICATION_END_HOUR", "")

	start, end := notificationWindow()
	assert.Equal(t, DefaultNotificationStartHour, start)
	assert.Equal(t, DefaultNotificationEndHour, end)
}

func TestNotificationWindowFromEnvironment(t *testing.T) {
	t.Setenv("NOTIFICATION_START_HOUR", "6")
	t.Setenv("NOTIFICATION_END_HOUR", "20")

	start, end := notificationWindow()
	assert.Equal(t, 6, start)
	assert.Equal(t, 20, end)
}

func TestNotificationWindowIgnoresGarbage(t *testing.T) {
	t.Setenv("NOTIFICATION_START_HOUR", "late")
	t.Setenv("NOTIFICATION_END_HOUR", "25")

	start, end := notificationWindow()
	assert.Equal(t, DefaultNotificationStartHour, start)
	assert.Equal(t, DefaultNotificationEndHour, end)
}
