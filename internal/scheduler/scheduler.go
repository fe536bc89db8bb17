package scheduler

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-co-op/gocron"
)

// Default notification window (hours, UTC).
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 22
)

// DueCounter reports how many review items are due, per owner.
type DueCounter interface {
	DueOwnerCounts(ctx context.Context) (map[string]int, error)
}

// Notifier delivers a reminder to an owner.
type Notifier interface {
	SendReminder(ownerID string, count int) error
}

// Scheduler runs the hourly reminder check.
type Scheduler struct {
	scheduler *gocron.Scheduler
	counter   DueCounter
	notifier  Notifier
}

// New creates a scheduler over the given due counter and notifier.
func New(counter DueCounter, notifier Notifier) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		counter:   counter,
		notifier:  notifier,
	}
}

// Start begins running all scheduled tasks in the background.
func (s *Scheduler) Start() {
	s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders)
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) checkAndSendReminders() {
	currentHour := time.Now().UTC().Hour()
	startHour, endHour := notificationWindow()

	if currentHour < startHour || currentHour > endHour {
		log.Printf("Current hour %d is outside notification hours (%d-%d), skipping reminders",
			currentHour, startHour, endHour)
		return
	}

	counts, err := s.counter.DueOwnerCounts(context.Background())
	if err != nil {
		log.Printf("Error counting due items for reminders: %v", err)
		return
	}

	for ownerID, count := range counts {
		if count == 0 {
			continue
		}
		if err := s.notifier.SendReminder(ownerID, count); err != nil {
			log.Printf("Error sending reminder to %s: %v", ownerID, err)
		}
	}
}

// RunManualCheck forces a reminder check for a single owner.
func (s *Scheduler) RunManualCheck(ctx context.Context, ownerID string) error {
	counts, err := s.counter.DueOwnerCounts(ctx)
	if err != nil {
		return err
	}
	if count := counts[ownerID]; count > 0 {
		return s.notifier.SendReminder(ownerID, count)
	}
	return nil
}

// notificationWindow reads the reminder window from the environment,
// falling back to the defaults on missing or malformed values.
func notificationWindow() (int, int) {
	startHour := DefaultNotificationStartHour
	endHour := DefaultNotificationEndHour

	if v := os.Getenv("NOTIFICATION_START_HOUR"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			startHour = h
		}
	}
	if v := os.Getenv("NOTIFICATION_END_HOUR"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			endHour = h
		}
	}
	return startHour, endHour
}
