package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/emberhabit/ember/internal/daykey"
	"github.com/emberhabit/ember/internal/model"
	"github.com/emberhabit/ember/internal/store"
)

const sendLogRetentionDays = 30

// Scheduler sends the daily check-in reminder: once the configured hour
// passes, every subscribed user who has not yet checked in today gets one
// nudge. The send log dedupes per user per day, so restarts never double-send.
type Scheduler struct {
	mu       sync.RWMutex
	service  *Service
	push     *store.PushStore
	checkins *store.CheckInStore
	settings *store.SettingsStore
	clock    *daykey.Clock
	logger   *slog.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	// Stubbed in tests; defaults to service.Send.
	send func(sub *model.PushSubscription, payload Payload) error
}

func NewScheduler(
	svc *Service,
	pushStore *store.PushStore,
	checkinStore *store.CheckInStore,
	settingsStore *store.SettingsStore,
	clock *daykey.Clock,
	logger *slog.Logger,
) *Scheduler {
	s := &Scheduler{
		service:  svc,
		push:     pushStore,
		checkins: checkinStore,
		settings: settingsStore,
		clock:    clock,
		logger:   logger,
		interval: 60 * time.Second,
	}
	s.send = svc.Send
	return s
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick() {
	now := s.clock.Now()

	if now.Hour() < s.settings.ReminderHour() {
		return
	}
	s.runReminders()

	// Housekeeping once an hour is plenty.
	if now.Minute() == 0 {
		if _, err := s.push.PruneSends(sendLogRetentionDays); err != nil {
			s.logger.Error("prune push sends", "error", err)
		}
	}
}

// runReminders nudges every subscribed user who has neither checked in today
// nor already been reminded today.
func (s *Scheduler) runReminders() {
	today := s.clock.Today()

	userIDs, err := s.push.ListUserIDs()
	if err != nil {
		s.logger.Error("list push users", "error", err)
		return
	}

	for _, userID := range userIDs {
		checked, err := s.checkins.Has(userID, today)
		if err != nil {
			s.logger.Error("check checkin state", "user_id", userID, "error", err)
			continue
		}
		if checked {
			continue
		}

		sent, err := s.push.WasSent(userID, model.NotifTypeCheckinReminder, today)
		if err != nil {
			s.logger.Error("check send log", "user_id", userID, "error", err)
			continue
		}
		if sent {
			continue
		}

		s.remindUser(userID, today)
	}
}

func (s *Scheduler) remindUser(userID int64, today string) {
	subs, err := s.push.ListByUser(userID)
	if err != nil {
		s.logger.Error("list subscriptions", "user_id", userID, "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload := Payload{
		Title: "Time to check in",
		Body:  "Keep your streak alive. Take a moment to check in today.",
		URL:   "/",
		Tag:   "checkin-reminder",
	}

	delivered := false
	for i := range subs {
		sub := subs[i]
		if err := s.send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if err := s.push.DeleteByEndpoint(sub.Endpoint); err != nil {
					s.logger.Error("delete expired subscription", "error", err)
				}
			} else {
				s.logger.Error("send reminder", "user_id", userID, "error", err)
			}
			continue
		}
		delivered = true
	}

	// Mark sent even when every device failed transiently; one reminder per
	// day, no retry storms.
	if err := s.push.MarkSent(userID, model.NotifTypeCheckinReminder, today); err != nil {
		s.logger.Error("mark reminder sent", "user_id", userID, "error", err)
	}
	if delivered {
		s.logger.Info("reminder sent", "user_id", userID, "day", today)
	}
}
