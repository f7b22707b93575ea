package scheduler

import (
	"context"
	"log"
	"time"

	loyaltyrepo "leduo-backend/internal/loyalty/repository"
	walletusecase "leduo-backend/internal/wallet/usecase"
	"leduo-backend/pkg/googlewallet"
)

// BirthdayScheduler periodically finds customers whose birthday is today
// and pushes the birthday greeting to their passes. The loyalty gift
// itself (bonus stamps) is the storefront's transaction; this side only
// refreshes the wallets and records that the greeting went out.
type BirthdayScheduler struct {
	users    loyaltyrepo.UserRepository
	sync     walletusecase.SyncService
	interval time.Duration
	stopChan chan struct{}
}

func NewBirthdayScheduler(users loyaltyrepo.UserRepository, sync walletusecase.SyncService, interval time.Duration) *BirthdayScheduler {
	return &BirthdayScheduler{
		users:    users,
		sync:     sync,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *BirthdayScheduler) Start() {
	log.Printf("[Birthday] Starting birthday scheduler (interval: %s)", s.interval)

	go func() {
		// Run immediately on start
		s.checkAndGreet()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.checkAndGreet()
			case <-s.stopChan:
				log.Println("[Birthday] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler
func (s *BirthdayScheduler) Stop() {
	close(s.stopChan)
}

func (s *BirthdayScheduler) checkAndGreet() {
	now := time.Now()

	users, err := s.users.FindBirthdaysToday(now)
	if err != nil {
		log.Printf("[Birthday] Error finding birthdays: %v", err)
		return
	}
	if len(users) == 0 {
		return
	}

	log.Printf("[Birthday] Found %d birthdays today", len(users))

	message := &googlewallet.Message{
		Header: "¡Feliz cumpleaños!",
		Body:   "Tienes un regalo esperándote en Café Le Duo.",
	}

	for _, user := range users {
		summary := s.sync.SyncUser(context.Background(), user.ID, walletusecase.TriggerBirthday, message)
		if summary.Errors > 0 {
			log.Printf("[Birthday] Sync for user %s finished with %d errors", user.ID, summary.Errors)
		}

		// Mark regardless of push outcome to avoid greeting twice; the
		// device's own poll cycle will still converge the pass content.
		if err := s.users.MarkBirthdayGifted(user.ID, now.Year()); err != nil {
			log.Printf("[Birthday] Error marking gift for user %s: %v", user.ID, err)
		}
	}
}
