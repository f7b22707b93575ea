package usecase

import (
	"context"
	"log"
	"sync"

	campaigndomain "leduo-backend/internal/campaign/domain"
	campaignrepo "leduo-backend/internal/campaign/repository"
	loyaltyrepo "leduo-backend/internal/loyalty/repository"
	walletrepo "leduo-backend/internal/wallet/repository"
	walletusecase "leduo-backend/internal/wallet/usecase"
	"leduo-backend/pkg/apns"
	"leduo-backend/pkg/fcm"
	"leduo-backend/pkg/googlewallet"
)

const defaultWorkers = 8

// WebPusher is the storefront web-push channel (nil when Firebase is not
// configured).
type WebPusher interface {
	SendPromo(ctx context.Context, tokens []string, promo fcm.Promo) ([]string, error)
}

// CampaignService fans a promotion out to every targeted customer's
// wallets. Recipients are processed by a bounded worker pool; each
// iteration touches a disjoint device/object id, so per-recipient
// parallelism is safe, and the bound keeps Google quota and APNs happy.
type CampaignService interface {
	Run(ctx context.Context, promo *campaigndomain.Promotion) (campaigndomain.Result, error)
}

type campaignService struct {
	users         loyaltyrepo.UserRepository
	registrations walletrepo.RegistrationRepository
	pusher        apns.Pusher
	wallet        walletusecase.WalletClient
	webPusher     WebPusher
	webTokens     campaignrepo.WebPushTokenRepository
	promotions    campaignrepo.PromotionRepository
	workers       int
}

func NewCampaignService(
	users loyaltyrepo.UserRepository,
	registrations walletrepo.RegistrationRepository,
	pusher apns.Pusher,
	wallet walletusecase.WalletClient,
	webPusher WebPusher,
	webTokens campaignrepo.WebPushTokenRepository,
	promotions campaignrepo.PromotionRepository,
) CampaignService {
	return &campaignService{
		users:         users,
		registrations: registrations,
		pusher:        pusher,
		wallet:        wallet,
		webPusher:     webPusher,
		webTokens:     webTokens,
		promotions:    promotions,
		workers:       defaultWorkers,
	}
}

func (s *campaignService) Run(ctx context.Context, promo *campaigndomain.Promotion) (campaigndomain.Result, error) {
	userIDs, err := s.users.FindSegment(loyaltyrepo.Segment(promo.Segment))
	if err != nil {
		return campaigndomain.Result{}, err
	}

	// One token exchange per campaign batch. Credential failure is fatal
	// for the run: no recipient can be patched without a token.
	session, err := s.wallet.NewSession(ctx)
	if err != nil {
		log.Printf("[Campaign] Google wallet auth failed: %v", err)
		return campaigndomain.Result{}, err
	}

	counters := newCounters(len(userIDs))
	message := googlewallet.Message{Header: promo.Title, Body: promo.Body}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				s.fanOutOne(ctx, session, userID, message, counters)
			}
		}()
	}
	for _, id := range userIDs {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	s.webPush(ctx, userIDs, promo, counters)

	if promo.ID != "" {
		if err := s.promotions.MarkSent(promo.ID); err != nil {
			log.Printf("[Campaign] Failed to mark promotion %s sent: %v", promo.ID, err)
		}
	}

	result := counters.snapshot()
	log.Printf("[Campaign] %s segment=%s total=%d updated=%d pushed=%d skipped=%d quota=%d errors=%d",
		promo.Title, promo.Segment, result.Total, result.PassesUpdated,
		result.PushNotificationsSent, result.Skipped, result.QuotaExceeded, result.Errors)
	return result, nil
}

// fanOutOne applies the patch+push sequence to a single recipient. A
// failure here only ever costs this recipient.
func (s *campaignService) fanOutOne(ctx context.Context, session walletusecase.WalletSession, userID string, message googlewallet.Message, counters *counters) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Campaign] Recovered from panic for user %s: %v", userID, r)
			counters.addErrors(1)
		}
	}()

	state, err := s.users.GetState(userID)
	if err != nil || state == nil {
		counters.addErrors(1)
		return
	}
	user, err := s.users.FindByID(userID)
	if err != nil || user == nil {
		counters.addErrors(1)
		return
	}

	// Google: immediate patch, then the notify message
	objectID := s.wallet.ObjectID(userID)
	patch := googlewallet.RenderPatch(state, user, &message)
	switch outcome, _ := session.PatchObject(ctx, objectID, patch); outcome {
	case googlewallet.OutcomeUpdated:
		counters.addUpdated(1)
		switch msgOutcome, _ := session.AddMessage(ctx, objectID, message); msgOutcome {
		case googlewallet.OutcomeUpdated:
			counters.addPushed(1)
		case googlewallet.OutcomeQuotaExceeded:
			// The patch already stuck; only the notification was refused.
			counters.addQuota(1)
		case googlewallet.OutcomeError:
			counters.addErrors(1)
		}
	case googlewallet.OutcomeSkipped:
		// User never saved the pass to Google Wallet
		counters.addSkipped(1)
	case googlewallet.OutcomeQuotaExceeded:
		counters.addQuota(1)
	default:
		counters.addErrors(1)
	}

	// Apple: dirty-flag the registrations and cue the devices
	tokens, err := s.registrations.Touch(userID)
	if err != nil {
		counters.addErrors(1)
		return
	}
	if len(tokens) > 0 {
		result := s.pusher.Push(ctx, tokens)
		counters.addPushed(result.Sent)
		// Only tokens APNs declared dead are pruned; transient failures
		// keep the registration alive.
		for _, token := range result.DeadTokens {
			if err := s.registrations.DeleteByPushToken(token); err != nil {
				log.Printf("[Campaign] Failed to prune dead push token: %v", err)
			}
		}
	}
}

// webPush broadcasts the promotion to storefront PWA subscribers.
func (s *campaignService) webPush(ctx context.Context, userIDs []string, promo *campaigndomain.Promotion, counters *counters) {
	if s.webPusher == nil {
		return
	}

	tokens, err := s.webTokens.TokensForUsers(userIDs)
	if err != nil {
		log.Printf("[Campaign] Failed to load web push tokens: %v", err)
		counters.addErrors(1)
		return
	}
	if len(tokens) == 0 {
		return
	}

	failed, err := s.webPusher.SendPromo(ctx, tokens, fcm.Promo{
		Title:       promo.Title,
		Body:        promo.Body,
		ClickAction: "/promos",
	})
	if err != nil {
		log.Printf("[Campaign] Web push failed: %v", err)
		counters.addErrors(1)
		return
	}

	counters.addPushed(len(tokens) - len(failed))
	for _, token := range failed {
		if err := s.webTokens.Delete(token); err != nil {
			log.Printf("[Campaign] Failed to prune web push token: %v", err)
		}
	}
}

// counters is the mutex-guarded tally shared by the worker pool.
type counters struct {
	mu     sync.Mutex
	result campaigndomain.Result
}

func newCounters(total int) *counters {
	return &counters{result: campaigndomain.Result{Total: total}}
}

func (c *counters) addUpdated(n int) { c.mu.Lock(); c.result.PassesUpdated += n; c.mu.Unlock() }
func (c *counters) addPushed(n int)  { c.mu.Lock(); c.result.PushNotificationsSent += n; c.mu.Unlock() }
func (c *counters) addSkipped(n int) { c.mu.Lock(); c.result.Skipped += n; c.mu.Unlock() }
func (c *counters) addQuota(n int)   { c.mu.Lock(); c.result.QuotaExceeded += n; c.mu.Unlock() }
func (c *counters) addErrors(n int)  { c.mu.Lock(); c.result.Errors += n; c.mu.Unlock() }

func (c *counters) snapshot() campaigndomain.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}
