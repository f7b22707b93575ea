package usecase

import (
	"context"
	"fmt"
	"log"

	loyaltydomain "leduo-backend/internal/loyalty/domain"
	loyaltyrepo "leduo-backend/internal/loyalty/repository"
	walletrepo "leduo-backend/internal/wallet/repository"
	"leduo-backend/pkg/apns"
	"leduo-backend/pkg/googlewallet"
	"leduo-backend/pkg/passkit"
)

// Trigger names the loyalty-state change that caused a synchronization.
type Trigger string

const (
	TriggerPurchase   Trigger = "purchase"
	TriggerRedemption Trigger = "redemption"
	TriggerBirthday   Trigger = "birthday"
	TriggerPromotion  Trigger = "promotion"
)

// Summary reports one synchronization cycle. It is informational only;
// the business transaction that triggered the sync has already committed
// and never fails because of anything counted here.
type Summary struct {
	UserID      string `json:"user_id"`
	Trigger     string `json:"trigger"`
	AppleSent   int    `json:"apple_sent"`
	AppleFailed int    `json:"apple_failed"`
	GooglePatch string `json:"google_patch,omitempty"`
	GooglePush  string `json:"google_push,omitempty"`
	Errors      int    `json:"errors"`
}

// WalletSession is one authenticated batch of Google Wallet calls.
type WalletSession interface {
	PatchObject(ctx context.Context, objectID string, patch *googlewallet.ObjectPatch) (googlewallet.Outcome, error)
	AddMessage(ctx context.Context, objectID string, msg googlewallet.Message) (googlewallet.Outcome, error)
}

// WalletClient opens sessions and derives object ids.
type WalletClient interface {
	NewSession(ctx context.Context) (WalletSession, error)
	ObjectID(userID string) string
}

// SyncService fans a loyalty-state change out to every wallet holding the
// user's pass. Apple devices are marked dirty and pushed an empty APNs
// cue; the Google object is patched immediately. All of it is best
// effort: the caller gets counts, never an error.
type SyncService interface {
	SyncUser(ctx context.Context, userID string, trigger Trigger, msg *googlewallet.Message) Summary
}

type syncService struct {
	users         loyaltyrepo.UserRepository
	registrations walletrepo.RegistrationRepository
	pusher        apns.Pusher
	wallet        WalletClient
}

func NewSyncService(users loyaltyrepo.UserRepository, registrations walletrepo.RegistrationRepository, pusher apns.Pusher, wallet WalletClient) SyncService {
	return &syncService{
		users:         users,
		registrations: registrations,
		pusher:        pusher,
		wallet:        wallet,
	}
}

func (s *syncService) SyncUser(ctx context.Context, userID string, trigger Trigger, msg *googlewallet.Message) Summary {
	summary := Summary{UserID: userID, Trigger: string(trigger)}

	state, err := s.users.GetState(userID)
	if err != nil || state == nil {
		log.Printf("[Sync] Cannot load loyalty state for user %s: %v", userID, err)
		summary.Errors++
		return summary
	}
	user, err := s.users.FindByID(userID)
	if err != nil || user == nil {
		log.Printf("[Sync] Cannot load profile for user %s: %v", userID, err)
		summary.Errors++
		return summary
	}

	s.syncApple(ctx, userID, &summary)
	s.syncGoogle(ctx, state, user, trigger, msg, &summary)

	log.Printf("[Sync] user=%s trigger=%s apple=%d/%d google=%s/%s errors=%d",
		userID, trigger, summary.AppleSent, summary.AppleSent+summary.AppleFailed,
		summary.GooglePatch, summary.GooglePush, summary.Errors)
	return summary
}

// syncApple marks every registration dirty and cues the devices to
// re-poll. The pass bytes themselves are rendered lazily when the device
// calls back for the updated pass.
func (s *syncService) syncApple(ctx context.Context, userID string, summary *Summary) {
	tokens, err := s.registrations.Touch(userID)
	if err != nil {
		log.Printf("[Sync] Failed to touch registrations for user %s: %v", userID, err)
		summary.Errors++
		return
	}
	if len(tokens) == 0 {
		return
	}

	result := s.pusher.Push(ctx, tokens)
	summary.AppleSent = result.Sent
	summary.AppleFailed = result.Failed

	// Prune only tokens APNs declared dead; a transient failure keeps
	// the registration so the device's own poll cycle can still converge.
	for _, token := range result.DeadTokens {
		if err := s.registrations.DeleteByPushToken(token); err != nil {
			log.Printf("[Sync] Failed to prune dead push token: %v", err)
		}
	}
}

// syncGoogle patches the wallet object in place and attaches the trigger
// message. Quota rejection on the message leaves the patch standing.
func (s *syncService) syncGoogle(ctx context.Context, state *loyaltydomain.LoyaltyState, user *loyaltydomain.User, trigger Trigger, msg *googlewallet.Message, summary *Summary) {
	session, err := s.wallet.NewSession(ctx)
	if err != nil {
		// Credential failure is fatal for the whole Google leg, but only
		// for the Google leg.
		log.Printf("[Sync] Google wallet auth failed for user %s: %v", user.ID, err)
		summary.Errors++
		return
	}

	objectID := s.wallet.ObjectID(user.ID)
	patch := googlewallet.RenderPatch(state, user, msg)

	patchOutcome, err := session.PatchObject(ctx, objectID, patch)
	summary.GooglePatch = patchOutcome.String()
	if err != nil && patchOutcome == googlewallet.OutcomeError {
		log.Printf("[Sync] Wallet patch failed for object %s: %v", objectID, err)
		summary.Errors++
	}
	if patchOutcome != googlewallet.OutcomeUpdated {
		// 404 means the user never saved the pass; nothing to message.
		return
	}

	message := messageForTrigger(trigger, state, msg)
	pushOutcome, err := session.AddMessage(ctx, objectID, message)
	summary.GooglePush = pushOutcome.String()
	if err != nil && pushOutcome == googlewallet.OutcomeError {
		log.Printf("[Sync] Wallet message failed for object %s: %v", objectID, err)
		summary.Errors++
	}
}

// messageForTrigger picks the push text shown by the Google Wallet app.
// An explicit message (promotions, birthdays) wins over the defaults.
func messageForTrigger(trigger Trigger, state *loyaltydomain.LoyaltyState, msg *googlewallet.Message) googlewallet.Message {
	if msg != nil {
		return *msg
	}

	switch trigger {
	case TriggerRedemption:
		return googlewallet.Message{
			Header: "Recompensa canjeada",
			Body:   "¡Disfruta tu bebida! Tu tarjeta empieza de nuevo.",
		}
	case TriggerBirthday:
		return googlewallet.Message{
			Header: "¡Feliz cumpleaños!",
			Body:   "Tienes un regalo esperándote en Café Le Duo.",
		}
	default:
		if state.RewardReady() {
			return googlewallet.Message{
				Header: "¡Recompensa lista!",
				Body:   "Completaste tu tarjeta. Muestra tu pase para canjear.",
			}
		}
		return googlewallet.Message{
			Header: "Sello agregado",
			Body:   fmt.Sprintf("Llevas %s. ¡Gracias por tu visita!", passkit.StampsHeader(state.Stamps)),
		}
	}
}
