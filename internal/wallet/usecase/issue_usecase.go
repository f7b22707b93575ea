package usecase

import (
	"fmt"
	"time"

	loyaltydomain "leduo-backend/internal/loyalty/domain"
	loyaltyrepo "leduo-backend/internal/loyalty/repository"
	walletrepo "leduo-backend/internal/wallet/repository"
	"leduo-backend/pkg/passkit"
)

// SaveLinker signs "Save to Google Wallet" URLs.
type SaveLinker interface {
	SaveLink(userID, displayName, headerText string) (string, error)
}

// IssueService produces the two artifacts the storefront links a customer
// to: a downloadable .pkpass and a Save-to-Google-Wallet URL.
type IssueService interface {
	// IssueApplePass mints the pass credential on first issue and returns
	// the signed archive plus its render time.
	IssueApplePass(userID string) ([]byte, time.Time, error)
	IssueGoogleLink(userID string) (string, error)
}

type issueService struct {
	users      loyaltyrepo.UserRepository
	authTokens walletrepo.AuthTokenRepository
	builder    *passkit.Builder
	saveLinker SaveLinker
}

func NewIssueService(users loyaltyrepo.UserRepository, authTokens walletrepo.AuthTokenRepository, builder *passkit.Builder, saveLinker SaveLinker) IssueService {
	return &issueService{
		users:      users,
		authTokens: authTokens,
		builder:    builder,
		saveLinker: saveLinker,
	}
}

func (s *issueService) IssueApplePass(userID string) ([]byte, time.Time, error) {
	state, user, err := s.load(userID)
	if err != nil {
		return nil, time.Time{}, err
	}

	// Serial is minted once per user; re-issuing reuses it so the device
	// keeps a single pass instead of accumulating copies.
	token, err := s.authTokens.EnsureForUser(userID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to ensure pass credential: %w", err)
	}

	renderedAt := time.Now()
	archive, err := s.builder.Build(token.SerialNumber, token.Token, state, user)
	if err != nil {
		return nil, time.Time{}, err
	}
	return archive, renderedAt, nil
}

func (s *issueService) IssueGoogleLink(userID string) (string, error) {
	state, user, err := s.load(userID)
	if err != nil {
		return "", err
	}
	return s.saveLinker.SaveLink(userID, user.Name, passkit.StampsHeader(state.Stamps))
}

func (s *issueService) load(userID string) (*loyaltydomain.LoyaltyState, *loyaltydomain.User, error) {
	state, err := s.users.GetState(userID)
	if err != nil {
		return nil, nil, err
	}
	if state == nil {
		return nil, nil, fmt.Errorf("no loyalty state for user %s", userID)
	}
	user, err := s.users.FindByID(userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, fmt.Errorf("no profile for user %s", userID)
	}
	return state, user, nil
}
