package googlewallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

const (
	walletScope    = "https://www.googleapis.com/auth/wallet_object.issuer"
	defaultBaseURL = "https://walletobjects.googleapis.com/walletobjects/v1"
)

// Outcome classifies a per-object adapter call. Skipped and QuotaExceeded
// are expected platform answers, not failures.
type Outcome int

const (
	OutcomeUpdated Outcome = iota
	OutcomeSkipped
	OutcomeQuotaExceeded
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeQuotaExceeded:
		return "quota_exceeded"
	default:
		return "error"
	}
}

// Message is a Wallet push message shown by the Google Wallet app.
type Message struct {
	Header string `json:"header"`
	Body   string `json:"body"`
}

// Client talks to the Google Wallet Objects API with service-account
// credentials. Each batch of operations opens a fresh Session so the
// OAuth token is never reused across cycles.
type Client struct {
	issuerID   string
	saEmail    string
	privateKey []byte

	baseURL    string
	tokenURL   string
	httpClient *http.Client
}

func NewClient(issuerID, saEmail string, privateKey []byte, timeout time.Duration) *Client {
	return &Client{
		issuerID:   issuerID,
		saEmail:    saEmail,
		privateKey: privateKey,
		baseURL:    defaultBaseURL,
		tokenURL:   google.JWTTokenURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ObjectID derives the wallet object id for a user. Google's wallet app
// tracks which objects a user saved, so no registration record exists on
// our side; the id being derivable from the user id is all we need.
func (c *Client) ObjectID(userID string) string {
	return fmt.Sprintf("%s.LEDUO-%s", c.issuerID, userID)
}

// Session carries the short-lived bearer token for one batch of calls.
type Session struct {
	client *Client
	token  *oauth2.Token
}

// NewSession asserts the wallet_object.issuer scope with a fresh RS256
// service-account JWT and exchanges it for an access token. Failure here
// is fatal for the whole batch: nothing can proceed without a token.
func (c *Client) NewSession(ctx context.Context) (*Session, error) {
	conf := &jwt.Config{
		Email:      c.saEmail,
		PrivateKey: c.privateKey,
		Scopes:     []string{walletScope},
		TokenURL:   c.tokenURL,
		Expires:    time.Hour,
	}

	token, err := conf.TokenSource(ctx).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain wallet access token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("wallet token exchange returned no access_token")
	}

	return &Session{client: c, token: token}, nil
}

// PatchObject mutates the generic object with a partial body. A 404 means
// the user never saved the pass to their wallet and is a distinct skipped
// outcome, not a failure.
func (s *Session) PatchObject(ctx context.Context, objectID string, patch *ObjectPatch) (Outcome, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return OutcomeError, fmt.Errorf("failed to marshal object patch: %w", err)
	}

	url := fmt.Sprintf("%s/genericObject/%s", s.client.baseURL, objectID)
	return s.call(ctx, http.MethodPatch, url, body)
}

// AddMessage pushes a TEXT_AND_NOTIFY message to the object. Quota
// rejection is per-object and non-fatal; the preceding patch stands.
func (s *Session) AddMessage(ctx context.Context, objectID string, msg Message) (Outcome, error) {
	payload := map[string]interface{}{
		"message": map[string]string{
			"id":          uuid.New().String(),
			"header":      msg.Header,
			"body":        msg.Body,
			"messageType": "TEXT_AND_NOTIFY",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return OutcomeError, fmt.Errorf("failed to marshal wallet message: %w", err)
	}

	url := fmt.Sprintf("%s/genericObject/%s/addMessage", s.client.baseURL, objectID)
	return s.call(ctx, http.MethodPost, url, body)
}

func (s *Session) call(ctx context.Context, method, url string, body []byte) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return OutcomeError, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return OutcomeError, fmt.Errorf("wallet call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return classify(resp.StatusCode, respBody)
}

func classify(status int, body []byte) (Outcome, error) {
	switch {
	case status >= 200 && status < 300:
		return OutcomeUpdated, nil
	case status == http.StatusNotFound:
		return OutcomeSkipped, nil
	case status == http.StatusTooManyRequests || isQuotaBody(body):
		return OutcomeQuotaExceeded, nil
	default:
		log.Printf("[Wallet] Unexpected status %d: %s", status, truncate(body))
		return OutcomeError, fmt.Errorf("wallet call returned status %d", status)
	}
}

func isQuotaBody(body []byte) bool {
	return strings.Contains(strings.ToLower(string(body)), "quota")
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
