package apns

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
)

// PushResult partitions a multicast push into delivered and failed
// tokens. DeadTokens is the subset APNs reported as gone for good (the
// device removed the pass); only those are safe to prune. Transport and
// initialization failures count as Failed but never as dead — the
// registration must survive so the device's poll cycle still works.
type PushResult struct {
	Sent       int
	Failed     int
	DeadTokens []string
}

// Pusher sends the empty-payload APNs notification that tells a Wallet
// device to re-poll its pass web service.
type Pusher interface {
	Push(ctx context.Context, tokens []string) PushResult
	Close()
}

// Client is an APNs pusher authenticated with the pass type certificate.
// The underlying connection is built lazily on the first push and reused
// for the life of the process.
type Client struct {
	certPath     string
	certPassword string
	topic        string

	once    sync.Once
	client  *apns2.Client
	initErr error
}

func NewClient(certPath, certPassword, passTypeID string) *Client {
	return &Client{
		certPath:     certPath,
		certPassword: certPassword,
		topic:        passTypeID,
	}
}

func (c *Client) init() {
	cert, err := certificate.FromP12File(c.certPath, c.certPassword)
	if err != nil {
		c.initErr = fmt.Errorf("failed to load APNs certificate: %w", err)
		return
	}
	c.client = apns2.NewClient(cert).Production()
	log.Println("[APNs] Client initialized")
}

// Push notifies each token. PassKit pushes carry no payload content; the
// device treats receipt as a cue to re-poll, not as data. Individual
// failures never abort the batch.
func (c *Client) Push(ctx context.Context, tokens []string) PushResult {
	var result PushResult
	if len(tokens) == 0 {
		return result
	}

	c.once.Do(c.init)
	if c.initErr != nil {
		// A misconfigured client fails the whole batch but says nothing
		// about the tokens themselves.
		log.Printf("[APNs] %v", c.initErr)
		result.Failed = len(tokens)
		return result
	}

	for _, token := range tokens {
		notification := &apns2.Notification{
			DeviceToken: token,
			Topic:       c.topic,
			Payload:     []byte(`{}`),
		}

		resp, err := c.client.PushWithContext(ctx, notification)
		if err != nil {
			log.Printf("[APNs] Push error for token %s: %v", shorten(token), err)
			result.Failed++
			continue
		}
		if !resp.Sent() {
			log.Printf("[APNs] Push rejected for token %s: %s", shorten(token), resp.Reason)
			result.Failed++
			if tokenIsDead(resp.Reason) {
				result.DeadTokens = append(result.DeadTokens, token)
			}
			continue
		}
		result.Sent++
	}

	return result
}

// tokenIsDead reports whether APNs declared the token permanently
// invalid, as opposed to a transient rejection.
func tokenIsDead(reason string) bool {
	return reason == apns2.ReasonUnregistered || reason == apns2.ReasonBadDeviceToken
}

// Close releases the underlying HTTP/2 connections, best effort.
func (c *Client) Close() {
	if c.client != nil {
		c.client.HTTPClient.CloseIdleConnections()
	}
}

func shorten(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
