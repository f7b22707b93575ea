package delivery

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	walletdomain "leduo-backend/internal/wallet/domain"
	walletrepo "leduo-backend/internal/wallet/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRegistry keeps registrations keyed by (device, serial), mirroring
// the Postgres upsert semantics.
type fakeRegistry struct {
	rows      map[[2]string]walletdomain.DeviceRegistration
	serials   []string
	watermark int64
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{rows: map[[2]string]walletdomain.DeviceRegistration{}}
}

func (f *fakeRegistry) Save(deviceID, serial, passTypeID, pushToken, userID string) error {
	f.rows[[2]string{deviceID, serial}] = walletdomain.DeviceRegistration{
		DeviceLibraryID: deviceID,
		SerialNumber:    serial,
		PassTypeID:      passTypeID,
		PushToken:       pushToken,
		UserID:          userID,
	}
	return nil
}

func (f *fakeRegistry) ListSerials(string, string, *time.Time) ([]string, int64, error) {
	return f.serials, f.watermark, nil
}

func (f *fakeRegistry) Delete(deviceID, serial string) error {
	delete(f.rows, [2]string{deviceID, serial})
	return nil
}

func (f *fakeRegistry) DeleteByPushToken(string) error { return nil }
func (f *fakeRegistry) Touch(string) ([]string, error) { return nil, nil }
func (f *fakeRegistry) All() ([]walletdomain.DeviceRegistration, error) {
	return nil, nil
}
func (f *fakeRegistry) CountByUser() (int64, int64, error) { return 0, 0, nil }

type fakeAuthTokens struct {
	bySerial map[string]*walletdomain.PassAuthToken
}

func (f *fakeAuthTokens) EnsureForUser(userID string) (*walletdomain.PassAuthToken, error) {
	for _, token := range f.bySerial {
		if token.UserID == userID {
			return token, nil
		}
	}
	return nil, nil
}

func (f *fakeAuthTokens) FindBySerial(serial string) (*walletdomain.PassAuthToken, error) {
	return f.bySerial[serial], nil
}

type fakeIssuer struct {
	archive []byte
	err     error
}

func (f *fakeIssuer) IssueApplePass(string) ([]byte, time.Time, error) {
	return f.archive, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), f.err
}

func (f *fakeIssuer) IssueGoogleLink(string) (string, error) { return "", nil }

func newTestRouter(registry *fakeRegistry, tokens walletrepo.AuthTokenRepository, issuer *fakeIssuer) *gin.Engine {
	h := NewPassKitHandler(registry, tokens, issuer)
	r := gin.New()
	v1 := r.Group("/v1")
	{
		v1.POST("/devices/:deviceId/registrations/:passTypeId/:serial", h.RegisterDevice)
		v1.GET("/devices/:deviceId/registrations/:passTypeId", h.ListUpdatedSerials)
		v1.DELETE("/devices/:deviceId/registrations/:passTypeId/:serial", h.UnregisterDevice)
		v1.GET("/passes/:passTypeId/:serial", h.FetchUpdatedPass)
		v1.POST("/log", h.DeviceLog)
	}
	return r
}

func knownTokens() *fakeAuthTokens {
	return &fakeAuthTokens{bySerial: map[string]*walletdomain.PassAuthToken{
		"serial-1": {SerialNumber: "serial-1", UserID: "user-1", Token: "secret-1"},
	}}
}

func doRequest(r *gin.Engine, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterDevice(t *testing.T) {
	registry := newFakeRegistry()
	r := newTestRouter(registry, knownTokens(), &fakeIssuer{})

	w := doRequest(r, http.MethodPost,
		"/v1/devices/dev-1/registrations/pass.com.leduo.loyalty/serial-1",
		"ApplePass secret-1", gin.H{"pushToken": "tok-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	saved := registry.rows[[2]string{"dev-1", "serial-1"}]
	assert.Equal(t, "tok-1", saved.PushToken)
	assert.Equal(t, "user-1", saved.UserID)
}

func TestRegisterDeviceIdempotent(t *testing.T) {
	registry := newFakeRegistry()
	r := newTestRouter(registry, knownTokens(), &fakeIssuer{})

	path := "/v1/devices/dev-1/registrations/pass.com.leduo.loyalty/serial-1"
	doRequest(r, http.MethodPost, path, "ApplePass secret-1", gin.H{"pushToken": "tok-old"})
	doRequest(r, http.MethodPost, path, "ApplePass secret-1", gin.H{"pushToken": "tok-new"})

	require.Len(t, registry.rows, 1, "re-registering must not create a second row")
	assert.Equal(t, "tok-new", registry.rows[[2]string{"dev-1", "serial-1"}].PushToken)
}

func TestRegisterDeviceMissingPushToken(t *testing.T) {
	r := newTestRouter(newFakeRegistry(), knownTokens(), &fakeIssuer{})

	w := doRequest(r, http.MethodPost,
		"/v1/devices/dev-1/registrations/pass.com.leduo.loyalty/serial-1",
		"ApplePass secret-1", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterDeviceUnauthorized(t *testing.T) {
	tests := []struct {
		name string
		auth string
	}{
		{"no header", ""},
		{"wrong token", "ApplePass wrong"},
		{"wrong scheme", "Bearer secret-1"},
		{"bare token", "secret-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(newFakeRegistry(), knownTokens(), &fakeIssuer{})
			w := doRequest(r, http.MethodPost,
				"/v1/devices/dev-1/registrations/pass.com.leduo.loyalty/serial-1",
				tt.auth, gin.H{"pushToken": "tok-1"})
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Empty(t, w.Body.String(), "401 must not carry a body")
		})
	}
}

func TestUnauthorizedDoesNotRevealSerialExistence(t *testing.T) {
	r := newTestRouter(newFakeRegistry(), knownTokens(), &fakeIssuer{})

	known := doRequest(r, http.MethodPost,
		"/v1/devices/dev-1/registrations/pass.com.leduo.loyalty/serial-1",
		"ApplePass wrong", gin.H{"pushToken": "tok-1"})
	unknown := doRequest(r, http.MethodPost,
		"/v1/devices/dev-1/registrations/pass.com.leduo.loyalty/no-such-serial",
		"ApplePass wrong", gin.H{"pushToken": "tok-1"})

	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}

func TestListUpdatedSerials(t *testing.T) {
	registry := newFakeRegistry()
	registry.serials = []string{"serial-1"}
	registry.watermark = 1756300000
	r := newTestRouter(registry, knownTokens(), &fakeIssuer{})

	w := doRequest(r, http.MethodGet,
		"/v1/devices/dev-1/registrations/pass.com.leduo.loyalty?passesUpdatedSince=1756200000", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		SerialNumbers []string `json:"serialNumbers"`
		LastUpdated   string   `json:"lastUpdated"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"serial-1"}, resp.SerialNumbers)
	assert.Equal(t, "1756300000", resp.LastUpdated, "the watermark is a decimal string the device echoes back")
}

func TestListUpdatedSerialsNothingChanged(t *testing.T) {
	r := newTestRouter(newFakeRegistry(), knownTokens(), &fakeIssuer{})

	w := doRequest(r, http.MethodGet,
		"/v1/devices/dev-1/registrations/pass.com.leduo.loyalty", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestFetchUpdatedPass(t *testing.T) {
	issuer := &fakeIssuer{archive: []byte("PK-fake-archive")}
	r := newTestRouter(newFakeRegistry(), knownTokens(), issuer)

	w := doRequest(r, http.MethodGet,
		"/v1/passes/pass.com.leduo.loyalty/serial-1", "applepass  secret-1", nil)

	require.Equal(t, http.StatusOK, w.Code, "scheme casing and extra whitespace are both legal")
	assert.Equal(t, "application/vnd.apple.pkpass", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("Last-Modified"))
	assert.Equal(t, "PK-fake-archive", w.Body.String())
}

// flakyAuthTokens answers the first lookup and errors on every later
// one, the way a store hiccup mid-request would.
type flakyAuthTokens struct {
	inner *fakeAuthTokens
	calls int
}

func (f *flakyAuthTokens) EnsureForUser(userID string) (*walletdomain.PassAuthToken, error) {
	return f.inner.EnsureForUser(userID)
}

func (f *flakyAuthTokens) FindBySerial(serial string) (*walletdomain.PassAuthToken, error) {
	f.calls++
	if f.calls > 1 {
		return nil, errors.New("connection reset by peer")
	}
	return f.inner.FindBySerial(serial)
}

func TestFetchUpdatedPassSingleCredentialLookup(t *testing.T) {
	tokens := &flakyAuthTokens{inner: knownTokens()}
	issuer := &fakeIssuer{archive: []byte("PK-fake-archive")}
	r := newTestRouter(newFakeRegistry(), tokens, issuer)

	w := doRequest(r, http.MethodGet,
		"/v1/passes/pass.com.leduo.loyalty/serial-1", "ApplePass secret-1", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, tokens.calls, "the credential is loaded once per request")
}

func TestFetchUpdatedPassBuildFailure(t *testing.T) {
	issuer := &fakeIssuer{err: assert.AnError}
	r := newTestRouter(newFakeRegistry(), knownTokens(), issuer)

	w := doRequest(r, http.MethodGet,
		"/v1/passes/pass.com.leduo.loyalty/serial-1", "ApplePass secret-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnregisterDeviceAlwaysOK(t *testing.T) {
	registry := newFakeRegistry()
	registry.Save("dev-1", "serial-1", "pass.com.leduo.loyalty", "tok-1", "user-1")
	r := newTestRouter(registry, knownTokens(), &fakeIssuer{})

	path := "/v1/devices/dev-1/registrations/pass.com.leduo.loyalty/serial-1"
	w := doRequest(r, http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, registry.rows)

	// Deleting again is still OK
	w = doRequest(r, http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeviceLogAlwaysOK(t *testing.T) {
	r := newTestRouter(newFakeRegistry(), knownTokens(), &fakeIssuer{})

	w := doRequest(r, http.MethodPost, "/v1/log", "", gin.H{"logs": []string{"pass render issue"}})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodPost, "/v1/log", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseApplePassToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"ApplePass abc123", "abc123"},
		{"applepass abc123", "abc123"},
		{"APPLEPASS abc123", "abc123"},
		{"  ApplePass   abc123  ", "abc123"},
		{"Bearer abc123", ""},
		{"ApplePass", ""},
		{"ApplePass a b", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseApplePassToken(tt.header), "header %q", tt.header)
	}
}
