package passkit

import (
	"archive/zip"
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	loyaltydomain "leduo-backend/internal/loyalty/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuilder(signer *Signer, assetDir string) *Builder {
	return NewBuilder("TEAM123", "pass.com.leduo.loyalty", "Café Le Duo", "https://wallet.leduo.cafe", assetDir, signer)
}

func testState(stamps int) *loyaltydomain.LoyaltyState {
	return &loyaltydomain.LoyaltyState{
		UserID:         "user-1",
		Stamps:         stamps,
		CashbackPoints: 120,
		LevelPoints:    40,
	}
}

func testUser() *loyaltydomain.User {
	return &loyaltydomain.User{ID: "user-1", Email: "ana@example.com", Name: "Ana"}
}

func TestRenderIsPure(t *testing.T) {
	b := testBuilder(nil, "")
	state := testState(3)
	user := testUser()

	first, err := json.Marshal(b.Render("serial-1", "token-1", state, user))
	require.NoError(t, err)
	second, err := json.Marshal(b.Render("serial-1", "token-1", state, user))
	require.NoError(t, err)

	assert.Equal(t, first, second, "two renders of the same state must be byte-identical")
}

func TestRenderFields(t *testing.T) {
	b := testBuilder(nil, "")
	pass := b.Render("serial-1", "token-1", testState(3), testUser())

	assert.Equal(t, 1, pass.FormatVersion)
	assert.Equal(t, "serial-1", pass.SerialNumber)
	assert.Equal(t, "token-1", pass.AuthenticationToken)
	assert.Equal(t, "pass.com.leduo.loyalty", pass.PassTypeIdentifier)
	assert.Equal(t, "rgb(58, 36, 21)", pass.BackgroundColor)
	assert.Equal(t, "3/8 sellos", pass.StoreCard.HeaderFields[0].Value)

	require.Len(t, pass.Barcodes, 1)
	assert.Equal(t, "PKBarcodeFormatQR", pass.Barcodes[0].Format)
	assert.Equal(t, "user-1", pass.Barcodes[0].Message)
	assert.Equal(t, "iso-8859-1", pass.Barcodes[0].MessageEncoding)
}

func TestRenderLegendStyling(t *testing.T) {
	b := testBuilder(nil, "")
	state := testState(2)
	state.LevelPoints = 200

	pass := b.Render("serial-1", "token-1", state, testUser())
	assert.Equal(t, "rgb(173, 138, 49)", pass.BackgroundColor)
	assert.Equal(t, "Leyenda", pass.StoreCard.SecondaryFields[0].Value)
}

func TestBuildArchive(t *testing.T) {
	assetDir := t.TempDir()
	png := []byte("\x89PNG fake image data")
	for _, name := range []string{"icon.png", "icon@2x.png", "logo.png", "logo@2x.png", "strip.png", "strip@2x.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(assetDir, name), png, 0o644))
	}

	b := testBuilder(newTestSigner(t), assetDir)
	archive, err := b.Build("serial-1", "token-1", testState(3), testUser())
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	files := map[string][]byte{}
	for _, f := range reader.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = data
	}

	for _, name := range []string{"pass.json", "manifest.json", "signature", "icon.png", "strip.png"} {
		assert.Contains(t, files, name)
	}

	var pass Pass
	require.NoError(t, json.Unmarshal(files["pass.json"], &pass))
	assert.Equal(t, "serial-1", pass.SerialNumber)
	assert.Equal(t, "3/8 sellos", pass.StoreCard.HeaderFields[0].Value)

	var manifest map[string]string
	require.NoError(t, json.Unmarshal(files["manifest.json"], &manifest))
	assert.Contains(t, manifest, "pass.json")
	assert.NotContains(t, manifest, "signature", "the signature never hashes itself")
	assert.NotEmpty(t, files["signature"])
}

func TestBuildWithoutSigner(t *testing.T) {
	b := testBuilder(nil, "")
	_, err := b.Build("serial-1", "token-1", testState(0), testUser())
	assert.Error(t, err)
}

func newTestSigner(t *testing.T) *Signer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Pass Type ID: pass.com.leduo.loyalty"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return NewSigner(cert, key, nil)
}
