package passkit

import (
	"archive/zip"
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	loyaltydomain "leduo-backend/internal/loyalty/domain"
)

// Builder renders signed .pkpass archives from loyalty state. Rendering is
// a pure function of the state passed in; only the signature differs
// between two builds of the same state.
type Builder struct {
	TeamID        string
	PassTypeID    string
	OrgName       string
	WebServiceURL string
	AssetDir      string

	signer *Signer
}

func NewBuilder(teamID, passTypeID, orgName, webServiceURL, assetDir string, signer *Signer) *Builder {
	return &Builder{
		TeamID:        teamID,
		PassTypeID:    passTypeID,
		OrgName:       orgName,
		WebServiceURL: webServiceURL,
		AssetDir:      assetDir,
		signer:        signer,
	}
}

// Render produces the pass.json document for a user's current state.
func (b *Builder) Render(serial, authToken string, state *loyaltydomain.LoyaltyState, user *loyaltydomain.User) *Pass {
	background := backgroundDefault
	if state.LevelPoints > loyaltydomain.LegendThreshold {
		background = backgroundLegend
	}

	return &Pass{
		FormatVersion:       1,
		PassTypeIdentifier:  b.PassTypeID,
		SerialNumber:        serial,
		TeamIdentifier:      b.TeamID,
		OrganizationName:    b.OrgName,
		Description:         "Tarjeta de lealtad Café Le Duo",
		LogoText:            "Le Duo",
		WebServiceURL:       b.WebServiceURL,
		AuthenticationToken: authToken,
		BackgroundColor:     background,
		ForegroundColor:     foreground,
		LabelColor:          label,
		Barcodes: []Barcode{{
			Format:          "PKBarcodeFormatQR",
			Message:         state.UserID,
			MessageEncoding: "iso-8859-1",
		}},
		StoreCard: &Fields{
			HeaderFields: []Field{{
				Key:   "stamps",
				Label: "SELLOS",
				Value: StampsHeader(state.Stamps),
			}},
			PrimaryFields: []Field{{
				Key:   "holder",
				Value: user.Name,
			}},
			SecondaryFields: []Field{
				{Key: "level", Label: "NIVEL", Value: LevelName(state.LevelPoints)},
				{Key: "cashback", Label: "PUNTOS", Value: fmt.Sprintf("%d", state.CashbackPoints)},
			},
		},
	}
}

// Build renders, signs and zips the full .pkpass archive.
func (b *Builder) Build(serial, authToken string, state *loyaltydomain.LoyaltyState, user *loyaltydomain.User) ([]byte, error) {
	if b.signer == nil {
		return nil, fmt.Errorf("pass signer not configured")
	}

	passJSON, err := json.Marshal(b.Render(serial, authToken, state, user))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pass.json: %w", err)
	}

	files := map[string][]byte{"pass.json": passJSON}
	if err := b.addAssets(files, state.Stamps); err != nil {
		return nil, err
	}

	manifest, err := buildManifest(files)
	if err != nil {
		return nil, err
	}
	files["manifest.json"] = manifest

	signature, err := b.signer.Sign(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign manifest: %w", err)
	}
	files["signature"] = signature

	return zipArchive(files)
}

// addAssets loads the fixed icon/logo images plus the strip matching the
// clamped stamp count (strip-{n}.png, falling back to strip.png).
func (b *Builder) addAssets(files map[string][]byte, stamps int) error {
	for _, name := range []string{"icon.png", "icon@2x.png", "logo.png", "logo@2x.png"} {
		data, err := os.ReadFile(filepath.Join(b.AssetDir, name))
		if err != nil {
			return fmt.Errorf("failed to read pass asset %s: %w", name, err)
		}
		files[name] = data
	}

	n := ClampStamps(stamps)
	for _, scale := range []string{"", "@2x"} {
		name := fmt.Sprintf("strip-%d%s.png", n, scale)
		data, err := os.ReadFile(filepath.Join(b.AssetDir, name))
		if err != nil {
			fallback := "strip" + scale + ".png"
			data, err = os.ReadFile(filepath.Join(b.AssetDir, fallback))
			if err != nil {
				return fmt.Errorf("failed to read strip asset for %d stamps: %w", n, err)
			}
		}
		files["strip"+scale+".png"] = data
	}
	return nil
}

func buildManifest(files map[string][]byte) ([]byte, error) {
	hashes := make(map[string]string, len(files))
	for name, data := range files {
		sum := sha1.Sum(data)
		hashes[name] = hex.EncodeToString(sum[:])
	}
	return json.Marshal(hashes)
}

func zipArchive(files map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		f, err := w.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
