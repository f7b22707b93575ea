package passkit

import (
	"fmt"

	loyaltydomain "leduo-backend/internal/loyalty/domain"
)

// Pass mirrors the pass.json document of a .pkpass archive.
type Pass struct {
	FormatVersion       int       `json:"formatVersion"`
	PassTypeIdentifier  string    `json:"passTypeIdentifier"`
	SerialNumber        string    `json:"serialNumber"`
	TeamIdentifier      string    `json:"teamIdentifier"`
	OrganizationName    string    `json:"organizationName"`
	Description         string    `json:"description"`
	LogoText            string    `json:"logoText,omitempty"`
	WebServiceURL       string    `json:"webServiceURL"`
	AuthenticationToken string    `json:"authenticationToken"`
	BackgroundColor     string    `json:"backgroundColor"`
	ForegroundColor     string    `json:"foregroundColor"`
	LabelColor          string    `json:"labelColor"`
	Barcodes            []Barcode `json:"barcodes"`
	StoreCard           *Fields   `json:"storeCard"`
}

type Barcode struct {
	Format          string `json:"format"`
	Message         string `json:"message"`
	MessageEncoding string `json:"messageEncoding"`
}

type Fields struct {
	HeaderFields    []Field `json:"headerFields"`
	PrimaryFields   []Field `json:"primaryFields"`
	SecondaryFields []Field `json:"secondaryFields"`
	BackFields      []Field `json:"backFields,omitempty"`
}

type Field struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}

const (
	backgroundDefault = "rgb(58, 36, 21)"   // espresso brown
	backgroundLegend  = "rgb(173, 138, 49)" // legend gold
	foreground        = "rgb(255, 250, 243)"
	label             = "rgb(222, 201, 166)"
)

// ClampStamps bounds a raw stamp count to the renderable range [0, 8].
func ClampStamps(stamps int) int {
	if stamps < 0 {
		return 0
	}
	if stamps > loyaltydomain.StampsTarget {
		return loyaltydomain.StampsTarget
	}
	return stamps
}

// StampsHeader renders the header text for a stamp count. A complete card
// always wins, even past the nominal maximum.
func StampsHeader(stamps int) string {
	if stamps >= loyaltydomain.StampsTarget {
		return "¡Recompensa lista!"
	}
	return fmt.Sprintf("%d/%d sellos", ClampStamps(stamps), loyaltydomain.StampsTarget)
}

// LevelName maps level points to the displayed tier.
func LevelName(levelPoints int) string {
	if levelPoints > loyaltydomain.LegendThreshold {
		return "Leyenda"
	}
	return "Clásico"
}
