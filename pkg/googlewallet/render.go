package googlewallet

import (
	"fmt"

	loyaltydomain "leduo-backend/internal/loyalty/domain"
	"leduo-backend/pkg/passkit"
)

const (
	hexBackgroundDefault = "#3a2415"
	hexBackgroundLegend  = "#ad8a31"

	heroImageBase = "https://assets.leduo.cafe/wallet/hero"
)

// ObjectPatch is the partial genericObject body sent on PATCH.
type ObjectPatch struct {
	HexBackgroundColor string           `json:"hexBackgroundColor,omitempty"`
	Header             *LocalizedString `json:"header,omitempty"`
	HeroImage          *Image           `json:"heroImage,omitempty"`
	TextModulesData    []TextModule     `json:"textModulesData,omitempty"`
}

type LocalizedString struct {
	DefaultValue TranslatedString `json:"defaultValue"`
}

type TranslatedString struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type Image struct {
	SourceURI ImageURI `json:"sourceUri"`
}

type ImageURI struct {
	URI string `json:"uri"`
}

type TextModule struct {
	ID     string `json:"id"`
	Header string `json:"header"`
	Body   string `json:"body"`
}

// RenderPatch maps loyalty state to the wallet-object representation.
// Pure: same state in, same patch out. The hero image is selected from
// the fixed stamp table, clamped to [0, 8]; extra carries an optional
// promotion or birthday module.
func RenderPatch(state *loyaltydomain.LoyaltyState, user *loyaltydomain.User, extra *Message) *ObjectPatch {
	background := hexBackgroundDefault
	if state.LevelPoints > loyaltydomain.LegendThreshold {
		background = hexBackgroundLegend
	}

	stamps := passkit.ClampStamps(state.Stamps)

	modules := []TextModule{
		{
			ID:     "level",
			Header: "Nivel",
			Body:   fmt.Sprintf("%s · %d pts", passkit.LevelName(state.LevelPoints), state.LevelPoints),
		},
		{
			ID:     "progress",
			Header: "Sellos",
			Body:   fmt.Sprintf("%d de %d · %d puntos de cashback", stamps, loyaltydomain.StampsTarget, state.CashbackPoints),
		},
	}
	if extra != nil {
		modules = append(modules, TextModule{
			ID:     "promo",
			Header: extra.Header,
			Body:   extra.Body,
		})
	}

	return &ObjectPatch{
		HexBackgroundColor: background,
		Header: &LocalizedString{
			DefaultValue: TranslatedString{Language: "es", Value: passkit.StampsHeader(state.Stamps)},
		},
		HeroImage: &Image{
			SourceURI: ImageURI{URI: fmt.Sprintf("%s/stamps-%d.png", heroImageBase, stamps)},
		},
		TextModulesData: modules,
	}
}
