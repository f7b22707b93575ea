package googlewallet

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// SaveLink builds the "Save to Google Wallet" URL for a user: a signed
// RS256 JWT carrying the generic object, appended to the pay.google.com
// save endpoint. The object is created lazily by Google on first save;
// until then PATCH calls answer 404 and the user counts as skipped.
func (c *Client) SaveLink(userID, displayName, headerText string) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to parse service-account key: %w", err)
	}

	objectID := c.ObjectID(userID)
	claims := jwt.MapClaims{
		"iss": c.saEmail,
		"aud": "google",
		"typ": "savetowallet",
		"payload": map[string]interface{}{
			"genericObjects": []map[string]interface{}{
				{
					"id":      objectID,
					"classId": fmt.Sprintf("%s.leduo_loyalty", c.issuerID),
					"state":   "ACTIVE",
					"cardTitle": map[string]interface{}{
						"defaultValue": map[string]string{"language": "es", "value": "Café Le Duo"},
					},
					"subheader": map[string]interface{}{
						"defaultValue": map[string]string{"language": "es", "value": displayName},
					},
					"header": map[string]interface{}{
						"defaultValue": map[string]string{"language": "es", "value": headerText},
					},
					"hexBackgroundColor": hexBackgroundDefault,
					"barcode": map[string]string{
						"type":  "QR_CODE",
						"value": userID,
					},
				},
			},
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign save-to-wallet token: %w", err)
	}

	return "https://pay.google.com/gp/v/save/" + token, nil
}
