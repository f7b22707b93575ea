package passkit

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/sideshow/apns2/certificate"
	"github.com/smallstep/pkcs7"
)

// Signer produces the detached PKCS#7 signature of a pass manifest using
// the pass type certificate and Apple's WWDR intermediate.
type Signer struct {
	cert *x509.Certificate
	key  crypto.PrivateKey
	wwdr *x509.Certificate
}

// NewSigner builds a Signer from an in-memory certificate and key.
func NewSigner(cert *x509.Certificate, key crypto.PrivateKey, wwdr *x509.Certificate) *Signer {
	return &Signer{cert: cert, key: key, wwdr: wwdr}
}

// NewSignerFromFiles loads the pass certificate from a P12 bundle and the
// WWDR intermediate from a PEM file.
func NewSignerFromFiles(p12Path, p12Password, wwdrPath string) (*Signer, error) {
	tlsCert, err := certificate.FromP12File(p12Path, p12Password)
	if err != nil {
		return nil, fmt.Errorf("failed to load pass certificate: %w", err)
	}

	leaf, err := x509.ParseCertificate(tlsCert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse pass certificate: %w", err)
	}

	wwdrPEM, err := os.ReadFile(wwdrPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read WWDR certificate: %w", err)
	}
	block, _ := pem.Decode(wwdrPEM)
	if block == nil {
		return nil, fmt.Errorf("WWDR certificate is not valid PEM")
	}
	wwdr, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse WWDR certificate: %w", err)
	}

	return NewSigner(leaf, tlsCert.PrivateKey, wwdr), nil
}

// Sign returns the detached CMS signature over the manifest bytes.
func (s *Signer) Sign(manifest []byte) ([]byte, error) {
	signed, err := pkcs7.NewSignedData(manifest)
	if err != nil {
		return nil, err
	}
	if err := signed.AddSigner(s.cert, s.key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, err
	}
	if s.wwdr != nil {
		signed.AddCertificate(s.wwdr)
	}
	signed.Detach()
	return signed.Finish()
}
