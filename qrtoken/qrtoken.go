// Package qrtoken signs and verifies the tokens printed on unit QR codes.
//
// A token is
//
//	unitId:tenantId:developmentId:unitUid:timestampMs:nonce:signature
//
// where signature is the unpadded base64url HMAC-SHA256 of everything before
// it. Only the hash of a token is ever stored.
package qrtoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	e "github.com/openhouse/portalcache/errors"
)

// DefaultExpiry is how long a printed token stays valid.
const DefaultExpiry = 720 * time.Hour

const parts = 7

// Payload identifies the unit a token was issued for.
type Payload struct {
	UnitID        string
	TenantID      string
	DevelopmentID string
	UnitUID       string
}

// Generated is a freshly signed token.
type Generated struct {
	Token     string
	URL       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Signer struct {
	secret []byte

	// Expiry defaults to DefaultExpiry.
	Expiry time.Duration

	// PortalURL is the base of the onboarding link.
	PortalURL string

	Now func() time.Time
}

func NewSigner(secret, portalURL string) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("qr token secret is required")
	}
	return &Signer{
		secret:    []byte(secret),
		Expiry:    DefaultExpiry,
		PortalURL: strings.TrimRight(portalURL, "/"),
		Now:       time.Now,
	}, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Sign issues a new token for p.
func (s *Signer) Sign(p Payload) (Generated, error) {
	for _, f := range []string{p.UnitID, p.TenantID, p.DevelopmentID, p.UnitUID} {
		if f == "" || strings.Contains(f, ":") {
			return Generated{}, fmt.Errorf("invalid token field %q", f)
		}
	}

	now := s.Now()
	// Nonces are uuids without dashes so they never contain the separator.
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")

	payload := strings.Join([]string{
		p.UnitID,
		p.TenantID,
		p.DevelopmentID,
		p.UnitUID,
		strconv.FormatInt(now.UnixMilli(), 10),
		nonce,
	}, ":")
	token := payload + ":" + s.sign(payload)

	return Generated{
		Token:     token,
		URL:       fmt.Sprintf("%s/homes/%s?token=%s", s.PortalURL, url.PathEscape(p.UnitUID), url.QueryEscape(token)),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.Expiry),
	}, nil
}

// Verify checks the signature and age of token and returns its payload.
// Failures are PortalErrors that unwrap to errors.ErrUnauthorized.
func (s *Signer) Verify(token string) (Payload, error) {
	f := strings.Split(token, ":")
	if len(f) != parts {
		return Payload{}, e.New("", "qrtoken.Verify", e.InvalidToken, "malformed token")
	}

	payload := strings.Join(f[:parts-1], ":")
	if !hmac.Equal([]byte(s.sign(payload)), []byte(f[parts-1])) {
		return Payload{}, e.New(f[3], "qrtoken.Verify", e.InvalidToken, "invalid token signature")
	}

	ms, err := strconv.ParseInt(f[4], 10, 64)
	if err != nil {
		return Payload{}, e.New(f[3], "qrtoken.Verify", e.InvalidToken, "invalid token timestamp")
	}
	if s.Now().After(time.UnixMilli(ms).Add(s.Expiry)) {
		return Payload{}, e.New(f[3], "qrtoken.Verify", e.ExpiredToken, "token expired")
	}

	return Payload{
		UnitID:        f[0],
		TenantID:      f[1],
		DevelopmentID: f[2],
		UnitUID:       f[3],
	}, nil
}

// Hash is the form a token is stored in.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
