// Package download issues and checks the expiring links a customer uses to
// fetch a purchased product.
package download

import (
	"fmt"
	"strings"
	"time"

	"digistore/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "digistore"

	// PathPrefix is the route a signed link points at.
	PathPrefix = "/api/downloads/"
)

// Claims identify the order and product a link was issued for.
type Claims struct {
	ProductID string `json:"pid"`
	jwt.RegisteredClaims
}

// OrderID returns the order the link was issued for.
func (c *Claims) OrderID() string {
	return c.Subject
}

// Signer creates and verifies HS256 download tokens.
type Signer struct {
	key     []byte
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

// NewSigner returns a signer producing links under baseURL that expire after ttl.
func NewSigner(key string, ttl time.Duration, baseURL string) *Signer {
	return &Signer{
		key:     []byte(key),
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Sign returns the download URL for a completed order.
func (s *Signer) Sign(orderID, productID string) (string, error) {
	if orderID == "" || productID == "" {
		return "", fmt.Errorf("order and product id are required")
	}

	now := s.now()
	claims := Claims{
		ProductID: productID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   orderID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign download token: %w", err)
	}
	return s.baseURL + PathPrefix + token, nil
}

// Verify checks a token taken from a download URL. Any malformed, forged or
// expired token yields model.ErrInvalidDownloadToken.
func (s *Signer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, model.ErrInvalidDownloadToken
	}
	if claims.Subject == "" || claims.ProductID == "" {
		return nil, model.ErrInvalidDownloadToken
	}
	return claims, nil
}

// TokenFromURL extracts the token from a URL produced by Sign.
func TokenFromURL(url string) string {
	i := strings.LastIndex(url, PathPrefix)
	if i < 0 {
		return ""
	}
	return url[i+len(PathPrefix):]
}
