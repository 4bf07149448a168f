package kalshi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"execution-core/pkg/venues/common"
)

// DefaultTokenTTL is the fallback session lifetime when the token carries no
// readable exp claim. Kalshi sessions run about thirty minutes; staying a
// minute under that keeps the refresh margin honest.
const DefaultTokenTTL = 29 * time.Minute

// Login exchanges email/password for a bearer token. The token's lifetime is
// read from its JWT exp claim when present, otherwise DefaultTokenTTL applies.
func (c *Client) Login(ctx context.Context) (common.Credential, error) {
	var resp loginResponse
	status, err := c.doJSON(ctx, http.MethodPost, "/login", loginRequest{
		Email:    c.cfg.Email,
		Password: c.cfg.Password,
	}, "", &resp)
	if err != nil {
		return common.Credential{}, err
	}
	if status < 200 || status >= 300 {
		return common.Credential{}, fmt.Errorf("login rejected with status %d", status)
	}
	if resp.Token == "" {
		return common.Credential{}, fmt.Errorf("login response carried no token")
	}

	now := time.Now()
	expires, ok := tokenExpiry(resp.Token)
	if !ok {
		expires = now.Add(c.cfg.TokenTTL)
	}
	return common.Credential{
		Token:     resp.Token,
		IssuedAt:  now,
		ExpiresAt: expires,
	}, nil
}

// tokenExpiry pulls the exp claim out of a bearer token without verifying the
// signature; we only need the lifetime, the venue verifies authenticity.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
