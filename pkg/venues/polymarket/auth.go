package polymarket

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"execution-core/pkg/venues/common"
)

// Login establishes the key-pair credential. Statically configured API
// credentials are used as-is; otherwise the L1 handshake derives them from
// the wallet key. Either way the credential never expires and is refreshed
// only on explicit invalidation.
func (c *Client) Login(ctx context.Context) (common.Credential, error) {
	creds := apiCreds{
		Key:        c.cfg.APIKey,
		Secret:     c.cfg.APISecret,
		Passphrase: c.cfg.Passphrase,
	}
	if creds.Key == "" || creds.Secret == "" || creds.Passphrase == "" {
		derived, err := c.deriveAPIKey(ctx)
		if err != nil {
			return common.Credential{}, err
		}
		creds = derived
	}
	return common.Credential{
		APIKey:     creds.Key,
		APISecret:  creds.Secret,
		Passphrase: creds.Passphrase,
		IssuedAt:   time.Now(),
		// Zero ExpiresAt: key-pair credentials do not age out.
	}, nil
}

type apiCreds struct {
	Key        string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// deriveAPIKey runs the L1 exchange: an EIP-712 attestation signed by the
// wallet key, answered with deterministic API credentials for that wallet.
func (c *Client) deriveAPIKey(ctx context.Context) (apiCreds, error) {
	sig, ts, err := c.signer.SignClobAuth(0)
	if err != nil {
		return apiCreds{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return apiCreds{}, err
	}
	req.Header.Set("POLY_ADDRESS", c.signer.Address())
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", ts)
	req.Header.Set("POLY_NONCE", "0")

	var creds apiCreds
	status, raw, err := c.execute(req, &creds)
	if err != nil {
		return apiCreds{}, err
	}
	if status < 200 || status >= 300 {
		return apiCreds{}, fmt.Errorf("derive api key: status %d: %s", status, raw)
	}
	if creds.Key == "" || creds.Secret == "" {
		return apiCreds{}, fmt.Errorf("derive api key: incomplete credentials in response")
	}
	return creds, nil
}

// l2Signature computes the HMAC request signature: base64url over
// timestamp+method+path+body keyed with the base64url-decoded API secret.
func l2Signature(secret, timestamp, method, path string, body []byte) (string, error) {
	key, err := base64.URLEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp + method + path))
	mac.Write(body)
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// authHeaders attaches the L2 header set for an authenticated request.
func authHeaders(req *http.Request, cred common.Credential, address, ts, method, path string, body []byte) error {
	sig, err := l2Signature(cred.APISecret, ts, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", ts)
	req.Header.Set("POLY_API_KEY", cred.APIKey)
	req.Header.Set("POLY_PASSPHRASE", cred.Passphrase)
	return nil
}
