package idp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// DevVerifier parses token claims WITHOUT validating the signature.
// Only intended for local/integration runs under explicit opt-in via env var.
type DevVerifier struct{}

func NewDevVerifier() *DevVerifier { return &DevVerifier{} }

func (v *DevVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	tok, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("invalid token format: %w", err)
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	b, err := json.Marshal(mc)
	if err != nil {
		return nil, err
	}
	var tc tokenClaims
	if err := json.Unmarshal(b, &tc); err != nil {
		return nil, err
	}
	return tc.merge(sub), nil
}
