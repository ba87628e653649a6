package oauth

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// Token is the long-lived calendar credential for a user. It is replaced
// wholesale on every refresh and never partially mutated. The refresh token
// must survive every refresh: the provider may omit it on renewal, in which
// case the previous value is carried forward.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// ExpiryMillis returns the expiry as Unix epoch milliseconds, the form the
// token is persisted in.
func (t *Token) ExpiryMillis() int64 {
	if t.Expiry.IsZero() {
		return 0
	}
	return t.Expiry.UnixMilli()
}

// TokenFromMillis builds a Token from its persisted representation.
func TokenFromMillis(access, refresh string, expiryMillis int64) *Token {
	tok := &Token{AccessToken: access, RefreshToken: refresh}
	if expiryMillis != 0 {
		tok.Expiry = time.UnixMilli(expiryMillis)
	}
	return tok
}

// oauth2Token converts to the x/oauth2 representation.
func (t *Token) oauth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

// fromOAuth2 converts from the x/oauth2 representation.
func fromOAuth2(t *oauth2.Token) *Token {
	return &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

// TokenStore persists the single per-user credential, encrypted at rest.
type TokenStore interface {
	// SaveToken replaces the persisted credential.
	SaveToken(ctx context.Context, tok *Token) error

	// LoadToken returns the persisted credential, or (nil, nil) when no
	// credential exists.
	LoadToken(ctx context.Context) (*Token, error)

	// DeleteToken removes the persisted credential.
	DeleteToken(ctx context.Context) error
}

// StateStore persists OAuth state nonces for CSRF validation across the
// authorization redirect.
type StateStore interface {
	// SaveAuthState records a pending state nonce.
	SaveAuthState(ctx context.Context, nonce string) error

	// ConsumeAuthState removes the nonce and reports whether it was pending.
	ConsumeAuthState(ctx context.Context, nonce string) (bool, error)
}
