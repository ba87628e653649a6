package oauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// Surface identifies which runtime context initiated the authorization flow.
// The local surface can persist the state nonce across the redirect; the
// deep-link surface cannot, because the callback lands in a different process
// than the one that opened the consent page.
type Surface string

const (
	// SurfaceLocal is the in-process flow: the initiating context is still
	// alive when the callback arrives and the persisted nonce is validated.
	SurfaceLocal Surface = "local"

	// SurfaceLink is the deep-link flow: completion is signalled through an
	// app-specific redirect scheme and only the state's signature and shape
	// can be validated.
	SurfaceLink Surface = "link"
)

const stateNonceSize = 16

// stateSigner builds and verifies signed opaque OAuth state values of the
// form base64url(nonce).surface.base64url(hmac). The HMAC covers the nonce
// and the surface flag so neither can be swapped without detection.
type stateSigner struct {
	key []byte
}

// newStateSigner derives a signing key from the given secret.
func newStateSigner(secret string) *stateSigner {
	sum := sha256.Sum256([]byte("tethru-oauth-state:" + secret))
	return &stateSigner{key: sum[:]}
}

// New generates a fresh signed state and returns it along with the embedded
// nonce.
func (s *stateSigner) New(surface Surface) (state, nonce string, err error) {
	raw := make([]byte, stateNonceSize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	nonce = base64.RawURLEncoding.EncodeToString(raw)
	payload := nonce + "." + string(surface)
	return payload + "." + s.sign(payload), nonce, nil
}

// Verify checks the signature and shape of a state value and returns the
// embedded nonce and surface.
func (s *stateSigner) Verify(state string) (nonce string, surface Surface, err error) {
	parts := strings.Split(state, ".")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("malformed state")
	}
	nonce, surface = parts[0], Surface(parts[1])
	if surface != SurfaceLocal && surface != SurfaceLink {
		return "", "", fmt.Errorf("unknown state surface %q", parts[1])
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(s.sign(payload)), []byte(parts[2])) {
		return "", "", fmt.Errorf("state signature mismatch")
	}
	return nonce, surface, nil
}

func (s *stateSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
