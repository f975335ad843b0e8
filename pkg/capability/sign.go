package capability

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

// Engine mints and verifies capability envelopes against a rotating
// key store (spec §4.7).
type Engine struct {
	keys     *KeyStore
	validity time.Duration
}

// NewEngine builds an Engine that mints tokens valid for validity
// (spec §4.7: "validity is issue + configured window").
func NewEngine(keys *KeyStore, validity time.Duration) *Engine {
	return &Engine{keys: keys, validity: validity}
}

// Sign mints a signed envelope for cap, stamping IssuedAt and
// Validity, appending cap.sym (the signing key id) and cap.msg (the
// HMAC-SHA256 signature over every other field).
func (e *Engine) Sign(cap types.Capability) (string, error) {
	key, err := e.keys.Current()
	if err != nil {
		return "", err
	}

	cap.IssuedAt = time.Now()
	cap.Validity = e.validity
	cap.KeyID = key.ID

	body := encodeFields(cap)
	mac := hmac.New(sha256.New, key.Secret)
	mac.Write([]byte(body))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	envelope := fmt.Sprintf("%s&cap.sym=%s&cap.msg=%s", body, key.ID, sig)
	if len(envelope) > MaxEnvelopeBytes {
		return "", mgmerr.New(mgmerr.Invalid, "capability: envelope of %d bytes exceeds the %d byte limit", len(envelope), MaxEnvelopeBytes)
	}
	return envelope, nil
}

// Verify recomputes the signature over token's body with the key
// named by cap.sym and rejects on mismatch or expiry (spec §8:
// "verify(sign(token, key)) = token for any valid key; verify rejects
// a token past its validity").
func (e *Engine) Verify(token string, now time.Time) (*types.Capability, error) {
	body, keyID, sig, err := splitEnvelope(token)
	if err != nil {
		return nil, err
	}

	key, ok := e.keys.Lookup(keyID)
	if !ok {
		return nil, mgmerr.New(mgmerr.TokenExpired, "capability: unknown signing key %q", keyID)
	}

	mac := hmac.New(sha256.New, key.Secret)
	mac.Write([]byte(body))
	want := mac.Sum(nil)
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(want, got) {
		return nil, mgmerr.New(mgmerr.TokenExpired, "capability: signature mismatch")
	}

	cap, err := decodeFields(body)
	if err != nil {
		return nil, err
	}
	cap.KeyID = keyID

	if now.After(cap.IssuedAt.Add(cap.Validity)) {
		return nil, mgmerr.New(mgmerr.TokenExpired, "capability: token for fid %x expired at %s", cap.FileID, cap.IssuedAt.Add(cap.Validity))
	}

	return &cap, nil
}

// splitEnvelope pulls cap.sym and cap.msg (always the final two
// fields, per Sign) off the body they were signed over.
func splitEnvelope(token string) (body, keyID, sig string, err error) {
	const sigMarker = "&cap.msg="
	const symMarker = "&cap.sym="

	sigIdx := strings.LastIndex(token, sigMarker)
	if sigIdx < 0 {
		return "", "", "", mgmerr.New(mgmerr.Invalid, "capability: envelope missing cap.msg")
	}
	sig = token[sigIdx+len(sigMarker):]
	rest := token[:sigIdx]

	symIdx := strings.LastIndex(rest, symMarker)
	if symIdx < 0 {
		return "", "", "", mgmerr.New(mgmerr.Invalid, "capability: envelope missing cap.sym")
	}
	keyID = rest[symIdx+len(symMarker):]
	body = rest[:symIdx]

	return body, keyID, sig, nil
}
