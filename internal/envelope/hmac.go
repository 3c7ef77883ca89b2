package envelope

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/titanx/execution-core/internal/model"
)

var (
	// ErrMissingSecurityFields is returned when sig, nonce, or ts is absent.
	ErrMissingSecurityFields = errors.New("envelope: missing sig/nonce/ts")
	// ErrStaleTimestamp is returned when the envelope ts falls outside tolerance.
	ErrStaleTimestamp = errors.New("envelope: timestamp outside tolerance")
	// ErrBadSignature is returned when the HMAC does not match.
	ErrBadSignature = errors.New("envelope: signature mismatch")
)

// DefaultToleranceMillis is the default |now - ts| tolerance (300s, spec §4.8 step 2).
const DefaultToleranceMillis = 300_000

// Verifier checks envelope signatures against a secret keyed by KeyID.
type Verifier struct {
	// Secrets maps key_id -> shared HMAC secret. A single-secret
	// deployment may populate just the "" entry.
	Secrets         map[string][]byte
	ToleranceMillis int64
}

// NewVerifier builds a Verifier with the default tolerance.
func NewVerifier(secrets map[string][]byte) *Verifier {
	return &Verifier{Secrets: secrets, ToleranceMillis: DefaultToleranceMillis}
}

// Verify implements spec §4.8's four steps and returns nil only when
// the envelope's signature is valid and fresh.
func (v *Verifier) Verify(env *model.Envelope, nowMillis int64) error {
	if env.Sig == "" || env.Nonce == "" || env.TSMillis == 0 {
		return ErrMissingSecurityFields
	}
	tol := v.ToleranceMillis
	if tol == 0 {
		tol = DefaultToleranceMillis
	}
	delta := nowMillis - env.TSMillis
	if delta < 0 {
		delta = -delta
	}
	if delta > tol {
		return ErrStaleTimestamp
	}

	canonicalPayload, err := Canonicalize(env.Payload)
	if err != nil {
		return fmt.Errorf("envelope: canonicalize payload: %w", err)
	}

	secret, ok := v.Secrets[env.KeyID]
	if !ok {
		secret, ok = v.Secrets[""]
	}
	if !ok {
		return ErrBadSignature
	}

	expected := Sign(secret, env.TSMillis, env.Nonce, canonicalPayload)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(env.Sig)) != 1 {
		return ErrBadSignature
	}
	return nil
}

// Sign computes HMAC-SHA256(secret, "{ts}.{nonce}.{canonical_payload}")
// hex-encoded (spec §4.8 step 4).
func Sign(secret []byte, tsMillis int64, nonce string, canonicalPayload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(fmt.Sprintf("%d.%s.", tsMillis, nonce)))
	mac.Write(canonicalPayload)
	return fmt.Sprintf("%x", mac.Sum(nil))
}
