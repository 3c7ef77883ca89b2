package envelope

import (
	"encoding/json"

	"github.com/titanx/execution-core/internal/clockid"
	"github.com/titanx/execution-core/internal/model"
)

// Producer is the tag outgoing envelopes carry (spec §6).
const Producer = "titan-execution-core"

// Builder constructs and signs outgoing envelopes using an injected
// clock/id provider so the whole path stays deterministic under replay.
type Builder struct {
	Clock  clockid.Provider
	Secret []byte
	KeyID  string
}

// Wrap marshals payload, canonicalizes it, signs it, and returns a
// ready-to-publish Envelope.
func (b *Builder) Wrap(msgType string, payload interface{}) (*model.Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	canon, err := Canonicalize(raw)
	if err != nil {
		return nil, err
	}
	ts := b.Clock.NowMillis()
	nonce := b.Clock.NewID()
	env := &model.Envelope{
		ID:       b.Clock.NewID(),
		Type:     msgType,
		Version:  "v1",
		TSMillis: ts,
		Producer: Producer,
		Nonce:    nonce,
		KeyID:    b.KeyID,
		Payload:  raw,
	}
	env.Sig = Sign(b.Secret, ts, nonce, canon)
	return env, nil
}
