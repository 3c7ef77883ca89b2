package model

// Envelope is the wire wrapper every bus message travels inside
// (spec §4.8, §6). Payload is left as raw JSON so verification can
// canonicalize it before the typed payload is unmarshaled.
type Envelope struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Version       string `json:"version"`
	TSMillis      int64  `json:"ts"`
	Producer      string `json:"producer"`
	PartitionKey  string `json:"partition_key,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	CausationID   string `json:"causation_id,omitempty"`

	Sig   string `json:"sig,omitempty"`
	KeyID string `json:"key_id,omitempty"`
	Nonce string `json:"nonce,omitempty"`

	Payload []byte `json:"payload"`
}
