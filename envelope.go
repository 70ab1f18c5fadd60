package xclaim

import "encoding/json"

// MessageEnvelope is the wire format of every queue message. Storage queues
// have no native metadata channel, so markers, original size and capability
// URIs travel inside the serialized body.
type MessageEnvelope struct {
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata"`
}

// encodeEnvelope serializes body and metadata into the queue wire format.
func encodeEnvelope(body string, metadata map[string]string) (string, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	b, err := json.Marshal(MessageEnvelope{Body: body, Metadata: metadata})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeEnvelope parses the wire format. A raw string that is not an
// envelope (malformed or legacy producer) degrades gracefully to a plain
// body with empty metadata.
func decodeEnvelope(raw string) MessageEnvelope {
	var env MessageEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || !looksLikeEnvelope(raw) {
		return MessageEnvelope{Body: raw, Metadata: map[string]string{}}
	}
	if env.Metadata == nil {
		env.Metadata = map[string]string{}
	}
	return env
}

// looksLikeEnvelope guards against JSON inputs that parse into the envelope
// struct by accident (e.g. `"hello"` or `{}` with no body field).
func looksLikeEnvelope(raw string) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return false
	}
	_, ok := probe["body"]
	return ok
}
