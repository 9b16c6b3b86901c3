package logger

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const redacted = "[REDACTED]"

var secretKeyParts = []string{"token", "authorization", "password", "secret", "api_key", "apikey", "dsn"}

var participantKeyParts = []string{"participant_id", "prolific_id", "prolificid", "job_key"}

type scrubber struct {
	enabled bool
	key     []byte
}

func newScrubber(opts ...Option) *scrubber {
	s := &scrubber{enabled: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *scrubber) setKey(salt string) {
	salt = strings.TrimSpace(salt)
	if salt == "" {
		s.key = nil
		return
	}
	// blake2b accepts keys up to 64 bytes.
	if len(salt) > blake2b.Size {
		sum := blake2b.Sum256([]byte(salt))
		s.key = sum[:]
		return
	}
	s.key = []byte(salt)
}

func (s *scrubber) fields(kv []interface{}) []interface{} {
	if s == nil || !s.enabled || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		out = append(out, kv[i], s.value(normalizeKey(kv[i]), kv[i+1]))
	}
	return out
}

func (s *scrubber) value(key string, val interface{}) interface{} {
	switch {
	case key == "":
	case containsAny(key, secretKeyParts):
		return redacted
	case containsAny(key, participantKeyParts):
		return s.digest(val)
	}
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = s.value(normalizeKey(k), inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, inner := range v {
			out[i] = s.value("", inner)
		}
		return out
	default:
		return val
	}
}

// digest keeps log lines joinable per participant without exposing the ID.
func (s *scrubber) digest(val interface{}) string {
	raw := stringify(val)
	if raw == "" {
		return ""
	}
	h, err := blake2b.New256(s.key)
	if err != nil {
		return redacted
	}
	_, _ = h.Write([]byte(raw))
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}

func normalizeKey(k interface{}) string {
	return strings.ToLower(strings.TrimSpace(stringify(k)))
}

func containsAny(s string, parts []string) bool {
	for _, p := range parts {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
