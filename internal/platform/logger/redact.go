package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fields whose values never reach the log.
var secretMarkers = []string{
	"token", "authorization", "password", "secret", "cookie", "api_key", "apikey", "dsn",
	"email", "phone",
}

// Fields that identify a person; hashed so lines still correlate per user.
var identityKeys = map[string]bool{
	"user_id":        true,
	"storyteller_id": true,
	"facilitator_id": true,
	"member_id":      true,
	"x-user-id":      true,
}

type redactor struct {
	enabled bool
	salt    string
}

// fields scrubs a zap key/value list. A nil or disabled redactor returns kv as is.
func (r *redactor) fields(kv []interface{}) []interface{} {
	if r == nil || !r.enabled || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(kv); i += 2 {
		out[i+1] = r.value(normKey(kv[i]), kv[i+1])
	}
	return out
}

func (r *redactor) value(key string, val interface{}) interface{} {
	switch {
	case key == "":
		return val
	case isSecret(key):
		return "[REDACTED]"
	case isIdentity(key):
		return r.hash(val)
	}
	if m, ok := val.(map[string]interface{}); ok {
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[k] = r.value(normKey(k), v)
		}
		return out
	}
	return val
}

func (r *redactor) hash(val interface{}) string {
	raw := stringify(val)
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(r.salt + raw))
	return "hash:" + hex.EncodeToString(sum[:6])
}

func isSecret(key string) bool {
	for _, m := range secretMarkers {
		if strings.Contains(key, m) {
			return true
		}
	}
	return false
}

func isIdentity(key string) bool {
	return identityKeys[key] || strings.HasSuffix(key, "_user_id")
}

func normKey(k interface{}) string {
	return strings.ToLower(strings.TrimSpace(stringify(k)))
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
