package redisstream

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/trickstertwo/xchat"
)

const (
	fieldID         = "id"
	fieldName       = "name"
	fieldPayload    = "payload"    // raw bytes, no base64
	fieldProducedAt = "producedAt" // unix ns
	fieldMetaPrefix = "meta:"
)

func encodeEnvelope(env *xchat.Envelope) map[string]any {
	vals := make(map[string]any, 4+len(env.Metadata))
	if env.ID != "" {
		vals[fieldID] = env.ID
	}
	vals[fieldName] = env.Name
	vals[fieldPayload] = env.Payload
	vals[fieldProducedAt] = env.ProducedAt.UnixNano()
	for k, v := range env.Metadata {
		vals[fieldMetaPrefix+k] = v
	}
	return vals
}

// decodeEnvelope rebuilds an envelope from stream entry values. The stream
// entry id wins over any id carried in the fields.
func decodeEnvelope(id string, vals map[string]any) *xchat.Envelope {
	env := &xchat.Envelope{ID: id, Metadata: map[string]string{}}
	if v, ok := vals[fieldName]; ok {
		env.Name = asString(v)
	}
	switch p := vals[fieldPayload].(type) {
	case []byte:
		env.Payload = p
	case string:
		env.Payload = []byte(p)
	}
	if ns, ok := toInt64(vals[fieldProducedAt]); ok && ns > 0 {
		env.ProducedAt = time.Unix(0, ns)
	}
	for k, v := range vals {
		if key, ok := strings.CutPrefix(k, fieldMetaPrefix); ok {
			env.Metadata[key] = asString(v)
		}
	}
	return env
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	case []byte:
		return toInt64(string(n))
	}
	return 0, false
}
