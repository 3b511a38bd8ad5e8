package output

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const maxInlineBytes = 32

// NormalizeJSONValue rewrites CBOR-decoded values so encoding/json accepts
// them: map keys become strings, tags become {"tag", "content"} objects and
// long byte strings are summarized.
func NormalizeJSONValue(value any) any {
	switch v := value.(type) {
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = NormalizeJSONValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = NormalizeJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = NormalizeJSONValue(item)
		}
		return out
	case cbor.Tag:
		return map[string]any{
			"tag":     v.Number,
			"content": NormalizeJSONValue(v.Content),
		}
	case []byte:
		if len(v) <= maxInlineBytes {
			return base64.StdEncoding.EncodeToString(v)
		}
		return fmt.Sprintf("<%d bytes>", len(v))
	default:
		return v
	}
}

// MarshalJSON encodes a normalized value without HTML escaping, so byte
// summaries stay readable. indent may be empty for compact output.
func MarshalJSON(value any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
