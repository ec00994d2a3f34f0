package document

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/store"
)

// encodeValue normalizes a patch value to its canonical stored form:
// enums become their lowercase tags, timestamps RFC 3339 strings, byte
// slices base64 text. Raw partial updates would otherwise persist typed
// values the store cannot represent.
func encodeValue(value any) any {
	switch v := value.(type) {
	case domain.Status:
		return v.String()
	case domain.FunnelStep:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC().Format(time.RFC3339Nano)
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	default:
		return value
	}
}

func docString(doc store.Document, field string) string {
	value, _ := doc[field].(string)
	return value
}

func docFloat(doc store.Document, field string, fallback float64) float64 {
	switch v := doc[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

func docStringSlice(doc store.Document, field string) []string {
	raw, _ := doc[field].([]any)
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	return values
}

func docTime(doc store.Document, field string) (*time.Time, error) {
	raw, ok := doc[field]
	if !ok || raw == nil {
		return nil, nil
	}
	text, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("field %s: expected timestamp string, got %T", field, raw)
	}
	parsed, err := time.Parse(time.RFC3339Nano, text)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", field, err)
	}
	return &parsed, nil
}

func docBytes(doc store.Document, field string) ([]byte, error) {
	raw, ok := doc[field]
	if !ok || raw == nil {
		return nil, nil
	}
	text, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("field %s: expected base64 string, got %T", field, raw)
	}
	decoded, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", field, err)
	}
	return decoded, nil
}
