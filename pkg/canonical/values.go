package canonical

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Ramsey-B/clover/pkg/expressions"
)

var evaluator = expressions.NewEvaluator()

// Evaluator returns the shared, cached JMESPath evaluator used for record lookups.
func Evaluator() *expressions.Evaluator {
	return evaluator
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseAmount reads a decimal amount from a JSON number, a numeric string
// ("$1,234.50") or a {"$numberDecimal": "..."} object.
func ParseAmount(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return checkFinite(t)
	case float32:
		return checkFinite(float64(t))
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", t, err)
		}
		return checkFinite(f)
	case string:
		cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(t))
		if cleaned == "" {
			return 0, fmt.Errorf("empty amount")
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", t)
		}
		return checkFinite(f)
	case map[string]any:
		if decimal, ok := t["$numberDecimal"]; ok {
			return ParseAmount(decimal)
		}
		return 0, fmt.Errorf("unsupported amount object")
	default:
		return 0, fmt.Errorf("unsupported amount type %T", v)
	}
}

func checkFinite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("amount is not finite")
	}
	return f, nil
}

// ParseTime reads a timestamp from a time.Time, a date string in one of the
// known layouts, a {"$date": ...} object, or epoch seconds/milliseconds.
func ParseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, fmt.Errorf("zero time")
		}
		return t.UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), nil
			}
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(n), nil
		}
		return time.Time{}, fmt.Errorf("invalid timestamp %q", t)
	case float64:
		return fromEpoch(t), nil
	case int64:
		return fromEpoch(float64(t)), nil
	case int:
		return fromEpoch(float64(t)), nil
	case map[string]any:
		if date, ok := t["$date"]; ok {
			return ParseTime(date)
		}
		return time.Time{}, fmt.Errorf("unsupported timestamp object")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// values above 1e11 are milliseconds; 1e11 seconds is the year 5138
func fromEpoch(n float64) time.Time {
	if n > 1e11 {
		return time.UnixMilli(int64(n)).UTC()
	}
	return time.Unix(int64(n), 0).UTC()
}

// AsString renders scalar values as strings. Objects and arrays yield "".
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case int, int64:
		return fmt.Sprintf("%d", t)
	default:
		return ""
	}
}

// FullName renders a name value that may be a plain string or an object
// with firstName/lastName keys.
func FullName(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		first := strings.TrimSpace(AsString(t["firstName"]))
		last := strings.TrimSpace(AsString(t["lastName"]))
		return strings.TrimSpace(first + " " + last)
	default:
		return ""
	}
}

func bookingContactName(raw map[string]any) string {
	for _, path := range []string{"registrationData.bookingContact", "bookingContact"} {
		if contact, ok := evaluator.Lookup(path, raw); ok {
			if _, isObject := contact.(map[string]any); !isObject {
				continue
			}
			if name := FullName(contact); name != "" {
				return name
			}
		}
	}
	return ""
}
