package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the canonical transport form of timestamp columns.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DateLayout is the canonical form of date columns.
const DateLayout = "2006-01-02"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DateLayout,
	"1/2/2006 15:04:05",
	"1/2/2006",
}

var errBlank = errors.New("blank")

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errBlank
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// stringify renders any cell value as text. Numbers never use exponent form,
// so a numeric cell 1 and a text cell "1" compare equal.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return formatTimestamp(x)
	case *time.Time:
		if x == nil {
			return ""
		}
		return formatTimestamp(*x)
	case fmt.Stringer:
		return x.String()
	case map[string]any, []any:
		raw, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(raw)
	default:
		return fmt.Sprint(x)
	}
}

// cellString is the coerced form used for identifier matching.
func cellString(v any) string {
	return strings.TrimSpace(stringify(v))
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case *time.Time:
		return x == nil
	}
	return false
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case bool:
		return 0, fmt.Errorf("boolean is not a number")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(stringify(v)), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", stringify(v))
	}
	return f, nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case int:
		return x != 0, nil
	}
	switch strings.ToLower(cellString(v)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", stringify(v))
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case *time.Time:
		if x == nil {
			return time.Time{}, errBlank
		}
		return *x, nil
	}
	return parseTime(stringify(v))
}

// encodeCell coerces a record value into the cell written to the backend.
func encodeCell(col Column, v any) (any, error) {
	if isBlank(v) {
		return "", nil
	}
	switch col.Type {
	case Number:
		return toFloat(v)
	case Bool:
		return toBool(v)
	case Timestamp:
		t, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return formatTimestamp(t), nil
	case Date:
		t, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return t.Format(DateLayout), nil
	case JSON:
		if s, ok := v.(string); ok {
			if !json.Valid([]byte(s)) {
				return nil, fmt.Errorf("invalid JSON")
			}
			return s, nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	default:
		return stringify(v), nil
	}
}

// decodeCell canonicalizes a stored cell for transport. Blank typed cells
// decode to nil; blank text decodes to "".
func decodeCell(col Column, cell any) (any, error) {
	if isBlank(cell) {
		if col.Type == Text {
			return "", nil
		}
		return nil, nil
	}
	switch col.Type {
	case Number:
		f, err := toFloat(cell)
		if err != nil {
			return nil, err
		}
		return f, nil
	case Bool:
		b, err := toBool(cell)
		if err != nil {
			return nil, err
		}
		return b, nil
	case Timestamp:
		t, err := toTime(cell)
		if err != nil {
			return nil, err
		}
		return formatTimestamp(t), nil
	case Date:
		t, err := toTime(cell)
		if err != nil {
			return nil, err
		}
		return t.Format(DateLayout), nil
	case JSON:
		s, ok := cell.(string)
		if !ok {
			return cell, nil
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return out, nil
	default:
		return stringify(cell), nil
	}
}

// decodeSettingValue parses a settings cell as JSON, falling back to the raw text.
func decodeSettingValue(cell any) any {
	s, ok := cell.(string)
	if !ok {
		return cell
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return s
	}
	return out
}

// encodeSettingValue stores structured values as JSON text and scalars as-is.
func encodeSettingValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string, bool, float64:
		return x, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String(), nil
		}
		return f, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	}
}
