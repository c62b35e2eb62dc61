package wire

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimestampPrefix tags a string as an encoded timestamp.
const TimestampPrefix = "{timestamp}"

var timestampPattern = regexp.MustCompile(`^\{timestamp\}(-?\d*)$`)

// FormatTimestamp returns the tagged wire form of t.
func FormatTimestamp(t time.Time) string {
	return TimestampPrefix + strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseTimestamp parses a tagged timestamp string. An empty digit run
// decodes to the epoch.
func ParseTimestamp(s string) (time.Time, bool) {
	if !strings.HasPrefix(s, TimestampPrefix) {
		return time.Time{}, false
	}
	m := timestampPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	var ms int64
	switch m[1] {
	case "":
	case "-":
		return time.Time{}, false
	default:
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		ms = v
	}
	return time.UnixMilli(ms), true
}

// Time is a time.Time that encodes in the tagged wire form. Use it for
// timestamp fields of typed payload structs.
type Time time.Time

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(FormatTimestamp(time.Time(t)))), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	v, ok := ParseTimestamp(s)
	if !ok {
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		v = parsed
	}
	*t = Time(v)
	return nil
}

// normalize replaces time.Time values inside generic containers with their
// tagged string form.
func normalize(v any) any {
	switch x := v.(type) {
	case time.Time:
		return FormatTimestamp(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return FormatTimestamp(*x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// revive turns tagged strings inside a decoded value back into time.Time.
func revive(v any) any {
	switch x := v.(type) {
	case string:
		if t, ok := ParseTimestamp(x); ok {
			return t
		}
		return x
	case map[string]any:
		for k, e := range x {
			x[k] = revive(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = revive(e)
		}
		return x
	default:
		return v
	}
}
