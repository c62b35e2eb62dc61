package wire

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in     string
		wantMs int64
		wantOK bool
	}{
		{"{timestamp}1700000000123", 1700000000123, true},
		{"{timestamp}0", 0, true},
		{"{timestamp}", 0, true},
		{"{timestamp}-1000", -1000, true},
		{"{timestamp}-", 0, false},
		{"{timestamp}12a", 0, false},
		{"timestamp}123", 0, false},
		{"prefix {timestamp}123", 0, false},
		{"plain string", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseTimestamp(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got.UnixMilli() != tt.wantMs {
				t.Errorf("ParseTimestamp(%q) = %d ms, want %d", tt.in, got.UnixMilli(), tt.wantMs)
			}
		})
	}
}

func TestFormatTimestamp_TruncatesToMillis(t *testing.T) {
	ts := time.Unix(1700000000, 123456789)
	if got, want := FormatTimestamp(ts), "{timestamp}1700000000123"; got != want {
		t.Errorf("FormatTimestamp() = %s, want %s", got, want)
	}
}

func TestTime_JSON(t *testing.T) {
	type payload struct {
		Sent Time   `json:"sent"`
		Note string `json:"note"`
	}

	in := payload{Sent: Time(time.UnixMilli(1234567)), Note: "{not a timestamp"}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if want := `{"sent":"{timestamp}1234567","note":"{not a timestamp"}`; string(b) != want {
		t.Errorf("Marshal() = %s, want %s", b, want)
	}

	var out payload
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if time.Time(out.Sent).UnixMilli() != 1234567 {
		t.Errorf("Sent = %v, want 1234567 ms", time.Time(out.Sent))
	}
}

func TestRevive_LeavesOtherStrings(t *testing.T) {
	v := revive(map[string]any{
		"a": "{timestamp}5",
		"b": "{timestamp}x",
		"c": []any{"{timestamp}7", "hello"},
	}).(map[string]any)

	if _, ok := v["a"].(time.Time); !ok {
		t.Errorf("a = %T, want time.Time", v["a"])
	}
	if v["b"] != "{timestamp}x" {
		t.Errorf("b = %v, want untouched", v["b"])
	}
	list := v["c"].([]any)
	if _, ok := list[0].(time.Time); !ok {
		t.Errorf("c[0] = %T, want time.Time", list[0])
	}
	if list[1] != "hello" {
		t.Errorf("c[1] = %v, want hello", list[1])
	}
}
