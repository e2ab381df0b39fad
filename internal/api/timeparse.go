package api

import (
	"fmt"
	"strings"
	"time"
)

// timeLayouts — форматы дат, которые встречаются в ответах backend.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime разбирает дату из ответа backend в одном из известных форматов.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format %q", raw)
}

// flexTime принимает дату в любом из timeLayouts; нераспознанное значение оставляет нулевым.
type flexTime struct {
	time.Time
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		return nil
	}
	t, err := ParseTime(s)
	if err != nil {
		f.Time = time.Time{}
		return nil
	}
	f.Time = t
	return nil
}
