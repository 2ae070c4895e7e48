package opsmodel

import "time"

// ISOLayout is the wire format for all timestamps crossing the RPC surface:
// UTC ISO-8601 with a literal "Z" suffix, no fractional seconds.
const ISOLayout = "2006-01-02T15:04:05Z"

// Timestamp wraps time.Time so that JSON encoding always produces the
// YYYY-MM-DDTHH:MM:SSZ shape regardless of the time zone of the wrapped value.
type Timestamp time.Time

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC())
}

func (t Timestamp) Time() time.Time {
	return time.Time(t).UTC()
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).UTC().Format(ISOLayout) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := time.Parse(ISOLayout, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}
