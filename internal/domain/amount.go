package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Amount is a decimal money value kept in its wire form. The backend sends
// amounts as strings ("200000.0") but numbers are accepted too.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// Float parses the amount. ok is false for empty or malformed values.
func (a Amount) Float() (float64, bool) {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FloatOrZero parses the amount, treating anything unparsable as zero.
func (a Amount) FloatOrZero() float64 {
	v, _ := a.Float()
	return v
}
