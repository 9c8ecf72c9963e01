package location

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Amount is a total that may not be known yet. Arithmetic with an unknown
// operand yields unknown; unknown is never coerced to zero.
type Amount struct {
	v     float64
	known bool
}

var Unknown = Amount{}

func Known(v float64) Amount {
	return Amount{v: v, known: true}
}

func (a Amount) Float() (float64, bool) { return a.v, a.known }

func (a Amount) IsKnown() bool { return a.known }

func (a Amount) Add(b Amount) Amount {
	if !a.known || !b.known {
		return Unknown
	}
	return Known(a.v + b.v)
}

func (a Amount) Scale(f float64) Amount {
	if !a.known {
		return Unknown
	}
	return Known(a.v * f)
}

// Compare orders unknown before every known amount
func (a Amount) Compare(b Amount) int {
	switch {
	case !a.known && !b.known:
		return 0
	case !a.known:
		return -1
	case !b.known:
		return 1
	case a.v < b.v:
		return -1
	case a.v > b.v:
		return 1
	default:
		return 0
	}
}

func (a Amount) String() string {
	if !a.known {
		return "?"
	}
	return strconv.FormatFloat(a.v, 'f', -1, 64)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.known {
		return []byte("null"), nil
	}
	return json.Marshal(a.v)
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = Unknown
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = Known(v)
	return nil
}

func amountOf(v *float64) Amount {
	if v == nil {
		return Unknown
	}
	return Known(*v)
}
