package kb

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Year is a document's date: unknown (zero value), a single year, or an
// inclusive range. From <= To always holds for known values.
type Year struct {
	From int `json:"from,omitempty"`
	To   int `json:"to,omitempty"`
}

// Unknown is the zero Year.
var Unknown Year

// SingleYear returns a one-year Year.
func SingleYear(y int) Year { return Year{From: y, To: y} }

// Known reports whether y carries a valid value.
func (y Year) Known() bool { return y.From > 0 && y.To >= y.From }

// IsRange reports whether y spans more than one year.
func (y Year) IsRange() bool { return y.Known() && y.To > y.From }

// Contains reports whether year v lies inside y.
func (y Year) Contains(v int) bool { return y.Known() && v >= y.From && v <= y.To }

// Overlaps reports whether y intersects [from, to].
func (y Year) Overlaps(from, to int) bool {
	return y.Known() && y.From <= to && y.To >= from
}

// String renders "1945", "1945–1954" or "unknown".
func (y Year) String() string {
	switch {
	case !y.Known():
		return "unknown"
	case y.IsRange():
		return fmt.Sprintf("%d–%d", y.From, y.To)
	default:
		return strconv.Itoa(y.From)
	}
}

// MarshalJSON encodes a single year as a number, a range as [from, to] and
// unknown as null.
func (y Year) MarshalJSON() ([]byte, error) {
	switch {
	case !y.Known():
		return []byte("null"), nil
	case y.IsRange():
		return json.Marshal([2]int{y.From, y.To})
	default:
		return json.Marshal(y.From)
	}
}

// UnmarshalJSON accepts what MarshalJSON produces, plus anything
// NormalizeYear understands.
func (y *Year) UnmarshalJSON(b []byte) error {
	var span [2]int
	if err := json.Unmarshal(b, &span); err == nil {
		*y = Year{From: span[0], To: span[1]}
		if !y.Known() {
			*y = Unknown
		}
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*y = NormalizeYear(v)
	return nil
}

// Year values outside this window are treated as malformed.
const (
	minDocYear = 1
	maxDocYear = 2100
)

var yearRangeRe = regexp.MustCompile(`^\s*(\d{1,4})\s*[-–—]\s*(\d{1,4})\s*$`)

// NormalizeYear coerces a raw corpus value into a Year. Integers, integral
// floats, numeric strings and "A-B" strings are accepted; null, empty
// strings, booleans, lists and everything else become Unknown. It never
// panics.
func NormalizeYear(v any) Year {
	switch x := v.(type) {
	case nil, bool:
		return Unknown
	case int:
		return fromInt(x)
	case int32:
		return fromInt(int(x))
	case int64:
		return fromInt(int(x))
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return fromInt(int(i))
		}
		if f, err := x.Float64(); err == nil {
			return fromFloat(f)
		}
		return Unknown
	case string:
		return fromString(x)
	case Year:
		if x.Known() {
			return x
		}
		return Unknown
	default:
		return Unknown
	}
}

func fromInt(i int) Year {
	if i < minDocYear || i > maxDocYear {
		return Unknown
	}
	return SingleYear(i)
}

func fromFloat(f float64) Year {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return Unknown
	}
	return fromInt(int(f))
}

func fromString(s string) Year {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	if m := yearRangeRe.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		if a > b {
			a, b = b, a
		}
		if a < minDocYear || b > maxDocYear {
			return Unknown
		}
		return Year{From: a, To: b}
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return Unknown
	}
	return fromInt(i)
}
