package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Shape names one of the small fixed-shape objects understat embeds in its
// records. Each shape has its own decoder instead of free-form indexing.
type Shape int

const (
	// ShapeHomeAway is a pair keyed h/a, e.g. goals or xG of a match.
	ShapeHomeAway Shape = iota
	// ShapeForecast is a win/draw/loss probability triple keyed w/d/l.
	ShapeForecast
	// ShapeMaxMinAvg is a statistic summary keyed max/min/avg.
	ShapeMaxMinAvg
	// ShapeAgainst is a conceded-counter triple keyed shots/goals/xG.
	ShapeAgainst
)

func (s Shape) String() string {
	switch s {
	case ShapeHomeAway:
		return "home/away"
	case ShapeForecast:
		return "forecast"
	case ShapeMaxMinAvg:
		return "max/min/avg"
	case ShapeAgainst:
		return "against"
	default:
		return "unknown shape"
	}
}

// ExtractNestedField decodes record[field] as the given shape and projects out
// subkey. An empty field means record itself is the nested value. Nested
// values that arrive as JSON text are decoded first.
//
// Accepted subkeys (case-insensitive):
//   - ShapeHomeAway: H, A
//   - ShapeForecast: H or W (home win), A or L (away win), D (draw)
//   - ShapeMaxMinAvg: max/maximum, min/minimum, avg/average
//   - ShapeAgainst: shots, goals, xG
func ExtractNestedField(record Value, field string, shape Shape, subkey string) (Value, error) {
	nested := record
	if field != "" {
		v, ok := record.Get(field)
		if !ok {
			return Value{}, &MissingColumnError{Column: field}
		}
		nested = v
	}

	wrap := func(err error) error {
		if fe, ok := err.(*InvalidFieldError); ok && fe.Field == "" {
			fe.Field = field
		}
		return err
	}

	switch shape {
	case ShapeHomeAway:
		pair, err := DecodeHomeAway(nested)
		if err != nil {
			return Value{}, wrap(err)
		}
		v, err := pair.Side(subkey)
		return v, wrap(err)
	case ShapeForecast:
		f, err := DecodeForecast(nested)
		if err != nil {
			return Value{}, wrap(err)
		}
		p, err := f.Probability(subkey)
		if err != nil {
			return Value{}, wrap(err)
		}
		return Number(p), nil
	case ShapeMaxMinAvg:
		m, err := DecodeMaxMinAvg(nested)
		if err != nil {
			return Value{}, wrap(err)
		}
		s, err := m.Stat(subkey)
		if err != nil {
			return Value{}, wrap(err)
		}
		return Number(s), nil
	case ShapeAgainst:
		a, err := DecodeAgainst(nested)
		if err != nil {
			return Value{}, wrap(err)
		}
		v, err := a.Counter(subkey)
		return v, wrap(err)
	default:
		return Value{}, &InvalidFieldError{Field: field, Subkey: subkey, Shape: shape}
	}
}

// nestedObject returns v as an object, decoding it first when the object was
// serialised into a string.
func nestedObject(v Value) (Value, error) {
	switch v.Kind() {
	case KindObject:
		return v, nil
	case KindString:
		s, _ := v.Str()
		decoded, err := Decode(s)
		if err != nil {
			return Value{}, err
		}
		if !decoded.IsObject() {
			return Value{}, &ShapeError{Want: "nested object", Got: decoded.Kind().String()}
		}
		return decoded, nil
	default:
		return Value{}, &ShapeError{Want: "nested object", Got: v.Kind().String()}
	}
}

func requireKey(obj Value, key string, shape Shape) (Value, error) {
	v, ok := obj.Get(key)
	if !ok {
		return Value{}, &InvalidFieldError{Subkey: key, Shape: shape}
	}
	return v, nil
}

func requireFloat(obj Value, key string, shape Shape) (float64, error) {
	v, err := requireKey(obj, key, shape)
	if err != nil {
		return 0, err
	}
	f, ok := v.Float()
	if !ok {
		return 0, &TypeCoercionError{Column: key, Row: -1, Want: "float", Value: v.Text()}
	}
	return f, nil
}

func normalizeSubkey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// HomeAway is a value pair for the home and away side.
type HomeAway struct {
	Home Value
	Away Value
}

// DecodeHomeAway decodes an {"h": …, "a": …} object.
func DecodeHomeAway(v Value) (HomeAway, error) {
	obj, err := nestedObject(v)
	if err != nil {
		return HomeAway{}, err
	}
	h, err := requireKey(obj, "h", ShapeHomeAway)
	if err != nil {
		return HomeAway{}, err
	}
	a, err := requireKey(obj, "a", ShapeHomeAway)
	if err != nil {
		return HomeAway{}, err
	}
	return HomeAway{Home: h, Away: a}, nil
}

// Side returns the home (H) or away (A) value.
func (p HomeAway) Side(subkey string) (Value, error) {
	switch normalizeSubkey(subkey) {
	case "h":
		return p.Home, nil
	case "a":
		return p.Away, nil
	default:
		return Value{}, &InvalidFieldError{Subkey: subkey, Shape: ShapeHomeAway}
	}
}

// Forecast holds pre-match outcome probabilities from the home side's view.
type Forecast struct {
	Win  float64
	Draw float64
	Loss float64
}

// DecodeForecast decodes a {"w": …, "d": …, "l": …} object.
func DecodeForecast(v Value) (Forecast, error) {
	obj, err := nestedObject(v)
	if err != nil {
		return Forecast{}, err
	}
	w, err := requireFloat(obj, "w", ShapeForecast)
	if err != nil {
		return Forecast{}, err
	}
	d, err := requireFloat(obj, "d", ShapeForecast)
	if err != nil {
		return Forecast{}, err
	}
	l, err := requireFloat(obj, "l", ShapeForecast)
	if err != nil {
		return Forecast{}, err
	}
	return Forecast{Win: w, Draw: d, Loss: l}, nil
}

// Probability returns the home win (H/W), away win (A/L) or draw (D)
// probability.
func (f Forecast) Probability(subkey string) (float64, error) {
	switch normalizeSubkey(subkey) {
	case "h", "w":
		return f.Win, nil
	case "a", "l":
		return f.Loss, nil
	case "d":
		return f.Draw, nil
	default:
		return 0, &InvalidFieldError{Subkey: subkey, Shape: ShapeForecast}
	}
}

// Percent is Probability scaled to a percentage rounded to two places.
func (f Forecast) Percent(subkey string) (float64, error) {
	p, err := f.Probability(subkey)
	if err != nil {
		return 0, err
	}
	pct, _ := decimal.NewFromFloat(p).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return pct, nil
}

// MaxMinAvg summarises a statistic across a player's matches.
type MaxMinAvg struct {
	Max float64
	Min float64
	Avg float64
}

// DecodeMaxMinAvg decodes a {"max": …, "min": …, "avg": …} object.
func DecodeMaxMinAvg(v Value) (MaxMinAvg, error) {
	obj, err := nestedObject(v)
	if err != nil {
		return MaxMinAvg{}, err
	}
	maxV, err := requireFloat(obj, "max", ShapeMaxMinAvg)
	if err != nil {
		return MaxMinAvg{}, err
	}
	minV, err := requireFloat(obj, "min", ShapeMaxMinAvg)
	if err != nil {
		return MaxMinAvg{}, err
	}
	avgV, err := requireFloat(obj, "avg", ShapeMaxMinAvg)
	if err != nil {
		return MaxMinAvg{}, err
	}
	return MaxMinAvg{Max: maxV, Min: minV, Avg: avgV}, nil
}

// Stat returns the maximum, minimum or average.
func (m MaxMinAvg) Stat(subkey string) (float64, error) {
	switch normalizeSubkey(subkey) {
	case "max", "maximum":
		return m.Max, nil
	case "min", "minimum":
		return m.Min, nil
	case "avg", "average":
		return m.Avg, nil
	default:
		return 0, &InvalidFieldError{Subkey: subkey, Shape: ShapeMaxMinAvg}
	}
}

// Against holds what a team conceded in one situation.
type Against struct {
	Shots int64
	Goals int64
	XG    float64
}

// DecodeAgainst decodes a {"shots": …, "goals": …, "xG": …} object.
func DecodeAgainst(v Value) (Against, error) {
	obj, err := nestedObject(v)
	if err != nil {
		return Against{}, err
	}
	var out Against
	for _, key := range []string{"shots", "goals"} {
		raw, err := requireKey(obj, key, ShapeAgainst)
		if err != nil {
			return Against{}, err
		}
		n, ok := raw.Int64()
		if !ok {
			return Against{}, &TypeCoercionError{Column: key + "_against", Row: -1, Want: "int", Value: raw.Text()}
		}
		if key == "shots" {
			out.Shots = n
		} else {
			out.Goals = n
		}
	}
	xg, err := requireFloat(obj, "xG", ShapeAgainst)
	if err != nil {
		return Against{}, err
	}
	out.XG = xg
	return out, nil
}

// Counter returns shots, goals or xG as a value.
func (a Against) Counter(subkey string) (Value, error) {
	switch normalizeSubkey(subkey) {
	case "shots":
		return Int(a.Shots), nil
	case "goals":
		return Int(a.Goals), nil
	case "xg":
		return Number(a.XG), nil
	default:
		return Value{}, &InvalidFieldError{Subkey: subkey, Shape: ShapeAgainst}
	}
}

// TeamTitle returns the title of an embedded team object such as a match's
// h or a field.
func TeamTitle(v Value) (string, error) {
	obj, err := nestedObject(v)
	if err != nil {
		return "", err
	}
	t, ok := obj.Get("title")
	if !ok {
		return "", &MissingColumnError{Column: "title"}
	}
	return t.Text(), nil
}
