package settings

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the inferred type of a setting.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindRange:
		return "range"
	default:
		return "none"
	}
}

// Range is a hyperparameter search space written as two numbers
// separated by a comma ("0.01, 10").
type Range struct {
	Low, High float64
	// Integer is set when both bounds were written as integers.
	Integer bool
}

// Mid returns the centre of the range, truncated for integer ranges.
func (r Range) Mid() float64 {
	m := (r.Low + r.High) / 2
	if r.Integer {
		return math.Floor(m)
	}
	return m
}

// Grid returns n evenly spaced points from Low to High inclusive.
// Integer ranges are rounded and deduplicated.
func (r Range) Grid(n int) []float64 {
	if n <= 1 || r.Low == r.High {
		return []float64{r.Mid()}
	}
	out := make([]float64, 0, n)
	step := (r.High - r.Low) / float64(n-1)
	for i := 0; i < n; i++ {
		v := r.Low + float64(i)*step
		if r.Integer {
			v = math.Round(v)
			if len(out) > 0 && out[len(out)-1] == v {
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

func (r Range) String() string {
	return formatNumber(r.Low) + ", " + formatNumber(r.High)
}

// Value is one typed setting. The raw text is kept so that values can be
// written back out unchanged.
type Value struct {
	raw   string
	kind  Kind
	b     bool
	i     int
	f     float64
	items []string
	rng   Range
}

// Parse infers the type of a raw setting:
// a comma list of exactly two numbers is a Range, any other comma list
// is a List; then int, float, bool (true/True/TRUE), none, and finally
// string.
func Parse(raw string) Value {
	s := strings.TrimSpace(raw)
	v := Value{raw: s}

	if strings.Contains(s, ",") {
		items := splitList(s)
		if len(items) == 2 {
			lo, okLo := number(items[0])
			hi, okHi := number(items[1])
			if okLo && okHi {
				v.kind = KindRange
				v.rng = Range{Low: lo, High: hi, Integer: isInt(items[0]) && isInt(items[1])}
				return v
			}
		}
		v.kind = KindList
		v.items = items
		return v
	}

	switch s {
	case "", "none", "None", "NONE":
		v.kind = KindNone
		return v
	case "true", "True", "TRUE":
		v.kind, v.b = KindBool, true
		return v
	case "false", "False", "FALSE":
		v.kind = KindBool
		return v
	}
	if n, err := strconv.Atoi(s); err == nil {
		v.kind, v.i, v.f = KindInt, n, float64(n)
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		v.kind, v.f = KindFloat, f
		return v
	}
	v.kind = KindString
	return v
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}

// number parses a range bound. NaN and infinities are not bounds.
func number(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Kind returns the inferred type.
func (v Value) Kind() Kind { return v.kind }

// Raw returns the trimmed source text.
func (v Value) Raw() string { return v.raw }

// IsNone reports whether the value is empty or "none".
func (v Value) IsNone() bool { return v.kind == KindNone }

// Bool returns the boolean value.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Int returns the integer value. Floats with no fractional part convert.
func (v Value) Int() (int, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.f == math.Trunc(v.f) {
			return int(v.f), true
		}
	}
	return 0, false
}

// Float returns the numeric value.
func (v Value) Float() (float64, bool) {
	return v.f, v.kind == KindInt || v.kind == KindFloat
}

// Range returns the search space.
func (v Value) Range() (Range, bool) { return v.rng, v.kind == KindRange }

// Strings returns the value as a list of names. A scalar becomes a
// one-element list and none becomes an empty list. A range is returned
// as its two bounds.
func (v Value) Strings() []string {
	switch v.kind {
	case KindNone:
		return nil
	case KindList:
		return append([]string(nil), v.items...)
	case KindRange:
		return splitList(v.raw)
	default:
		return []string{v.raw}
	}
}

// Native returns the value as int, float64, bool, string, []string,
// Range or nil.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.raw
	case KindList:
		return v.Strings()
	case KindRange:
		return v.rng
	default:
		return nil
	}
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%s)", v.kind, v.raw)
}
