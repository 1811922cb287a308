// Package fixedpoint implements the platform's scaled-integer money and
// ratio types. No floats sit on any matching, margin, or settlement
// critical path; every externally exchanged amount is an int64 scaled by
// Scale and encoded on the wire as a decimal string.
package fixedpoint

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Scale is the fixed-point scale shared by Price, Quantity, and Value:
// 1 unit = 1e-8.
const Scale = 100_000_000

// BpsScale is the scale for Rate and BasisPoints: 1 bp = 1/10000;
// BasisPoints additionally resolves to 1/100 of a bp.
const (
	BpsScale       = 10_000
	BasisPointUnit = 100 // internal units per bp for BasisPoints
)

// RatioScale matches Scale; Ratio, Confidence, Strength, Volatility, and
// ZScore all share it.
const RatioScale = Scale

// mulDivScale computes a*b/Scale using a 128-bit intermediate product so
// that a,b up to the full int64 range never overflow before the divide.
// Returns 0 (the numerical-defensive sentinel) if either operand is the
// zero sentinel combination that would otherwise divide by zero — Scale is
// a compile-time constant so that case cannot occur, but the helper stays
// defensive about sign handling for negative operands.
func mulDivScale(a, b int64) int64 {
	neg := false
	ua, ub := uint64(a), uint64(b)
	if a < 0 {
		neg = !neg
		ua = uint64(-a)
	}
	if b < 0 {
		neg = !neg
		ub = uint64(-b)
	}
	hi, lo := bits.Mul64(ua, ub)
	q, _ := bits.Div64(hi, lo, Scale)
	if neg {
		return -int64(q)
	}
	return int64(q)
}

// Price is a scaled int64: raw value = price * 10^-8.
type Price int64

// Quantity is a scaled int64: raw value = quantity * 10^-8.
type Quantity int64

// Value is a scaled int64, the result of multiplying a Price by a
// Quantity: raw value = value * 10^-8.
type Value int64

// Rate is integer basis points: 1 bp = 1/10000.
type Rate int64

// BasisPoints carries sub-bp resolution: 1 internal unit = 1/100 bp.
type BasisPoints int64

// Ratio is a signed value in [-1,1] scaled by 10^8.
type Ratio int64

// Confidence is a Ratio-scaled value clamped to >= 0 (conceptually [0,1]).
type Confidence int64

// Strength is a Ratio-scaled value in [-1,1].
type Strength int64

// Volatility is a Ratio-scaled value clamped to >= 0.
type Volatility int64

// ZScore is a Ratio-scaled signed value, unbounded.
type ZScore int64

// TimestampMs is wall-clock time in milliseconds, used for TCA ordering.
type TimestampMs int64

// TimestampNs is wall-clock time in nanoseconds, used for intra-tick
// sequencing within a single component.
type TimestampNs int64

// ZeroPrice, ZeroQuantity, and ZeroValue are the raw-zero sentinels
// required by spec: the zero value of each scaled type IS the sentinel,
// so no separate constant is needed, but they are named here for
// readability at call sites.
const (
	ZeroPrice    Price    = 0
	ZeroQuantity Quantity = 0
	ZeroValue    Value    = 0
)

// Mul returns p*q as a Value, using a 128-bit intermediate.
func (p Price) Mul(q Quantity) Value {
	return Value(mulDivScale(int64(p), int64(q)))
}

// Div divides a Value by a Price to recover a Quantity. Returns 0 if p is
// zero (numerical-defensive: never panics on division by zero).
func (v Value) Div(p Price) Quantity {
	if p == 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(abs64(int64(v))), Scale)
	q, _ := bits.Div64(hi, lo, uint64(abs64(int64(p))))
	if (v < 0) != (p < 0) {
		return Quantity(-int64(q))
	}
	return Quantity(q)
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// Add/Sub/Neg/Abs for Price, Quantity, Value follow normal integer
// semantics under the shared scale (addition/subtraction never need
// rescaling).

func (p Price) Add(o Price) Price       { return p + o }
func (p Price) Sub(o Price) Price       { return p - o }
func (p Price) Neg() Price              { return -p }
func (p Price) IsZero() bool            { return p == 0 }
func (q Quantity) Add(o Quantity) Quantity { return q + o }
func (q Quantity) Sub(o Quantity) Quantity { return q - o }
func (q Quantity) Neg() Quantity        { return -q }
func (q Quantity) IsZero() bool         { return q == 0 }
func (v Value) Add(o Value) Value       { return v + o }
func (v Value) Sub(o Value) Value       { return v - o }
func (v Value) Neg() Value              { return -v }
func (v Value) IsZero() bool            { return v == 0 }

// MulRate applies a Rate (bps) to a Value: v * rate / 10000.
func (v Value) MulRate(r Rate) Value {
	hi, lo := bits.Mul64(uint64(abs64(int64(v))), uint64(abs64(int64(r))))
	q, _ := bits.Div64(hi, lo, BpsScale)
	if (v < 0) != (r < 0) {
		return Value(-int64(q))
	}
	return Value(q)
}

// MulRatio scales a Value by a Ratio: v * ratio / Scale.
func (v Value) MulRatio(r Ratio) Value {
	return Value(mulDivScale(int64(v), int64(r)))
}

// String renders the scaled value as an exact decimal string.
func (p Price) String() string    { return formatScaled(int64(p), Scale) }
func (q Quantity) String() string { return formatScaled(int64(q), Scale) }
func (v Value) String() string    { return formatScaled(int64(v), Scale) }

// Float64 conversions exist for boundary code (simulation, TCA) that must
// interoperate with float-based statistics; nothing on the matching,
// margin, or settlement critical path uses them.
func (p Price) Float64() float64    { return float64(p) / float64(Scale) }
func (q Quantity) Float64() float64 { return float64(q) / float64(Scale) }
func (v Value) Float64() float64    { return float64(v) / float64(Scale) }

func PriceFromFloat64(f float64) Price       { return Price(f * float64(Scale)) }
func QuantityFromFloat64(f float64) Quantity { return Quantity(f * float64(Scale)) }
func ValueFromFloat64(f float64) Value       { return Value(f * float64(Scale)) }

func formatScaled(raw int64, scale int64) string {
	neg := raw < 0
	u := uint64(raw)
	if neg {
		u = uint64(-raw)
	}
	whole := u / uint64(scale)
	frac := u % uint64(scale)
	digits := len(strconv.FormatInt(scale, 10)) - 1
	s := fmt.Sprintf("%d.%0*d", whole, digits, frac)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if neg && (whole != 0 || frac != 0) {
		s = "-" + s
	}
	return s
}

// ParsePrice, ParseQuantity, and ParseValue accept up to 10 decimal places
// and parse exactly, per the wire convention in spec §6.
func ParsePrice(s string) (Price, error) {
	v, err := parseScaled(s, Scale)
	return Price(v), err
}

func ParseQuantity(s string) (Quantity, error) {
	v, err := parseScaled(s, Scale)
	return Quantity(v), err
}

func ParseValue(s string) (Value, error) {
	v, err := parseScaled(s, Scale)
	return Value(v), err
}

func parseScaled(s string, scale int64) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("fixedpoint: empty decimal string")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	parts := strings.SplitN(s, ".", 2)
	whole, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil && parts[0] != "" {
		return 0, fmt.Errorf("fixedpoint: invalid integer part %q: %w", parts[0], err)
	}
	digits := len(strconv.FormatInt(scale, 10)) - 1
	frac := uint64(0)
	if len(parts) == 2 {
		fracStr := parts[1]
		if len(fracStr) > digits+2 {
			return 0, fmt.Errorf("fixedpoint: too many decimal places in %q (max %d)", s, digits+2)
		}
		for len(fracStr) < digits {
			fracStr += "0"
		}
		if len(fracStr) > digits {
			// Accept up to 10 decimal places for values scaled at 1e8 by
			// rounding the extra digits away (spec: "accept up to 10
			// decimal places").
			fracStr = fracStr[:digits]
		}
		frac, err = strconv.ParseUint(fracStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("fixedpoint: invalid fractional part %q: %w", parts[1], err)
		}
	}
	raw := int64(whole*uint64(scale) + frac)
	if neg {
		raw = -raw
	}
	return raw, nil
}

// MarshalJSON encodes the value as a quoted decimal string, exact to scale.
func (p Price) MarshalJSON() ([]byte, error)    { return []byte(`"` + p.String() + `"`), nil }
func (q Quantity) MarshalJSON() ([]byte, error) { return []byte(`"` + q.String() + `"`), nil }
func (v Value) MarshalJSON() ([]byte, error)    { return []byte(`"` + v.String() + `"`), nil }

func (p *Price) UnmarshalJSON(b []byte) error {
	v, err := ParsePrice(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (q *Quantity) UnmarshalJSON(b []byte) error {
	v, err := ParseQuantity(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	p, err := ParseValue(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*v = p
	return nil
}
