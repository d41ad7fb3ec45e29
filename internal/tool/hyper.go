package tool

import (
	"fmt"
	"math/big"
)

// HyperParam is one hyper-parameter of a tool step. For dimension
// computations and dimension predicates the value is an exact rational so
// that replayed numeric comparisons are reproducible; for every other kind
// the supplied value is carried opaquely.
type HyperParam struct {
	rat *big.Rat
	raw any
}

// Opaque wraps a value without coercion.
func Opaque(v any) HyperParam {
	return HyperParam{raw: v}
}

// Rational coerces a value to an exact rational hyper-parameter. Accepted
// inputs: *big.Rat, int, int64, float64 (converted exactly from its binary
// representation), strings in big.Rat syntax ("3", "1/2", "0.25"), and
// HyperParam values that already carry a rational.
func Rational(v any) (HyperParam, error) {
	switch x := v.(type) {
	case HyperParam:
		if x.rat != nil {
			return x, nil
		}
		return Rational(x.raw)
	case *big.Rat:
		return HyperParam{rat: new(big.Rat).Set(x)}, nil
	case big.Rat:
		return HyperParam{rat: new(big.Rat).Set(&x)}, nil
	case int:
		return HyperParam{rat: new(big.Rat).SetInt64(int64(x))}, nil
	case int64:
		return HyperParam{rat: new(big.Rat).SetInt64(x)}, nil
	case float64:
		r := new(big.Rat).SetFloat64(x)
		if r == nil {
			return HyperParam{}, fmt.Errorf("%w: non-finite float %v", ErrBadHyperParam, x)
		}
		return HyperParam{rat: r}, nil
	case string:
		r, ok := new(big.Rat).SetString(x)
		if !ok {
			return HyperParam{}, fmt.Errorf("%w: cannot parse rational %q", ErrBadHyperParam, x)
		}
		return HyperParam{rat: r}, nil
	}
	return HyperParam{}, fmt.Errorf("%w: unsupported value %T", ErrBadHyperParam, v)
}

// Rat returns the exact rational value, or false for opaque parameters.
// The returned value must not be mutated.
func (p HyperParam) Rat() (*big.Rat, bool) {
	if p.rat == nil {
		return nil, false
	}
	return p.rat, true
}

// Float returns the rational value as a float64, or false for opaque
// parameters.
func (p HyperParam) Float() (float64, bool) {
	if p.rat == nil {
		return 0, false
	}
	f, _ := p.rat.Float64()
	return f, true
}

// Raw returns the opaque value supplied to Opaque, or nil for rationals.
func (p HyperParam) Raw() any { return p.raw }

// String renders the parameter for traces and memo keys. Rationals render
// in canonical a/b form, so equal rationals always render identically.
func (p HyperParam) String() string {
	if p.rat != nil {
		return p.rat.RatString()
	}
	return fmt.Sprintf("%v", p.raw)
}
