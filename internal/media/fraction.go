package media

import (
	"fmt"
	"math"
)

// Fraction is an exact rational number, used for framerates in negotiation descriptors.
type Fraction struct {
	Num int
	Den int
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// Float64 returns the fraction as a floating point value.
func (f Fraction) Float64() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

const (
	fractionMaxTerms = 30
	fractionEpsilon  = 1e-9
	fractionMaxValue = math.MaxInt32
)

// FractionFromFloat converts v into the closest rational with both terms fitting an int32,
// using a continued fraction expansion. Integral values yield a denominator of 1.
func FractionFromFloat(v float64) Fraction {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Fraction{Num: 0, Den: 1}
	}

	negative := v < 0
	if negative {
		v = -v
	}

	// Convergents h(n)/k(n) of the continued fraction of v.
	h0, h1 := 0, 1
	k0, k1 := 1, 0
	x := v
	for i := 0; i < fractionMaxTerms; i++ {
		a := math.Floor(x)
		if a > fractionMaxValue {
			break
		}
		ai := int(a)
		h2 := ai*h1 + h0
		k2 := ai*k1 + k0
		if h2 > fractionMaxValue || k2 > fractionMaxValue {
			break
		}
		h0, h1 = h1, h2
		k0, k1 = k1, k2

		frac := x - a
		if frac < fractionEpsilon || math.Abs(v-float64(h1)/float64(k1)) < fractionEpsilon*v {
			break
		}
		x = 1 / frac
	}

	if k1 == 0 {
		return Fraction{Num: 0, Den: 1}
	}
	if negative {
		h1 = -h1
	}
	return Fraction{Num: h1, Den: k1}
}
