package segy

import "math"

const (
	ibmSignMask     = 0x80000000
	ibmExponentMask = 0x7F000000
	ibmMantissaMask = 0x00FFFFFF
	ieeeImplicitBit = 0x00800000
	ieeeFractionMax = 0x007FFFFF
	ieeeInfinity    = 0x7F800000
)

// IBMToFloat32 converts a 32-bit IBM System/360 hexadecimal float to IEEE
// 754 single precision. Underflow yields signed zero and overflow signed
// infinity; the result is never NaN.
//
// The exponent is rebased as (e-64)*4+127 and then lowered by one more,
// because an IBM fraction is 0.f where the IEEE significand is 1.f. The
// commonly quoted fast conversion omits that step and returns twice the
// true value; this function returns the exact value (0x41100000 is 1.0).
func IBMToFloat32(bits uint32) float32 {
	if bits == 0 {
		return 0
	}
	sign := bits & ibmSignMask
	mantissa := bits & ibmMantissaMask
	if mantissa == 0 {
		return math.Float32frombits(sign)
	}

	ieeeExp := (int((bits&ibmExponentMask)>>24)-64)*4 + 127
	for mantissa&ieeeImplicitBit == 0 {
		mantissa <<= 1
		ieeeExp--
	}
	// IBM fractions are 0.f while IEEE significands are 1.f.
	ieeeExp--

	if ieeeExp <= 0 {
		return math.Float32frombits(sign)
	}
	if ieeeExp >= 255 {
		return math.Float32frombits(sign | ieeeInfinity)
	}
	return math.Float32frombits(sign | uint32(ieeeExp)<<23 | mantissa&ieeeFractionMax)
}

// Float32ToIBM converts an IEEE float to the IBM hexadecimal representation,
// truncating low fraction bits. Values outside the IBM range saturate; NaN
// encodes as zero.
func Float32ToIBM(f float32) uint32 {
	v := float64(f)
	if v == 0 || math.IsNaN(v) {
		return 0
	}
	var sign uint32
	if v < 0 {
		sign = ibmSignMask
		v = -v
	}
	if math.IsInf(v, 0) {
		return sign | 0x7FFFFFFF
	}
	exp := 0
	for v >= 1 {
		v /= 16
		exp++
	}
	for v < 1.0/16 {
		v *= 16
		exp--
	}
	biased := exp + 64
	if biased <= 0 {
		return sign
	}
	if biased > 127 {
		return sign | 0x7FFFFFFF
	}
	return sign | uint32(biased)<<24 | uint32(v*(1<<24))&ibmMantissaMask
}
