package trade

import (
	"math"

	"mt5-gateway/pkg/mt5"
)

// QuantizeVolume rounds a volume to the nearest multiple of step.
func QuantizeVolume(volume, step float64) float64 {
	if step <= 0 {
		return volume
	}
	return math.Round(volume/step) * step
}

// NormalizeVolume quantizes to the instrument's step and clamps into
// [VolumeMin, VolumeMax].
func NormalizeVolume(volume float64, info *mt5.SymbolInfo) float64 {
	v := QuantizeVolume(volume, info.VolumeStep)
	return math.Max(info.VolumeMin, math.Min(info.VolumeMax, v))
}

// SelectFilling picks the instrument's execution mode: first supported in
// priority order FOK > IOC > RETURN.
func SelectFilling(info *mt5.SymbolInfo) (mt5.FillingMode, error) {
	supported := info.FillingMask.Supported()
	if len(supported) == 0 {
		return 0, ErrNoFillingMode
	}
	return supported[0], nil
}

// roundToDigits rounds a price to the instrument's precision.
func roundToDigits(price float64, digits int) float64 {
	factor := math.Pow(10, float64(digits))
	return math.Round(price*factor) / factor
}

// stopPrice derives an SL or TP price from a distance. below selects the
// side of the reference price: SL for BUY and TP for SELL sit below it.
func stopPrice(price, distance float64, digits int, below bool) float64 {
	if below {
		return roundToDigits(price-distance, digits)
	}
	return roundToDigits(price+distance, digits)
}

// widenDistance floors a non-zero distance at the instrument's minimum stop
// distance; a zero distance stays zero (no SL/TP).
func widenDistance(distance float64, info *mt5.SymbolInfo) float64 {
	if distance <= 0 {
		return distance
	}
	if min := info.StopDistance(); distance < min {
		return min
	}
	return distance
}
