package insert

import "math"

// ClipFxKind mirrors trackmgr.ClipFxKind's values; duplicated here (rather
// than imported) to keep this package free of a dependency on trackmgr —
// the engine package is the only one that needs to translate between the
// two. The built-in set is closed and inline per spec.md 4.12 step 5:
// "stateful FX such as EQ and pitch-shift... implemented by the
// insert-chain processor model instead."
type ClipFxKind int

const (
	ClipFxGain ClipFxKind = iota
	ClipFxSaturation
	ClipFxLimiter
	ClipFxGate
	ClipFxCompressor
)

// ApplyClipFxSample runs one built-in clip effect on a single sample,
// given its single-parameter knob. The gate additionally takes an optional
// running envelope the caller threads across calls; the compressor is
// instantaneous and ignores it (these are simple static/instantaneous
// variants, not full dynamics processors — those belong in the
// InsertChain instead).
func ApplyClipFxSample(kind ClipFxKind, x float64, param float64, envelope *float64) float64 {
	switch kind {
	case ClipFxGain:
		return x * param
	case ClipFxSaturation:
		drive := param
		if drive <= 0 {
			drive = 1
		}
		return math.Tanh(drive * x)
	case ClipFxLimiter:
		ceiling := param
		if ceiling <= 0 {
			ceiling = 1
		}
		if x > ceiling {
			return ceiling
		}
		if x < -ceiling {
			return -ceiling
		}
		return x
	case ClipFxGate:
		threshold := param
		abs := math.Abs(x)
		if envelope != nil {
			const attack = 0.2
			*envelope = *envelope + attack*(abs-*envelope)
			abs = *envelope
		}
		if abs < threshold {
			return 0
		}
		return x
	case ClipFxCompressor:
		threshold := param
		if threshold <= 0 {
			threshold = 1
		}
		abs := math.Abs(x)
		if abs <= threshold {
			return x
		}
		const ratio = 4.0
		over := abs - threshold
		compressed := threshold + over/ratio
		if x < 0 {
			compressed = -compressed
		}
		return compressed
	default:
		return x
	}
}
