package metering

import "math"

// kWeightingFilter approximates ITU-R BS.1770-4's K-weighting pre-filter
// as a two-stage biquad cascade (a high-shelf stage followed by a
// high-pass stage), applied independently per channel.
type kWeightingFilter struct {
	shelfL, shelfR biquad
	hpL, hpR       biquad
}

func newKWeightingFilter(sampleRate float64) *kWeightingFilter {
	shelf := makeHighShelf(sampleRate, 1681.97, 3.99984385397)
	hp := makeHighPass(sampleRate, 38.13547087)
	return &kWeightingFilter{
		shelfL: shelf, shelfR: shelf,
		hpL: hp, hpR: hp,
	}
}

func (k *kWeightingFilter) processL(samples []float64) []float64 {
	return processChain(samples, &k.shelfL, &k.hpL)
}

func (k *kWeightingFilter) processR(samples []float64) []float64 {
	return processChain(samples, &k.shelfR, &k.hpR)
}

func processChain(samples []float64, first, second *biquad) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = second.step(first.step(s))
	}
	return out
}

// biquad is a direct-form-II transposed biquad filter.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	z1, z2             float64
}

func (b *biquad) step(x float64) float64 {
	y := b.b0*x + b.z1
	b.z1 = b.b1*x - b.a1*y + b.z2
	b.z2 = b.b2*x - b.a2*y
	return y
}

func makeHighShelf(sampleRate, freq, gainDB float64) biquad {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	s := 1.0
	alpha := sinW0 / 2 * math.Sqrt((a+1/a)*(1/s-1)+2)

	b0 := a * ((a + 1) + (a-1)*cosW0 + 2*math.Sqrt(a)*alpha)
	b1 := -2 * a * ((a - 1) + (a+1)*cosW0)
	b2 := a * ((a + 1) + (a-1)*cosW0 - 2*math.Sqrt(a)*alpha)
	a0 := (a + 1) - (a-1)*cosW0 + 2*math.Sqrt(a)*alpha
	a1 := 2 * ((a - 1) - (a+1)*cosW0)
	a2 := (a + 1) - (a-1)*cosW0 - 2*math.Sqrt(a)*alpha

	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

func makeHighPass(sampleRate, freq float64) biquad {
	w0 := 2 * math.Pi * freq / sampleRate
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	q := 0.5
	alpha := sinW0 / (2 * q)

	b0 := (1 + cosW0) / 2
	b1 := -(1 + cosW0)
	b2 := (1 + cosW0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

// momentaryWindowMS and shortTermWindowMS are BS.1770-4's 400ms momentary
// and 3s short-term windows, measured over whole callback blocks with no
// overlapping gating blocks.
const (
	momentaryWindowMS = 400.0
	shortTermWindowMS = 3000.0
	absoluteGateLUFS  = -70.0
	relativeGateDB    = -10.0
)

// lufsAccumulator maintains a rolling buffer of per-block mean-square
// energy to compute momentary/short-term/integrated loudness without
// reprocessing all history every block.
type lufsAccumulator struct {
	blockEnergies []float64 // mean-square energy per block, most recent last
	blockMS       []float64 // duration in ms each entry represents
	integratedSum float64
	integratedN   int
}

func newLUFSAccumulator() *lufsAccumulator {
	return &lufsAccumulator{}
}

func meanSquare(l, r []float64) float64 {
	sum := 0.0
	n := len(l)
	for i := 0; i < n; i++ {
		sum += l[i]*l[i] + r[i]*r[i]
	}
	if n == 0 {
		return 0
	}
	return sum / float64(2*n)
}

func energyToLUFS(energy float64) float64 {
	if energy <= 1e-12 {
		return -math.Inf(1)
	}
	return -0.691 + 10*math.Log10(energy)
}

// add appends one block's weighted signal and returns updated
// momentary/short-term/integrated loudness in LUFS.
func (a *lufsAccumulator) add(wl, wr []float64) (momentary, shortTerm, integrated float64) {
	energy := meanSquare(wl, wr)
	durationMS := 0.0
	if len(wl) > 0 {
		durationMS = 1000.0 * float64(len(wl)) / 48000.0
	}

	a.blockEnergies = append(a.blockEnergies, energy)
	a.blockMS = append(a.blockMS, durationMS)

	a.trimTo(shortTermWindowMS)

	momentary = energyToLUFS(windowedMean(a.blockEnergies, a.blockMS, momentaryWindowMS))
	shortTerm = energyToLUFS(windowedMean(a.blockEnergies, a.blockMS, shortTermWindowMS))

	loudness := energyToLUFS(energy)
	if loudness > absoluteGateLUFS {
		a.integratedSum += energy
		a.integratedN++
	}
	if a.integratedN > 0 {
		integrated = energyToLUFS(a.integratedSum / float64(a.integratedN))
	} else {
		integrated = -math.Inf(1)
	}
	return momentary, shortTerm, integrated
}

func windowedMean(energies, durations []float64, windowMS float64) float64 {
	sum, total := 0.0, 0.0
	for i := len(energies) - 1; i >= 0 && total < windowMS; i-- {
		sum += energies[i] * durations[i]
		total += durations[i]
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// trimTo drops the oldest history once it exceeds four times maxMS, so the
// accumulator's memory is bounded.
func (a *lufsAccumulator) trimTo(maxMS float64) {
	total := 0.0
	for _, d := range a.blockMS {
		total += d
	}
	for total > maxMS*4 && len(a.blockMS) > 1 {
		total -= a.blockMS[0]
		a.blockMS = a.blockMS[1:]
		a.blockEnergies = a.blockEnergies[1:]
	}
}
