package insert

// GainProcessor is a minimal concrete Processor implementation — a single
// linear-gain knob at param index 0 — used by tests and as a reference
// implementation of the Processor contract. Real DSP (EQ curves,
// compressor modes, reverb tails) is explicitly opaque to this core per
// spec.md section 1; this is the one built-in exception, analogous to how
// vst3go's example plugins (examples/tapemachine, examples/drumbus) ship a
// handful of minimal reference processors alongside the host framework.
type GainProcessor struct {
	gain       float64
	sampleRate float64
}

// NewGainProcessor constructs a GainProcessor at unity gain.
func NewGainProcessor() *GainProcessor {
	return &GainProcessor{gain: 1.0}
}

func (g *GainProcessor) Process(left, right []float64) {
	for i := range left {
		left[i] *= g.gain
		right[i] *= g.gain
	}
}

func (g *GainProcessor) Reset()                     {}
func (g *GainProcessor) SetSampleRate(sr float64)    { g.sampleRate = sr }
func (g *GainProcessor) LatencySamples() int         { return 0 }
func (g *GainProcessor) GetParam(index int) float64 {
	if index == 0 {
		return g.gain
	}
	return 0
}
func (g *GainProcessor) SetParam(index int, value float64) {
	if index == 0 {
		g.gain = value
	}
}

// LimiterProcessor is a second minimal reference processor: a brickwall
// clamp at param index 0 (ceiling, linear) reporting a small fixed
// lookahead latency, exercising InsertChain.TotalLatency / delay
// compensation without needing a third-party DSP library.
type LimiterProcessor struct {
	ceiling float64
	latency int
}

// NewLimiterProcessor constructs a LimiterProcessor with a 1.0 ceiling and
// the given reported lookahead latency in samples.
func NewLimiterProcessor(latencySamples int) *LimiterProcessor {
	return &LimiterProcessor{ceiling: 1.0, latency: latencySamples}
}

func (l *LimiterProcessor) Process(left, right []float64) {
	for i := range left {
		left[i] = clamp(left[i], -l.ceiling, l.ceiling)
		right[i] = clamp(right[i], -l.ceiling, l.ceiling)
	}
}

func (l *LimiterProcessor) Reset()                  {}
func (l *LimiterProcessor) SetSampleRate(float64)    {}
func (l *LimiterProcessor) LatencySamples() int      { return l.latency }
func (l *LimiterProcessor) GetParam(index int) float64 {
	if index == 0 {
		return l.ceiling
	}
	return 0
}
func (l *LimiterProcessor) SetParam(index int, value float64) {
	if index == 0 {
		l.ceiling = value
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
