// Package insert implements the fixed-capacity InsertChain described in
// spec.md section 4.4: eight pre/post-fader DSP slots with bypass,
// wet/dry mix, and reported latency, behind an opaque Processor contract.
package insert

// Slots is the fixed capacity of an InsertChain.
const Slots = 8

// Position selects whether a slot runs before or after the fader stage.
type Position int

const (
	PreFader Position = iota
	PostFader
)

// Processor is the uniform contract every insert (whether a built-in
// effect or a third-party plugin adapter) implements. Grounded on
// other_examples/justyntemme-vst3go's componentImpl parameter/latency
// accessor shape, collapsed from VST3's ID-addressed params to the
// spec's index-addressed slot params.
type Processor interface {
	// Process mutates left/right in place; both slices share the same length.
	Process(left, right []float64)
	Reset()
	SetSampleRate(sr float64)
	LatencySamples() int
	GetParam(index int) float64
	SetParam(index int, value float64)
}

type slot struct {
	processor Processor
	position  Position
	bypass    bool
	mix       float64 // wet/dry, [0,1]
	loaded    bool
}

// Chain is an ordered 8-slot DSP stack attached to a track, bus, or master.
type Chain struct {
	slots        [Slots]slot
	sampleRate   float64
	dryL, dryR   []float64 // scratch reused across calls, no per-block allocation
}

// New constructs an empty chain with wet/dry mix defaulted to fully wet (1.0).
func New(sampleRate float64) *Chain {
	c := &Chain{sampleRate: sampleRate}
	for i := range c.slots {
		c.slots[i].mix = 1.0
		c.slots[i].position = PostFader
	}
	return c
}

// Load installs processor in slot_idx. Fails iff the index is out of range.
func (c *Chain) Load(slotIdx int, processor Processor) bool {
	if slotIdx < 0 || slotIdx >= Slots {
		return false
	}
	processor.SetSampleRate(c.sampleRate)
	c.slots[slotIdx].processor = processor
	c.slots[slotIdx].loaded = true
	return true
}

// Unload removes and returns the processor in slot_idx, or nil if empty/out of range.
func (c *Chain) Unload(slotIdx int) Processor {
	if slotIdx < 0 || slotIdx >= Slots || !c.slots[slotIdx].loaded {
		return nil
	}
	p := c.slots[slotIdx].processor
	c.slots[slotIdx].processor = nil
	c.slots[slotIdx].loaded = false
	return p
}

func (c *Chain) SetBypass(slotIdx int, bypass bool) bool {
	if slotIdx < 0 || slotIdx >= Slots {
		return false
	}
	c.slots[slotIdx].bypass = bypass
	return true
}

func (c *Chain) SetMix(slotIdx int, mix float64) bool {
	if slotIdx < 0 || slotIdx >= Slots {
		return false
	}
	if mix < 0 {
		mix = 0
	}
	if mix > 1 {
		mix = 1
	}
	c.slots[slotIdx].mix = mix
	return true
}

func (c *Chain) SetPosition(slotIdx int, pos Position) bool {
	if slotIdx < 0 || slotIdx >= Slots {
		return false
	}
	c.slots[slotIdx].position = pos
	return true
}

func (c *Chain) SetSlotParam(slotIdx, paramIdx int, value float64) bool {
	if slotIdx < 0 || slotIdx >= Slots || !c.slots[slotIdx].loaded {
		return false
	}
	c.slots[slotIdx].processor.SetParam(paramIdx, value)
	return true
}

func (c *Chain) GetSlotParam(slotIdx, paramIdx int) (float64, bool) {
	if slotIdx < 0 || slotIdx >= Slots || !c.slots[slotIdx].loaded {
		return 0, false
	}
	return c.slots[slotIdx].processor.GetParam(paramIdx), true
}

func (c *Chain) HasSlot(slotIdx int) bool {
	return slotIdx >= 0 && slotIdx < Slots && c.slots[slotIdx].loaded
}

// TotalLatency sums the reported latency of every loaded slot.
func (c *Chain) TotalLatency() int {
	total := 0
	for i := range c.slots {
		if c.slots[i].loaded {
			total += c.slots[i].processor.LatencySamples()
		}
	}
	return total
}

// ProcessPreFader runs every loaded, non-bypassed PreFader slot in order.
func (c *Chain) ProcessPreFader(left, right []float64) {
	c.processPosition(left, right, PreFader)
}

// ProcessPostFader runs every loaded, non-bypassed PostFader slot in order.
func (c *Chain) ProcessPostFader(left, right []float64) {
	c.processPosition(left, right, PostFader)
}

func (c *Chain) processPosition(left, right []float64, pos Position) {
	n := len(left)
	if cap(c.dryL) < n {
		c.dryL = make([]float64, n)
		c.dryR = make([]float64, n)
	}
	dryL := c.dryL[:n]
	dryR := c.dryR[:n]

	for i := range c.slots {
		s := &c.slots[i]
		if !s.loaded || s.bypass || s.position != pos {
			continue
		}
		copy(dryL, left)
		copy(dryR, right)
		s.processor.Process(left, right)
		wet := s.mix
		dry := 1 - wet
		for j := 0; j < n; j++ {
			left[j] = wet*left[j] + dry*dryL[j]
			right[j] = wet*right[j] + dry*dryR[j]
		}
	}
}
