package engine

import (
	"math"

	"github.com/reelforge/engine/internal/automation"
	"github.com/reelforge/engine/internal/controlroom"
	"github.com/reelforge/engine/internal/ids"
	"github.com/reelforge/engine/internal/insert"
	"github.com/reelforge/engine/internal/pcm"
	"github.com/reelforge/engine/internal/trackmgr"
)

// renderTracks implements spec.md 4.12's per-track loop: clip rendering
// into scratch, then the 12-step track post-processing pipeline, ending
// with summation into the bus graph. The pipeline taps the control room's
// solo bus (PFL/AFL) but does not feed its cue mixes.
func (e *Engine) renderTracks(blockStartSample int64, frames int, changes []automation.Change) {
	tracks, ok := e.Tracks.TryTracks()
	if !ok {
		return // skip this block's track rendering on contention
	}
	anySolo := e.Tracks.IsSoloActive()

	for _, t := range tracks {
		if t.Muted {
			continue
		}
		e.renderOneTrack(&t, blockStartSample, frames, anySolo, changes)
	}
}

func (e *Engine) renderOneTrack(t *trackmgr.Track, blockStartSample int64, frames int, anySolo bool, changes []automation.Change) {
	trackL := e.trackL[:frames]
	trackR := e.trackR[:frames]
	zero(trackL)
	zero(trackR)

	clips, ok := e.Tracks.TryTrackClips(t.ID)
	if ok {
		for i := range clips {
			e.renderClip(&clips[i], t.ID, blockStartSample, frames, trackL, trackR)
		}
	}

	pre, post := e.trackInsertChains(t.ID)

	// 1. Pre-fader track insert chain.
	pre.ProcessPreFader(trackL, trackR)

	// 2. Pre-fader solo-bus tap (PFL).
	if e.ControlRoom.Mode() == controlroom.ModePFL {
		e.ControlRoom.TapSolo(t.ID, trackL, trackR)
	}

	// 3. Pre-fader sends.
	e.applySends(t.ID, trackL, trackR, frames, true, changes)

	// 4. Volume + pan.
	e.applyVolumePan(t, trackL, trackR)

	// 5. VCA gain / force-mute.
	vcaGain, vcaMuted := e.VCA.TryTrackGain(t.ID)
	if vcaMuted {
		zero(trackL)
		zero(trackR)
	} else if vcaGain != 1.0 {
		for i := 0; i < frames; i++ {
			trackL[i] *= vcaGain
			trackR[i] *= vcaGain
		}
	}

	// 6. Post-fader track insert chain.
	post.ProcessPostFader(trackL, trackR)

	// 7. Delay compensation.
	e.DelayComp.Apply(t.ID, trackL, trackR)

	// 8. AFL tap.
	if e.ControlRoom.Mode() == controlroom.ModeAFL {
		e.ControlRoom.TapSolo(t.ID, trackL, trackR)
	}

	// 9. Post-fader sends.
	e.applySends(t.ID, trackL, trackR, frames, false, changes)

	// 10. Per-track meter.
	e.TrackMeters.For(t.ID).UpdateBlock(trackL, trackR)

	// 11. SIP: skip bus routing entirely if soloing is active elsewhere.
	if e.ControlRoom.Mode() == controlroom.ModeSIP && anySolo && !t.Soloed {
		return
	}

	// 12. Route to output bus.
	e.Buses.AddTrack(t.OutputBus, trackL, trackR)
}

func (e *Engine) applyVolumePan(t *trackmgr.Track, left, right []float64) {
	if e.Smoother.IsTrackSmoothing(t.ID) {
		for i := range left {
			vol, pan := e.Smoother.AdvanceTrack(t.ID)
			l, r := panSample(t.Stereo, left[i], right[i], pan, t.PanRight, vol)
			left[i], right[i] = l, r
		}
		return
	}
	l, r := t.Volume, t.Pan
	applyConstantVolumePan(t.Stereo, left, right, r, t.PanRight, l)
}

// panSample applies per-sample dual-pan (stereo) or constant-power pan
// (mono), scaled by volume, matching spec.md 4.12 step 4.
func panSample(stereo bool, l, r, pan, panRight, volume float64) (float64, float64) {
	if !stereo {
		theta := (pan + 1) * math.Pi / 4
		mono := l
		return mono * math.Cos(theta) * volume, mono * math.Sin(theta) * volume
	}
	thetaL := (pan + 1) * math.Pi / 4
	thetaR := (panRight + 1) * math.Pi / 4
	panLL := math.Cos(thetaL)
	panLR := math.Sin(thetaL)
	panRL := math.Cos(thetaR)
	panRR := math.Sin(thetaR)
	outL := (l*panLL + r*panRL) * volume
	outR := (l*panLR + r*panRR) * volume
	return outL, outR
}

func applyConstantVolumePan(stereo bool, left, right []float64, pan, panRight, volume float64) {
	for i := range left {
		l, r := panSample(stereo, left[i], right[i], pan, panRight, volume)
		left[i], right[i] = l, r
	}
}

// applySends adds left/right scaled by each matching send's level into its
// destination bus, at either the pre-fader (step 3) or post-fader (step 9)
// tap per spec.md 4.12. Send levels are modeled as automation lanes
// (ParamSendLevel) computed once per block by the caller and threaded
// through changes, rather than as a separate sends table, since spec.md
// doesn't mandate persistent per-track send objects beyond level +
// destination + pre/post flag. sendL/sendR are engine-owned scratch reused
// across every send and every track in a block; busgraph.mixAdd copies
// their contents into the destination bus immediately, so reuse is safe.
func (e *Engine) applySends(track ids.TrackID, left, right []float64, frames int, preFader bool, changes []automation.Change) {
	sendL := e.sendL[:frames]
	sendR := e.sendR[:frames]
	for _, c := range changes {
		if c.Track != track || c.Kind != automation.ParamSendLevel || c.Value <= 0 || c.PreFader != preFader {
			continue
		}
		for i := 0; i < frames; i++ {
			sendL[i] = left[i] * c.Value
			sendR[i] = right[i] * c.Value
		}
		e.Buses.AddTrack(c.Bus, sendL, sendR)
	}
}

// renderClip mixes one clip's contribution for this block into trackL/trackR,
// implementing spec.md 4.12's clip-to-track rendering steps 1-8.
func (e *Engine) renderClip(c *trackmgr.Clip, track ids.TrackID, blockStartSample int64, frames int, trackL, trackR []float64) {
	if c.Muted {
		return
	}

	sampleRate := e.sampleRate
	blockStartTime := float64(blockStartSample) / sampleRate
	blockEndTime := blockStartTime + float64(frames)/sampleRate
	if c.EndTime() <= blockStartTime || c.StartTime >= blockEndTime {
		return // step 1: clip doesn't overlap this block
	}

	audio, ok := e.Cache.TryGet(c.SourcePath)
	if !ok {
		return // step 2: skip silently if not cached, or on lock contention
	}

	clipStartSample := int64(c.StartTime * sampleRate)
	clipDurationSamples := int64(c.Duration * sampleRate)
	fadeInSamples := int64(c.FadeIn * sampleRate)
	fadeOutSamples := int64(c.FadeOut * sampleRate)

	crossfades, _ := e.Tracks.TryTrackCrossfades(track)

	for i := 0; i < frames; i++ {
		absSample := blockStartSample + int64(i)
		clipRelative := absSample - clipStartSample
		if clipRelative < 0 || clipRelative >= clipDurationSamples {
			continue // step 3
		}

		srcSR := float64(audio.SampleRate)
		srcOffsetSamples := c.SourceOffset * srcSR
		srcPos := srcOffsetSamples + float64(clipRelative)*(srcSR/sampleRate)
		l, r := sampleSourceNearest(audio, srcPos)

		if c.FxChain.HasActive() {
			l = applyClipFx(&c.FxChain, l)
			r = applyClipFx(&c.FxChain, r)
		}

		fade := fadeEnvelope(clipRelative, clipDurationSamples, fadeInSamples, fadeOutSamples)

		if xfGain, silence, matched := crossfadeGain(crossfades, c.ID, absSample, sampleRate); matched {
			if silence {
				continue
			}
			fade = xfGain
		}

		gain := c.Gain * fade
		trackL[i] += l * gain
		trackR[i] += r * gain
	}
}

// sampleSourceNearest reads a nearest-neighbor stereo frame at fractional
// source position srcPos (in source sample units), duplicating mono to
// both channels. Out-of-range positions yield silence.
func sampleSourceNearest(audio *pcm.ImportedAudio, srcPos float64) (float64, float64) {
	if audio == nil || len(audio.Samples) == 0 {
		return 0, 0
	}
	frameIdx := int(srcPos + 0.5)
	channels := audio.Channels
	if channels < 1 {
		channels = 1
	}
	totalFrames := len(audio.Samples) / channels
	if frameIdx < 0 || frameIdx >= totalFrames {
		return 0, 0
	}
	if channels >= 2 {
		l := float64(audio.Samples[frameIdx*channels])
		r := float64(audio.Samples[frameIdx*channels+1])
		return l, r
	}
	mono := float64(audio.Samples[frameIdx])
	return mono, mono
}

func applyClipFx(chain *trackmgr.ClipFxChain, x float64) float64 {
	out := x
	for i := range chain.Slots {
		s := &chain.Slots[i]
		if !s.Active {
			continue
		}
		out = insert.ApplyClipFxSample(insert.ClipFxKind(s.Kind), out, s.Param, nil)
	}
	return out
}

// fadeEnvelope computes the quadratic fade-in/fade-out gain at
// clipRelative within a clip of clipDurationSamples, per spec.md 4.12
// step 6.
func fadeEnvelope(clipRelative, clipDurationSamples, fadeInSamples, fadeOutSamples int64) float64 {
	gain := 1.0
	if fadeInSamples > 0 && clipRelative < fadeInSamples {
		t := float64(clipRelative) / float64(fadeInSamples)
		gain *= t * t
	}
	fadeOutStart := clipDurationSamples - fadeOutSamples
	if fadeOutSamples > 0 && clipRelative >= fadeOutStart {
		t := float64(clipDurationSamples-clipRelative) / float64(fadeOutSamples)
		if t < 0 {
			t = 0
		}
		gain *= t * t
	}
	return gain
}

// crossfadeGain checks whether clipID participates in a crossfade active
// at absSample, returning the override gain for that clip's side and
// whether the clip should be fully silenced (the wrong side of the
// region), per spec.md 4.12's crossfade evaluation.
func crossfadeGain(crossfades []trackmgr.Crossfade, clipID ids.ClipID, absSample int64, sampleRate float64) (gain float64, silence bool, matched bool) {
	for i := range crossfades {
		x := &crossfades[i]
		if x.ClipA != clipID && x.ClipB != clipID {
			continue
		}

		startSample := int64(x.StartTime * sampleRate)
		endSample := int64(x.EndTime() * sampleRate)
		if absSample < startSample || absSample >= endSample {
			// Outside the region: the outgoing clip (A) is silent after it
			// and the incoming clip (B) is silent before it.
			if (clipID == x.ClipA && absSample >= endSample) || (clipID == x.ClipB && absSample < startSample) {
				return 0, true, true
			}
			continue
		}

		span := endSample - startSample
		t := 0.0
		if span > 0 {
			t = float64(absSample-startSample) / float64(span)
		}
		if t < 0 {
			t = 0
		}
		if t > 1 {
			t = 1
		}

		fadeOutGain, fadeInGain := x.Shape.Gains(t)
		if clipID == x.ClipA {
			return fadeOutGain, false, true
		}
		return fadeInGain, false, true
	}
	return 1, false, false
}
