// Package bounce implements offline render / stem export built on
// PlaybackEngine.ProcessOffline: render an arbitrary sample range to PCM
// without touching the live transport, with filenames templated via
// strftime so scheduled/batch bounces sort naturally on disk.
package bounce

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/reelforge/engine/internal/ids"
)

// Offliner is the subset of *engine.Engine bounce needs; kept as an
// interface so this package never imports internal/engine (which would
// create an import cycle once engine wires bounce as a control-plane
// endpoint).
type Offliner interface {
	ProcessOffline(startSample int64, outL, outR []float64)
}

// Request describes one bounce/export job.
type Request struct {
	Start      time.Duration
	End        time.Duration
	SampleRate int
	BlockSize  int
	// FilenamePattern is a strftime pattern (e.g. "mix-%Y%m%d-%H%M%S.wav");
	// At is substituted for the current time when rendering the pattern.
	FilenamePattern string
	At              time.Time
	OutputDir       string
	Stems           []StemSpec
}

// StemSpec names a single bus for a per-bus stem. Render does not read
// Request.Stems: it always writes whatever the Offliner renders, so bus
// scoping is left to the caller's Offliner implementation (e.g. by muting
// every other bus before calling ProcessOffline and restoring state after).
type StemSpec struct {
	Name   string
	BusIdx ids.BusID
}

// Result is what a completed bounce produced.
type Result struct {
	Path    string
	Frames  int64
	Elapsed time.Duration
}

// Render runs req.Start..req.End through offliner in fixed-size blocks and
// writes a 16-bit PCM WAV file to a strftime-templated path under
// req.OutputDir.
func Render(ctx context.Context, offliner Offliner, req Request) (Result, error) {
	startedAt := time.Now()

	name, err := FormatFilename(req.FilenamePattern, req.At)
	if err != nil {
		return Result{}, fmt.Errorf("bounce: format filename: %w", err)
	}
	outPath := filepath.Join(req.OutputDir, name)

	sr := float64(req.SampleRate)
	startSample := int64(req.Start.Seconds() * sr)
	endSample := int64(req.End.Seconds() * sr)
	totalFrames := endSample - startSample
	if totalFrames <= 0 {
		return Result{}, fmt.Errorf("bounce: non-positive duration")
	}

	var buf bytes.Buffer
	outL := make([]float64, req.BlockSize)
	outR := make([]float64, req.BlockSize)

	for pos := startSample; pos < endSample; pos += int64(req.BlockSize) {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		n := req.BlockSize
		if remaining := endSample - pos; remaining < int64(n) {
			n = int(remaining)
		}
		offliner.ProcessOffline(pos, outL[:n], outR[:n])
		writePCM16Frames(&buf, outL[:n], outR[:n])
	}

	if err := writeWAVFile(outPath, buf.Bytes(), req.SampleRate, 2); err != nil {
		return Result{}, err
	}

	return Result{Path: outPath, Frames: totalFrames, Elapsed: time.Since(startedAt)}, nil
}

// FormatFilename expands pattern (a strftime pattern) against at.
func FormatFilename(pattern string, at time.Time) (string, error) {
	f, err := strftime.New(pattern)
	if err != nil {
		return "", err
	}
	return f.FormatString(at), nil
}

func writePCM16Frames(buf *bytes.Buffer, left, right []float64) {
	for i := range left {
		writeInt16LE(buf, floatToInt16(left[i]))
		writeInt16LE(buf, floatToInt16(right[i]))
	}
}

func floatToInt16(v float64) int16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}

func writeInt16LE(buf *bytes.Buffer, v int16) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
}

func writeWAVFile(path string, pcm []byte, sampleRate, channels int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2
	dataLen := len(pcm)

	header := new(bytes.Buffer)
	header.WriteString("RIFF")
	writeUint32LE(header, uint32(36+dataLen))
	header.WriteString("WAVE")
	header.WriteString("fmt ")
	writeUint32LE(header, 16)
	writeUint16LE(header, 1) // PCM
	writeUint16LE(header, uint16(channels))
	writeUint32LE(header, uint32(sampleRate))
	writeUint32LE(header, uint32(byteRate))
	writeUint16LE(header, uint16(blockAlign))
	writeUint16LE(header, 16) // bits per sample
	header.WriteString("data")
	writeUint32LE(header, uint32(dataLen))

	if _, err := f.Write(header.Bytes()); err != nil {
		return err
	}
	_, err = f.Write(pcm)
	return err
}

func writeUint32LE(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 24))
}

func writeUint16LE(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
}
