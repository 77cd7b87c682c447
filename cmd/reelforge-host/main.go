// Command reelforge-host runs a PlaybackEngine against a live PortAudio
// duplex stream and serves the same JSON control plane as
// reelforge-server, for interactive use against real audio hardware.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/gordonklaus/portaudio"

	"github.com/reelforge/engine/internal/control"
	"github.com/reelforge/engine/internal/engine"
	"github.com/reelforge/engine/internal/rflog"
)

type CLI struct {
	Addr       string `help:"Control-plane bind address" default:":7878"`
	SampleRate int    `help:"Engine sample rate" default:"48000"`
	BlockSize  int    `help:"Engine block size in frames" default:"512"`
	DeviceID   int    `help:"PortAudio device index, -1 for default duplex device" default:"-1"`
	LowLatency bool   `help:"Use the device's low-latency parameters"`
}

func main() {
	cli := &CLI{}
	kong.Parse(cli,
		kong.Name("reelforge-host"),
		kong.Description("PlaybackEngine live-audio host"),
		kong.UsageOnError(),
	)

	log := rflog.With("host")

	if err := portaudio.Initialize(); err != nil {
		log.Error("portaudio init failed", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	eng := engine.New(float64(cli.SampleRate), cli.BlockSize)

	device, err := selectDevice(cli.DeviceID)
	if err != nil {
		log.Error("device selection failed", "error", err)
		os.Exit(1)
	}

	latency := device.DefaultHighInputLatency
	if cli.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	inL := make([]float64, cli.BlockSize)
	inR := make([]float64, cli.BlockSize)
	outL := make([]float64, cli.BlockSize)
	outR := make([]float64, cli.BlockSize)

	callback := func(in, out []float32) {
		runtime.LockOSThread()

		n := len(out) / 2
		for i := 0; i < n && 2*i+1 < len(in); i++ {
			inL[i] = float64(in[2*i])
			inR[i] = float64(in[2*i+1])
		}

		eng.ProcessWithInput(inL[:n], inR[:n], outL[:n], outR[:n])

		for i := 0; i < n; i++ {
			out[2*i] = float32(outL[i])
			out[2*i+1] = float32(outR[i])
		}
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 2,
			Device:   device,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 2,
			Device:   device,
			Latency:  latency,
		},
		FramesPerBuffer: cli.BlockSize,
		SampleRate:      float64(cli.SampleRate),
	}

	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		log.Error("open stream failed", "error", err)
		os.Exit(1)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		log.Error("start stream failed", "error", err)
		os.Exit(1)
	}
	defer stream.Stop()

	srv := control.New(eng)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		stream.Stop()
		os.Exit(0)
	}()

	log.Info("starting live host", "addr", cli.Addr, "device", device.Name)
	if err := srv.ListenAndServe(cli.Addr); err != nil {
		log.Error("control plane exited", "error", err)
		os.Exit(1)
	}
}

func selectDevice(id int) (*portaudio.DeviceInfo, error) {
	if id < 0 {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= len(devices) {
		return nil, fmt.Errorf("device index %d out of range (have %d devices)", id, len(devices))
	}
	return devices[id], nil
}
