//go:build cgo

// Package capture's GStreamer-backed Source pulls raw BGRA frames from a
// pipewiresrc element bound to the negotiated media-capture socket, using
// go-gst's appsink bindings for in-order frame delivery. Each sample is
// copied out of the mapped GStreamer buffer into a fresh slice.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/rdperrors"
)

var gstInitOnce sync.Once

// initGStreamer initializes the GStreamer library. Safe to call more than
// once.
func initGStreamer() {
	gstInitOnce.Do(func() {
		gst.Init(nil)
	})
}

// GstSource is the cgo-backed Source implementation: one GStreamer
// pipeline per Start, with BGRA output at a fixed resolution. It never
// emits a ReconfigureEvent: a resolution or format change on the remote
// endpoint is not detected, and Stop tears the source down for good.
//
// Resolution is negotiated with the remote media endpoint's session
// setup (the portal/D-Bus leg SPEC_FULL §1 leaves out of scope) before
// Start is called; GstSource takes that negotiated size and requests it
// explicitly in the pipeline's caps filter rather than introspecting
// caps back out of delivered samples.
type GstSource struct {
	log *slog.Logger

	width, height int

	mu       sync.Mutex
	pipeline *gst.Pipeline
	appsink  *app.Sink
	cache    *bufferCache

	eventCh  chan Event
	running  atomic.Bool
	stopOnce sync.Once
	seq      uint64
}

// NewGstSource builds a GstSource for a stream of the given negotiated
// resolution. log may be nil, in which case slog.Default() is used.
func NewGstSource(log *slog.Logger, width, height int) *GstSource {
	if log == nil {
		log = slog.Default()
	}
	return &GstSource{log: log, width: width, height: height, cache: newBufferCache()}
}

// Start builds and plays a pipewiresrc-based pipeline bound to
// mediaSocketFD and streamID, requesting BGRA output at the negotiated
// resolution.
func (g *GstSource) Start(ctx context.Context, mediaSocketFD int, streamID uint32) (<-chan Event, error) {
	initGStreamer()

	pipelineStr := fmt.Sprintf(
		"pipewiresrc fd=%d path=%d ! videoconvert ! video/x-raw,format=BGRA,width=%d,height=%d ! appsink name=capturesink",
		mediaSocketFD, streamID, g.width, g.height,
	)
	pipeline, err := gst.NewPipelineFromString(pipelineStr)
	if err != nil {
		return nil, rdperrors.Configurationf("capture.gst", "parse pipeline: %v", err)
	}

	elem, err := pipeline.GetElementByName("capturesink")
	if err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, rdperrors.Configurationf("capture.gst", "get capturesink element: %v", err)
	}
	sink := app.SinkFromElement(elem)
	if sink == nil {
		pipeline.SetState(gst.StateNull)
		return nil, rdperrors.Configurationf("capture.gst", "capturesink element is not an appsink")
	}

	g.mu.Lock()
	g.pipeline = pipeline
	g.appsink = sink
	g.eventCh = make(chan Event, 4)
	g.mu.Unlock()

	sink.SetProperty("emit-signals", true)
	sink.SetProperty("max-buffers", uint(2))
	sink.SetProperty("drop", true)
	sink.SetProperty("sync", false)
	sink.SetCallbacks(&app.SinkCallbacks{NewSampleFunc: g.onNewSample})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, rdperrors.Fatal("capture.gst", fmt.Errorf("set pipeline to playing: %w", err))
	}
	g.running.Store(true)

	go g.watchBus(ctx)

	return g.eventCh, nil
}

func (g *GstSource) onNewSample(sink *app.Sink) gst.FlowReturn {
	if !g.running.Load() {
		return gst.FlowEOS
	}

	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return gst.FlowOK
	}
	data := make([]byte, len(mapInfo.Bytes()))
	copy(data, mapInfo.Bytes())
	buffer.Unmap()

	stride := g.width * 4
	if len(data) < stride*g.height {
		g.log.Warn("capture: sample smaller than negotiated frame size, dropping", "got", len(data), "want", stride*g.height)
		return gst.FlowOK
	}

	g.seq++
	f := frame.NewFrame(g.width, g.height, stride, frame.FormatBGRA, data, g.seq, time.Now(), nil)

	select {
	case g.eventCh <- Event{Frame: f}:
	default:
		g.log.Warn("capture: dropping frame, consumer is behind", "seq", g.seq)
	}
	return gst.FlowOK
}

func (g *GstSource) watchBus(ctx context.Context) {
	g.mu.Lock()
	pipeline := g.pipeline
	g.mu.Unlock()
	if pipeline == nil {
		return
	}
	bus := pipeline.GetPipelineBus()
	if bus == nil {
		return
	}

	for g.running.Load() {
		select {
		case <-ctx.Done():
			g.Stop()
			return
		default:
		}

		msg := bus.TimedPop(gst.ClockTime(100 * time.Millisecond))
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			g.log.Info("capture: pipeline reached end of stream")
			g.Stop()
			return
		case gst.MessageError:
			if gerr := msg.ParseError(); gerr != nil {
				g.log.Error("capture: pipeline error", "error", gerr.Error())
			}
			g.Stop()
			return
		case gst.MessageWarning:
			if gwarn := msg.ParseWarning(); gwarn != nil {
				g.log.Warn("capture: pipeline warning", "warning", gwarn.Error())
			}
		}
	}
}

// Stop tears down the pipeline and releases cached buffer mappings. Safe
// to call more than once.
func (g *GstSource) Stop() {
	g.stopOnce.Do(func() {
		g.running.Store(false)
		g.mu.Lock()
		pipeline := g.pipeline
		g.mu.Unlock()
		if pipeline != nil {
			pipeline.SetState(gst.StateNull)
		}
		g.cache.clear()
		if g.eventCh != nil {
			close(g.eventCh)
		}
	})
}
