// Package orchestrator owns every pipeline component for one session and
// runs the per-tick capture → damage → convert → encode → multiplex
// loop, grounded in the teacher's captureLoop/captureAndSendFrame shape
// (session_capture.go) and its atomic.Bool/WaitGroup/context.Context
// lifecycle idiom (pkg/desktop/desktop.go).
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/capture"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/colorconv"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/config"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/damage"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/framer"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/h264"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/mux"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/rdperrors"
)

const escalationThreshold = 16

// Orchestrator owns the CaptureSource, DamageDetector, ColorConverter,
// the codec-mode-selected encoder(s), the GraphicsFramer, and the
// Multiplexer for one session, and runs the per-tick loop between them.
// No pipeline component holds a reference back to the Orchestrator;
// outside events reach it through the channels it owns and through its
// ForceKeyframe/SetColorSignaling methods (wired by cmd/rdp-bridge to the
// transport's OnConnect callback and the health server).
type Orchestrator struct {
	cfg config.Config
	log *slog.Logger

	source    capture.Source
	detector  *damage.Detector
	converter *colorconv.Converter
	framer    *framer.GraphicsFramer
	muxer     *mux.Multiplexer

	mono     *h264.Avc420Encoder // set iff cfg.CodecMode == config.CodecAVC420
	dual     *h264.Avc444Encoder // set iff cfg.CodecMode == config.CodecAVC444
	omission *h264.OmissionController

	escalator *rdperrors.Escalator
	metrics   *Metrics

	frameInterval time.Duration
	lastSent      time.Time
	forceKeyframe atomic.Bool

	// colorMu guards colorMatrix/colorRange, the runtime-mutable
	// counterparts of cfg.ColorMatrix/cfg.ColorRange. cfg itself is never
	// mutated after New; a mid-session color-signaling change (e.g. the
	// desktop's output color space changing) goes through
	// SetColorSignaling instead.
	colorMu     sync.Mutex
	colorMatrix frame.ColorMatrix
	colorRange  frame.ColorRange
}

// New builds an Orchestrator. Exactly one of mono/dual must be non-nil,
// matching cfg.CodecMode; omission is required (and used) only when dual
// is set.
func New(cfg config.Config, log *slog.Logger, source capture.Source, muxer *mux.Multiplexer, mono *h264.Avc420Encoder, dual *h264.Avc444Encoder, omission *h264.OmissionController) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	o := &Orchestrator{
		cfg:           cfg,
		log:           log,
		source:        source,
		detector:      damage.NewDetector(cfg.DamageTileSize, 32, cfg.DamageDiffThreshold),
		converter:     colorconv.NewConverter(),
		framer:        framer.New(),
		muxer:         muxer,
		mono:          mono,
		dual:          dual,
		omission:      omission,
		escalator:     rdperrors.NewEscalator(escalationThreshold),
		metrics:       NewMetrics(),
		frameInterval: time.Second / time.Duration(cfg.TargetFPS),
		colorMatrix:   cfg.ColorMatrix,
		colorRange:    cfg.ColorRange,
	}
	o.forceKeyframe.Store(true)
	return o
}

// Metrics returns a live snapshot of the session's tick-loop metrics.
func (o *Orchestrator) Metrics() Snapshot {
	return o.metrics.Snapshot()
}

// ForceKeyframe requests that the next tick emit a keyframe (and, in
// 4:4:4 mode, an Auxiliary keyframe), regardless of damage or the
// omission refresh schedule. Safe to call from any goroutine; used for
// client-reconnect and color-matrix-switch events.
func (o *Orchestrator) ForceKeyframe() {
	o.forceKeyframe.Store(true)
}

// colorSignaling returns the currently active matrix/range, reflecting
// any SetColorSignaling call since New.
func (o *Orchestrator) colorSignaling() (frame.ColorMatrix, frame.ColorRange) {
	o.colorMu.Lock()
	defer o.colorMu.Unlock()
	return o.colorMatrix, o.colorRange
}

// SetColorSignaling changes the color matrix/range used for subsequent
// ticks' conversion and forces the next tick to a keyframe, since an
// existing client DPB was built against the old signaling and cannot be
// predicted from across the switch. Safe to call from any goroutine
// (e.g. an out-of-band desktop color-space-change notification).
func (o *Orchestrator) SetColorSignaling(matrix frame.ColorMatrix, rng frame.ColorRange) {
	o.colorMu.Lock()
	o.colorMatrix = matrix
	o.colorRange = rng
	o.colorMu.Unlock()
	o.ForceKeyframe()
}

// Run drives the tick loop until ctx is canceled or the capture stream
// ends. It returns the terminating error: nil on a clean ctx
// cancellation, a FatalError wrapping rdperrors on an unrecoverable
// condition.
func (o *Orchestrator) Run(ctx context.Context, mediaSocketFD int, streamID uint32) error {
	events, err := o.source.Start(ctx, mediaSocketFD, streamID)
	if err != nil {
		return err
	}
	defer o.source.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return rdperrors.Fatal("orchestrator", errors.New("capture stream closed"))
			}
			if ev.Reconfigure != nil {
				o.handleReconfigure(*ev.Reconfigure)
				continue
			}
			if err := o.tick(ev.Frame); err != nil {
				if rdperrors.Is(err, rdperrors.KindFatal) {
					return err
				}
				if o.escalator.Observe(err) {
					return rdperrors.Fatal("orchestrator", fmt.Errorf("escalated after %d consecutive transient errors: %w", o.escalator.Count(), err))
				}
				o.metrics.RecordDrop()
				o.log.Warn("orchestrator: dropping tick", "error", err)
			} else {
				o.escalator.Observe(nil)
			}
		}
	}
}

// handleReconfigure resets every piece of per-session state a resolution
// or format change invalidates, so the next frame is treated as the
// first frame of a new session.
func (o *Orchestrator) handleReconfigure(e capture.ReconfigureEvent) {
	o.log.Info("orchestrator: reconfigure", "width", e.Width, "height", e.Height, "format", e.Format)
	o.detector.Reset()
	if o.omission != nil {
		o.omission.Reset()
	}
	o.forceKeyframe.Store(true)
	o.lastSent = time.Time{}
}

// tick runs one capture event through damage detection, color
// conversion, encoding, and multiplexer submission. f is always
// released exactly once before tick returns.
func (o *Orchestrator) tick(f *frame.Frame) error {
	defer f.Release()
	o.metrics.RecordCapture()

	now := time.Now()
	forceKey := o.forceKeyframe.Load()
	if !forceKey && now.Sub(o.lastSent) < o.frameInterval {
		o.metrics.RecordSkip()
		return nil
	}

	t0 := time.Now()
	dmg := o.detector.Detect(f)
	o.metrics.RecordDamage(time.Since(t0))
	if dmg.Empty() && !forceKey {
		o.metrics.RecordSkip()
		return nil
	}

	o.forceKeyframe.Store(false)
	o.lastSent = now

	var (
		item mux.Item
		err  error
	)
	switch o.cfg.CodecMode {
	case config.CodecAVC420:
		item, err = o.tick420(f, forceKey)
	default:
		item, err = o.tick444(f, forceKey)
	}
	if err != nil {
		return err
	}

	o.muxer.EnqueueGraphics(item)
	o.metrics.RecordSend(len(item.Payload))
	o.detector.Commit(f)
	return nil
}

func (o *Orchestrator) tick420(f *frame.Frame, forceKey bool) (mux.Item, error) {
	matrix, rng := o.colorSignaling()
	t0 := time.Now()
	yuv := o.converter.Convert(f, matrix, rng, frame.Subsampling420)
	o.metrics.RecordConvert(time.Since(t0))

	t1 := time.Now()
	unit, err := o.mono.Encode(yuv, forceKey)
	if err != nil {
		return mux.Item{}, err
	}
	o.metrics.RecordEncode(time.Since(t1), len(unit.Data))

	return mux.Item{Payload: o.framer.FrameMono(unit.Data), IsKeyframe: unit.IsKeyframe}, nil
}

func (o *Orchestrator) tick444(f *frame.Frame, forceKey bool) (mux.Item, error) {
	matrix, rng := o.colorSignaling()
	t0 := time.Now()
	yuv444 := o.converter.Convert(f, matrix, rng, frame.Subsampling444)
	pair := colorconv.PackSubframes(yuv444)
	o.metrics.RecordConvert(time.Since(t0))

	t1 := time.Now()
	mainUnit, err := o.dual.EncodeMain(pair.Main, forceKey)
	if err != nil {
		return mux.Item{}, err
	}

	send, forceAuxKey := o.omission.Decide(pair.Aux, forceKey || mainUnit.IsKeyframe)

	lc := h264.LCLumaOnly
	var auxData []byte
	isKeyframe := mainUnit.IsKeyframe
	if send {
		auxUnit, auxErr := o.dual.EncodeAux(pair.Aux, forceAuxKey)
		switch {
		case auxErr != nil:
			// Auxiliary-failure fallback: no ProtocolError reaches the
			// wire, this tick degrades to Main-only and the next
			// Auxiliary actually sent is forced to a keyframe.
			o.omission.NotifyAuxFailure()
			o.log.Warn("orchestrator: auxiliary encode failed, falling back to main-only", "error", auxErr)
		case forceAuxKey && !auxUnit.IsKeyframe:
			// The backend didn't honor the keyframe request on a
			// MainOnly->Both transition: sending this Auxiliary would let
			// the client predict from state it never received. Fall back
			// to Main-only and retry the self-contained Auxiliary next tick.
			o.omission.NotifyAuxFailure()
			o.log.Warn("orchestrator: auxiliary encoder did not honor forced keyframe, falling back to main-only")
		default:
			auxData = auxUnit.Data
			lc = h264.LCBoth
			isKeyframe = isKeyframe || auxUnit.IsKeyframe
		}
	} else {
		o.metrics.RecordAuxOmitted()
	}
	o.metrics.RecordEncode(time.Since(t1), len(mainUnit.Data)+len(auxData))

	payload, ferr := o.framer.Frame444(lc, mainUnit.Data, auxData)
	if ferr != nil {
		// Defensive fallback: the lc/payload combination above should
		// always satisfy Frame444's contract, but a ProtocolError must
		// never reach the wire regardless, so fall back to Main alone.
		o.log.Error("orchestrator: framer rejected tick, falling back to main-only PDU", "error", ferr)
		payload, ferr = o.framer.Frame444(h264.LCLumaOnly, mainUnit.Data, nil)
		if ferr != nil {
			return mux.Item{}, rdperrors.Fatal("orchestrator", fmt.Errorf("main-only fallback also rejected: %w", ferr))
		}
	}

	return mux.Item{Payload: payload, IsKeyframe: isKeyframe}, nil
}
