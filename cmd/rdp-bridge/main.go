//go:build cgo

// rdp-bridge captures one Wayland desktop's frames over a media-capture
// socket, encodes them into the RDP AVC420/AVC444 graphics-channel
// bitstream, and multiplexes the result onto a local Unix socket for a
// real RDP server process to forward to the client.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/godbus/dbus/v5"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/capture"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/config"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/h264"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/mux"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/orchestrator"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/transport"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	logger.Info("starting rdp-bridge")

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("configuration error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mediaSocketFD, streamID, err := mediaCaptureParams(ctx)
	if err != nil {
		logger.Error("media capture parameters", "err", err)
		os.Exit(1)
	}

	backend, err := h264.NewOpenH264Backend(h264.BackendConfig{
		Width:     cfg.ScreenWidth,
		Height:    cfg.ScreenHeight,
		Matrix:    cfg.ColorMatrix,
		Range:     cfg.ColorRange,
		TargetFPS: cfg.TargetFPS,
	})
	if err != nil {
		logger.Error("encoder backend init", "err", err)
		os.Exit(1)
	}
	defer backend.Close()

	var mono *h264.Avc420Encoder
	var dual *h264.Avc444Encoder
	var omission *h264.OmissionController
	switch cfg.CodecMode {
	case config.CodecAVC420:
		mono = h264.NewAvc420Encoder(backend)
	default:
		dual = h264.NewAvc444Encoder(backend)
		omission = h264.NewOmissionController(cfg.AuxRefreshIntervalFrames)
	}

	socketPath := graphicsSocketPath(cfg)
	gt := transport.New(socketPath, logger)

	muxer := mux.New(gt)
	source := capture.NewGstSource(logger, cfg.ScreenWidth, cfg.ScreenHeight)
	orch := orchestrator.New(cfg, logger, source, muxer, mono, dual, omission)

	// A fresh graphics client has no prior DPB state: force the next
	// tick to a full Main (and, in 4:4:4 mode, Auxiliary) keyframe so it
	// can decode from the first PDU it receives.
	gt.OnConnect = orch.ForceKeyframe

	if err := gt.Listen(ctx); err != nil {
		logger.Error("graphics transport listen", "err", err)
		os.Exit(1)
	}
	defer gt.Close()

	var wg sync.WaitGroup
	var runtimeFailed bool

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := muxer.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("multiplexer exited", "err", err)
			runtimeFailed = true
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := orch.Run(ctx, mediaSocketFD, streamID); err != nil && err != context.Canceled {
			logger.Error("orchestrator exited", "err", err)
			runtimeFailed = true
			cancel()
		}
	}()

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: healthHandler(orch),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("health server starting", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	httpServer.Close()

	wg.Wait()
	logger.Info("rdp-bridge shutdown complete")
	if runtimeFailed {
		os.Exit(2)
	}
}

func healthHandler(orch *orchestrator.Orchestrator) http.Handler {
	h := http.NewServeMux()
	h.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	h.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		snap := orch.Metrics()
		fmt.Fprintf(w, "ticks_captured=%d ticks_sent=%d ticks_skipped=%d ticks_dropped=%d aux_omitted=%d bandwidth_kbps=%.1f\n",
			snap.TicksCaptured, snap.TicksSent, snap.TicksSkipped, snap.TicksDropped, snap.AuxOmitted, snap.BandwidthKBps)
	})
	h.HandleFunc("/color-signaling", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			Matrix string `json:"matrix"`
			Range  string `json:"range"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, fmt.Sprintf("decode body: %v", err), http.StatusBadRequest)
			return
		}
		matrix, err := frame.ParseColorMatrix(body.Matrix)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rng, err := frame.ParseColorRange(body.Range)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		orch.SetColorSignaling(matrix, rng)
		w.WriteHeader(http.StatusNoContent)
	})
	return h
}

// mediaCaptureParams reads the pre-negotiated media-capture socket FD this
// process inherits from its launcher (the socket itself and the
// desktop-portal permission flow are out of scope for this module; the
// launcher is expected to dup the connected fd to a known number). The
// stream id either comes directly from RDP_STREAM_ID, or, if the launcher
// instead handed off a ScreenCast stream object path, is read by waiting
// on that stream's PipeWireStreamAdded D-Bus signal.
func mediaCaptureParams(ctx context.Context) (fd int, streamID uint32, err error) {
	fdStr := os.Getenv("RDP_MEDIA_SOCKET_FD")
	if fdStr == "" {
		return 0, 0, fmt.Errorf("RDP_MEDIA_SOCKET_FD is required")
	}
	n, err := strconv.Atoi(fdStr)
	if err != nil {
		return 0, 0, fmt.Errorf("RDP_MEDIA_SOCKET_FD: %w", err)
	}

	if streamIDStr := os.Getenv("RDP_STREAM_ID"); streamIDStr != "" {
		sid, err := strconv.ParseUint(streamIDStr, 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("RDP_STREAM_ID: %w", err)
		}
		return n, uint32(sid), nil
	}

	streamPath := os.Getenv("RDP_SCREENCAST_STREAM_PATH")
	if streamPath == "" {
		return n, 0, nil
	}

	conn, err := capture.DialSessionBus(ctx, 60)
	if err != nil {
		return 0, 0, fmt.Errorf("dial session bus: %w", err)
	}
	defer conn.Close()

	sid, err := capture.NegotiateMediaSocket(ctx, conn, dbus.ObjectPath(streamPath))
	if err != nil {
		return 0, 0, fmt.Errorf("negotiate media socket: %w", err)
	}
	return n, sid, nil
}

func graphicsSocketPath(cfg config.Config) string {
	if v := os.Getenv("RDP_GRAPHICS_SOCKET"); v != "" {
		return v
	}
	return filepath.Join(cfg.XDGRuntimeDir, "rdp-graphics.sock")
}
