// Command server boots the game-stream fan-out signaling server: it
// loads configuration from the environment, wires an
// internal/runtime.Runtime, and serves the WebRTC signaling WebSocket
// plus a Prometheus /metrics endpoint.
//
// The encoder capture pipeline and the system-input backend are
// external collaborators (spec.md §1 Out Of Scope); this binary wires
// minimal stub adapters for them so the server runs standalone. A
// real deployment replaces the stub adapters with a process that
// starts/stops capture on stubCapture's StartCapture/StopCapture
// calls, pushes encoded frames onto Runtime.VideoQueue()/AudioQueue(),
// and forwards sysinput.Facade calls to an actual virtual input
// device.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/streamfab/gamestream-sfu/internal/config"
	applog "github.com/streamfab/gamestream-sfu/internal/log"
	"github.com/streamfab/gamestream-sfu/internal/rtpcodec"
	"github.com/streamfab/gamestream-sfu/internal/runtime"
)

// stubIDR logs a keyframe request instead of forwarding it to a real
// encoder process (spec.md §1 Out Of Scope).
type stubIDR struct{ logger zerolog.Logger }

func (s stubIDR) RequestIDR() {
	s.logger.Debug().Msg("request_idr (no encoder wired)")
}

// stubEncoder logs quality changes instead of reconfiguring a real
// encoder process.
type stubEncoder struct{ logger zerolog.Logger }

func (s stubEncoder) SetQuality(bitrateKbps, framerate, width, height int) {
	s.logger.Info().
		Int("bitrate_kbps", bitrateKbps).
		Int("framerate", framerate).
		Int("width", width).
		Int("height", height).
		Msg("set_quality (no encoder wired)")
}

// stubCapture logs capture start/stop instead of driving a real
// encoder process's capture pipeline.
type stubCapture struct{ logger zerolog.Logger }

func (s stubCapture) StartCapture() {
	s.logger.Info().Msg("start_capture (no encoder wired)")
}

func (s stubCapture) StopCapture() {
	s.logger.Info().Msg("stop_capture (no encoder wired)")
}

func main() {
	logger := applog.New(zerolog.InfoLevel, os.Stderr)

	cfg := config.Load()
	if !cfg.Enabled {
		logger.Warn().Msg("webrtc_enabled=false, exiting")
		return
	}

	registry := prometheus.NewRegistry()

	rt, err := runtime.New(runtime.Params{
		Config:     cfg,
		Logger:     applog.Component(logger, "runtime"),
		VideoCodec: rtpcodec.CodecH264,
		IDR:        stubIDR{logger: applog.Component(logger, "encoder")},
		Encoder:    stubEncoder{logger: applog.Component(logger, "encoder")},
		Capture:    stubCapture{logger: applog.Component(logger, "encoder")},
		Registerer: registry,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build runtime")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/signaling", rt.Controller.ServeHTTP)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go rt.Run()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("bind_addr", cfg.BindAddr).
			Bool("signaling_ssl", cfg.SignalingSSL).
			Int("max_players", cfg.MaxPlayers).
			Msg("signaling server listening")

		if cfg.SignalingSSL {
			certFile := os.Getenv("SIGNALING_TLS_CERT_FILE")
			keyFile := os.Getenv("SIGNALING_TLS_KEY_FILE")
			serveErr <- httpServer.ListenAndServeTLS(certFile, keyFile)
			return
		}
		serveErr <- httpServer.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("signaling server error")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http server shutdown error")
		}
	}

	rt.Shutdown()
}
