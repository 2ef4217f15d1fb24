// Package runtime wires every sub-system into one Runtime value: the
// explicit dependency-injection root spec.md §9 calls for in place of
// package-level singleton managers. cmd/server builds exactly one
// Runtime and mounts its Controller on a net/http mux.
package runtime

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/streamfab/gamestream-sfu/internal/config"
	"github.com/streamfab/gamestream-sfu/internal/inputrouter"
	"github.com/streamfab/gamestream-sfu/internal/media"
	"github.com/streamfab/gamestream-sfu/internal/mediasender"
	"github.com/streamfab/gamestream-sfu/internal/metrics"
	"github.com/streamfab/gamestream-sfu/internal/peer"
	"github.com/streamfab/gamestream-sfu/internal/room"
	"github.com/streamfab/gamestream-sfu/internal/rtpcodec"
	"github.com/streamfab/gamestream-sfu/internal/signaling"
	"github.com/streamfab/gamestream-sfu/internal/sysinput"
)

// Params bundles every external collaborator (encoder capture, system
// input, a metrics registerer) the host process must
// supply, plus the codec the Video Sender publishes (spec.md §1 Out
// Of Scope lists these as named external collaborators).
type Params struct {
	Config     config.Config
	Logger     zerolog.Logger
	VideoCodec rtpcodec.VideoCodec
	Input      sysinput.Facade          // nil defaults to sysinput.NoOp
	IDR        mediasender.IDRRequester // nil defaults to a no-op
	Encoder    signaling.QualityConfigurer
	Capture    signaling.CaptureController // nil defaults to a no-op
	Registerer prometheus.Registerer       // nil skips metrics registration
}

// Runtime owns every constructed component and the goroutines that
// drive the Video and Audio Senders (spec.md §5 "1 video sender
// thread, 1 audio sender thread").
type Runtime struct {
	logger zerolog.Logger

	PeerRegistry *peer.Registry
	RoomRegistry *room.Registry
	Controller   *signaling.Controller
	Metrics      *metrics.Metrics

	videoQueue *media.Queue
	audioQueue *media.Queue

	video *mediasender.VideoSender
	audio *mediasender.AudioSender
}

// New constructs every component and wires them together. It does
// not start the sender goroutines; call Run for that.
func New(p Params) (*Runtime, error) {
	logger := p.Logger

	iceServers, err := buildICEServers(p.Config)
	if err != nil {
		return nil, fmt.Errorf("runtime: build ice servers: %w", err)
	}

	settingEngine := webrtc.SettingEngine{}
	if p.Config.PortRangeMin > 0 && p.Config.PortRangeMax >= p.Config.PortRangeMin {
		if err := settingEngine.SetEphemeralUDPPortRange(p.Config.PortRangeMin, p.Config.PortRangeMax); err != nil {
			logger.Warn().Err(err).Msg("failed to set ephemeral UDP port range")
		}
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))

	peers := peer.NewRegistry(iceServers)
	rooms := room.NewRegistry(logger)

	input := p.Input
	if input == nil {
		input = sysinput.NoOp{}
	}
	router := inputrouter.New(rooms, input, logger)

	m := metrics.New()
	if p.Registerer != nil {
		if err := m.Register(p.Registerer); err != nil {
			return nil, fmt.Errorf("runtime: register metrics: %w", err)
		}
	}

	videoQueue := media.NewQueue(p.Config.VideoQueueSize)
	audioQueue := media.NewQueue(p.Config.AudioQueueSize)

	videoSSRC, err := randomSSRC()
	if err != nil {
		return nil, fmt.Errorf("runtime: video ssrc: %w", err)
	}
	audioSSRC, err := randomSSRC()
	if err != nil {
		return nil, fmt.Errorf("runtime: audio ssrc: %w", err)
	}

	videoSender := mediasender.NewVideoSender(videoQueue, peers, p.VideoCodec, videoSSRC,
		func() { m.DroppedPackets.WithLabelValues("malformed_video").Inc() }, logger)
	audioSender := mediasender.NewAudioSender(audioQueue, peers, audioSSRC, logger)

	idr := p.IDR
	if idr == nil {
		idr = noopIDR{}
	}
	capture := p.Capture
	if capture == nil {
		capture = noopCapture{}
	}

	controller := signaling.New(signaling.Params{
		Peers:      peers,
		Rooms:      rooms,
		Router:     router,
		API:        api,
		VideoCodec: videoSender.Codec,
		IDR:        idr,
		Encoder:    p.Encoder,
		Capture:    capture,
		Metrics:    m,
		Logger:     logger,
		MaxPlayers: p.Config.MaxPlayers,
	})

	return &Runtime{
		logger:       logger,
		PeerRegistry: peers,
		RoomRegistry: rooms,
		Controller:   controller,
		Metrics:      m,
		videoQueue:   videoQueue,
		audioQueue:   audioQueue,
		video:        videoSender,
		audio:        audioSender,
	}, nil
}

// VideoQueue exposes the sink the external encoder pushes encoded
// video frames onto.
func (rt *Runtime) VideoQueue() *media.Queue { return rt.videoQueue }

// AudioQueue exposes the sink the external encoder pushes encoded
// Opus frames onto.
func (rt *Runtime) AudioQueue() *media.Queue { return rt.audioQueue }

// Run starts the Video and Audio Sender threads and blocks until both
// have been stopped (spec.md §5 "parallel threads with blocking
// queues between stages").
func (rt *Runtime) Run() {
	done := make(chan struct{})
	go func() {
		rt.video.Run()
		close(done)
	}()
	rt.audio.Run()
	<-done
}

// Shutdown stops the sender threads; Run then returns. The transport
// close is the caller's responsibility (spec.md §5 "deferred until
// all sender threads have joined").
func (rt *Runtime) Shutdown() {
	rt.video.Stop()
	rt.audio.Stop()
}

func randomSSRC() (uint32, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func buildICEServers(cfg config.Config) ([]webrtc.ICEServer, error) {
	servers := []webrtc.ICEServer{{URLs: []string{cfg.STUNServer}}}

	if cfg.TURNServer == "" {
		return servers, nil
	}

	addr, err := config.ParseTURNURL(cfg.TURNServer)
	if err != nil {
		return nil, err
	}
	scheme := "turn"
	if addr.Secure {
		scheme = "turns"
	}
	servers = append(servers, webrtc.ICEServer{
		URLs:       []string{fmt.Sprintf("%s:%s:%d", scheme, addr.Host, addr.Port)},
		Username:   cfg.TURNUser,
		Credential: cfg.TURNPass,
	})
	return servers, nil
}

// noopIDR discards keyframe requests; used when no encoder is wired,
// e.g. in tests or a bare demo server.
type noopIDR struct{}

func (noopIDR) RequestIDR() {}

// noopCapture discards start/stop capture signals; used when no
// encoder process is wired.
type noopCapture struct{}

func (noopCapture) StartCapture() {}
func (noopCapture) StopCapture()  {}
