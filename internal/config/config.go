// Package config reads the WebRTC-related environment variables
// described in spec.md §6. Outer configuration-file parsing and CLI
// wrapping are external collaborators (spec.md §1) and are not
// implemented here.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the subset of process configuration this module owns.
type Config struct {
	Enabled    bool
	MaxPlayers int

	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	PortRangeMin uint16
	PortRangeMax uint16

	SignalingSSL bool

	// BindAddr is base_port+2 worth of listen address for the
	// signaling WebSocket (spec.md §6).
	BindAddr string

	SendQueueSize  int
	VideoQueueSize int
	AudioQueueSize int

	MaxPeerSendTimeout time.Duration
}

// Load reads configuration from the process environment, applying
// the defaults and clamps spec.md §6 specifies.
func Load() Config {
	cfg := Config{
		Enabled:            envBool("WEBRTC_ENABLED", true),
		MaxPlayers:         clamp(envInt("WEBRTC_MAX_PLAYERS", 4), 1, 4),
		STUNServer:         envString("WEBRTC_STUN_SERVER", "stun:stun.l.google.com:19302"),
		TURNServer:         envString("WEBRTC_TURN_SERVER", ""),
		TURNUser:           envString("WEBRTC_TURN_USERNAME", ""),
		TURNPass:           envString("WEBRTC_TURN_PASSWORD", ""),
		PortRangeMin:       uint16(clamp(envInt("WEBRTC_PORT_RANGE_MIN", 50000), 0, 65535)),
		PortRangeMax:       uint16(clamp(envInt("WEBRTC_PORT_RANGE_MAX", 50199), 0, 65535)),
		SignalingSSL:       envBool("SIGNALING_SSL", true),
		BindAddr:           envString("SIGNALING_BIND_ADDR", ":8082"),
		SendQueueSize:      envInt("PEER_SEND_QUEUE_SIZE", 512),
		VideoQueueSize:     envInt("VIDEO_QUEUE_SIZE", 256),
		AudioQueueSize:     envInt("AUDIO_QUEUE_SIZE", 256),
		MaxPeerSendTimeout: envDuration("PEER_SEND_TIMEOUT", 2*time.Second),
	}
	if cfg.SendQueueSize < 512 {
		cfg.SendQueueSize = 512
	}
	return cfg
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func envString(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
