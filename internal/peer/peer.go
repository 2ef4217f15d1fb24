// Package peer wraps one WebRTC peer connection: connection state,
// SDP/ICE exchange, media tracks, data channels, and a per-peer send
// queue with a dedicated sender goroutine (spec.md §4.3).
//
// Grounded on PufferBlow-media-sfu/cmd/server/main.go's peer struct
// and addTrackToPeer/handleRemoteTrack wiring (pion/webrtc/v4 usage,
// RTCP drain goroutine, ICE-candidate/state-change callback style),
// generalized from one-way voice relay to send-only video/audio plus
// an unreliable input data channel per spec.md §4.3/§6.
package peer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/streamfab/gamestream-sfu/internal/apperr"
	"github.com/streamfab/gamestream-sfu/internal/rtpcodec"
)

// ID identifies a peer, process-wide unique and never reused while
// referenced (spec.md §3 PeerId).
type ID string

// State is the peer's WebRTC connection state machine (spec.md §4.3).
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// sendQueueCapacity is the minimum bound required by spec.md §4.3
// ("bounded (≥512 packets)").
const sendQueueCapacity = 512

// popTimeout is the sender worker's wait timeout (spec.md §4.3: "50 ms
// timeout").
const popTimeout = 50 * time.Millisecond

// Callbacks are wired by the signaling controller after the peer has
// been placed in the registry, matching spec.md §4.3's requirement
// that a peer be materialized before library callbacks can reference
// it.
type Callbacks struct {
	OnLocalDescription func(ID, webrtc.SessionDescription)
	OnLocalCandidate    func(ID, webrtc.ICECandidateInit)
	OnStateChange       func(ID, State)
}

// Stats mirrors original_source/peer.h's Stats struct, exposed via
// atomics so it can be read concurrently with the sender goroutine.
type Stats struct {
	BytesSent     atomic.Uint64
	PacketsSent   atomic.Uint64
	BytesReceived atomic.Uint64
	SendDropped   atomic.Uint64
	SendFailed    atomic.Uint64
}

// Snapshot is a point-in-time copy of Stats safe to serialize.
type Snapshot struct {
	BytesSent     uint64
	PacketsSent   uint64
	BytesReceived uint64
	SendDropped   uint64
	SendFailed    uint64
}

// Peer wraps one browser's WebRTC connection.
type Peer struct {
	id     ID
	pc     *webrtc.PeerConnection
	logger zerolog.Logger

	state atomic.Int32

	alive atomic.Bool // flips false on Close; checked first in every callback

	tracksMu   sync.Mutex
	videoTrack *webrtc.TrackLocalStaticRTP
	audioTrack *webrtc.TrackLocalStaticRTP

	channelsMu sync.Mutex
	channels   map[string]*webrtc.DataChannel

	queue         *sendQueue
	senderRunning atomic.Bool
	senderDone    chan struct{}

	stats Stats

	cb        Callbacks
	onPLI     func()
	closeOnce sync.Once
}

// New creates a peer bound to a fresh pion PeerConnection, per spec.md
// §4.3's `create(id, ice_config)`. The caller must place the returned
// Peer in the Peer Registry before calling Start, so library callbacks
// never fire on an object the registry doesn't yet know about.
func New(id ID, api *webrtc.API, iceServers []webrtc.ICEServer, logger zerolog.Logger) (*Peer, error) {
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("peer %s: new peer connection: %w", id, err)
	}

	p := &Peer{
		id:         id,
		pc:         pc,
		logger:     logger.With().Str("peer_id", string(id)).Logger(),
		channels:   make(map[string]*webrtc.DataChannel),
		senderDone: make(chan struct{}),
	}
	p.state.Store(int32(StateConnecting))
	p.alive.Store(true)
	p.queue = newSendQueue(sendQueueCapacity, func() { p.stats.SendDropped.Add(1) })
	return p, nil
}

// Start wires the pion callbacks. Each callback closure captures the
// peer id and a liveness flag by value and early-returns if the peer
// is no longer alive (spec.md §9 "weak handle" substitution).
func (p *Peer) Start(cb Callbacks) {
	p.cb = cb
	id := p.id
	alive := &p.alive

	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if !alive.Load() || c == nil {
			return
		}
		if p.cb.OnLocalCandidate != nil {
			p.cb.OnLocalCandidate(id, c.ToJSON())
		}
	})

	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if !alive.Load() {
			return
		}
		p.applyConnectionState(s)
	})
}

func (p *Peer) applyConnectionState(s webrtc.PeerConnectionState) {
	var next State
	switch s {
	case webrtc.PeerConnectionStateConnected:
		next = StateConnected
	case webrtc.PeerConnectionStateDisconnected:
		next = StateDisconnected
	case webrtc.PeerConnectionStateFailed:
		next = StateFailed
	case webrtc.PeerConnectionStateClosed:
		next = StateDisconnected
	default:
		return // CONNECTING-ish intermediate states are not tracked
	}

	prev := State(p.state.Swap(int32(next)))
	if prev == next {
		return
	}

	switch next {
	case StateConnected:
		p.startSender()
	case StateDisconnected, StateFailed:
		p.stopSender()
	}

	if p.cb.OnStateChange != nil {
		p.cb.OnStateChange(p.id, next)
	}
}

// ID returns the peer's id.
func (p *Peer) ID() ID { return p.id }

// State returns the current connection state.
func (p *Peer) State() State { return State(p.state.Load()) }

// SetRemoteDescription applies a remote SDP. If it is an offer, the
// peer produces and returns an answer; if it is an answer, the
// returned description is the zero value.
func (p *Peer) SetRemoteDescription(sdpText string, sdpType webrtc.SDPType) (*webrtc.SessionDescription, error) {
	desc := webrtc.SessionDescription{Type: sdpType, SDP: sdpText}
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return nil, apperr.Wrap(apperr.KindBadSdp, "set remote description", err)
	}

	if sdpType != webrtc.SDPTypeOffer {
		return nil, nil
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBadSdp, "create answer", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, apperr.Wrap(apperr.KindBadSdp, "set local description", err)
	}
	return &answer, nil
}

// AddICECandidate adds a remote ICE candidate. Malformed candidates
// are tolerated: the error is logged and false is returned rather than
// propagated (spec.md §4.3).
func (p *Peer) AddICECandidate(candidate, mid string) bool {
	init := webrtc.ICECandidateInit{Candidate: candidate}
	if mid != "" {
		init.SDPMid = &mid
	}
	if err := p.pc.AddICECandidate(init); err != nil {
		p.logger.Warn().Err(err).Msg("malformed ice candidate")
		return false
	}
	return true
}

func videoCapability(codec rtpcodec.VideoCodec) (webrtc.RTPCodecCapability, error) {
	switch codec {
	case rtpcodec.CodecH264:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: rtpcodec.VideoClockRate}, nil
	case rtpcodec.CodecHEVC:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH265, ClockRate: rtpcodec.VideoClockRate}, nil
	case rtpcodec.CodecAV1:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeAV1, ClockRate: rtpcodec.VideoClockRate}, nil
	default:
		return webrtc.RTPCodecCapability{}, fmt.Errorf("peer: unsupported video codec %q", codec)
	}
}

// AddVideoTrack adds a send-only video m-line for codec. RTP packets
// arriving via SendVideo are written onto this track with WriteRTP,
// which replaces their SSRC and payload type with the values pion
// negotiated for the track.
func (p *Peer) AddVideoTrack(codec rtpcodec.VideoCodec) error {
	capability, err := videoCapability(codec)
	if err != nil {
		return err
	}
	track, err := webrtc.NewTrackLocalStaticRTP(capability, "video", string(p.id))
	if err != nil {
		return fmt.Errorf("peer %s: new video track: %w", p.id, err)
	}
	if err := p.attachTrack(track, true); err != nil {
		return err
	}
	p.tracksMu.Lock()
	p.videoTrack = track
	p.tracksMu.Unlock()
	return nil
}

// AddAudioTrack adds a send-only Opus m-line (payload type 111).
func (p *Peer) AddAudioTrack() error {
	capability := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: rtpcodec.AudioClockRate, Channels: 2}
	track, err := webrtc.NewTrackLocalStaticRTP(capability, "audio", string(p.id))
	if err != nil {
		return fmt.Errorf("peer %s: new audio track: %w", p.id, err)
	}
	if err := p.attachTrack(track, false); err != nil {
		return err
	}
	p.tracksMu.Lock()
	p.audioTrack = track
	p.tracksMu.Unlock()
	return nil
}

// OnPictureLossIndication registers a callback invoked whenever a
// viewer's RTCP feedback requests a fresh keyframe (PLI or FIR) on the
// video track. The video/audio encoder is an external collaborator
// (spec.md §1); this callback is how that request reaches it.
func (p *Peer) OnPictureLossIndication(handler func()) {
	p.onPLI = handler
}

func (p *Peer) attachTrack(track *webrtc.TrackLocalStaticRTP, isVideo bool) error {
	sender, err := p.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("peer %s: add track: %w", p.id, err)
	}

	go func() {
		buf := make([]byte, 1500)
		for {
			n, _, err := sender.Read(buf)
			if err != nil {
				return
			}
			if !isVideo {
				continue
			}
			p.handleRTCP(buf[:n])
		}
	}()
	return nil
}

func (p *Peer) handleRTCP(data []byte) {
	packets, err := rtcp.Unmarshal(data)
	if err != nil {
		return
	}
	for _, pkt := range packets {
		switch pkt.(type) {
		case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
			if p.onPLI != nil {
				p.onPLI()
			}
		}
	}
}

// CreateDataChannel opens a data channel. label="input" is configured
// unreliable/unordered per spec.md §4.3; other labels get the
// library's reliable default.
func (p *Peer) CreateDataChannel(label string) error {
	var init *webrtc.DataChannelInit
	if label == "input" {
		var maxRetransmits uint16
		ordered := false
		init = &webrtc.DataChannelInit{Ordered: &ordered, MaxRetransmits: &maxRetransmits}
	}

	dc, err := p.pc.CreateDataChannel(label, init)
	if err != nil {
		return fmt.Errorf("peer %s: create data channel %q: %w", p.id, label, err)
	}

	p.channelsMu.Lock()
	p.channels[label] = dc
	p.channelsMu.Unlock()
	return nil
}

// OnDataChannelMessage registers a handler for messages received on
// label, if that channel exists.
func (p *Peer) OnDataChannelMessage(label string, handler func(data []byte, isString bool)) {
	p.channelsMu.Lock()
	dc, ok := p.channels[label]
	p.channelsMu.Unlock()
	if !ok {
		return
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !p.alive.Load() {
			return
		}
		handler(msg.Data, msg.IsString)
	})
}

// OnRemoteDataChannel lets the caller observe data channels the
// remote side opens (not currently used by any spec.md flow, but the
// library may surface it regardless of who initiated).
func (p *Peer) OnRemoteDataChannel(handler func(label string)) {
	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if !p.alive.Load() {
			return
		}
		p.channelsMu.Lock()
		p.channels[dc.Label()] = dc
		p.channelsMu.Unlock()
		handler(dc.Label())
	})
}

// SendVideo enqueues a raw marshaled RTP packet for delivery on the
// video track. Non-blocking; dropped if the peer is not CONNECTED or
// the sender is not running.
func (p *Peer) SendVideo(rtpBytes []byte) bool {
	return p.enqueue(kindVideo, rtpBytes)
}

// SendAudio enqueues a raw marshaled RTP packet for delivery on the
// audio track.
func (p *Peer) SendAudio(rtpBytes []byte) bool {
	return p.enqueue(kindAudio, rtpBytes)
}

func (p *Peer) enqueue(kind mediaKind, rtpBytes []byte) bool {
	if p.State() != StateConnected || !p.senderRunning.Load() {
		return false
	}
	p.queue.push(kind, rtpBytes)
	return true
}

// SendBinary writes bytes on the data channel labeled by label.
// Returns false if the channel is absent or closed.
func (p *Peer) SendBinary(label string, data []byte) bool {
	p.channelsMu.Lock()
	dc, ok := p.channels[label]
	p.channelsMu.Unlock()
	if !ok || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return false
	}
	return dc.Send(data) == nil
}

// SendText writes a text message on the data channel labeled by
// label.
func (p *Peer) SendText(label string, text string) bool {
	p.channelsMu.Lock()
	dc, ok := p.channels[label]
	p.channelsMu.Unlock()
	if !ok || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return false
	}
	return dc.SendText(text) == nil
}

// Stats returns a point-in-time snapshot of send/receive counters.
func (p *Peer) Stats() Snapshot {
	return Snapshot{
		BytesSent:     p.stats.BytesSent.Load(),
		PacketsSent:   p.stats.PacketsSent.Load(),
		BytesReceived: p.stats.BytesReceived.Load(),
		SendDropped:   p.stats.SendDropped.Load(),
		SendFailed:    p.stats.SendFailed.Load(),
	}
}

func (p *Peer) startSender() {
	if !p.senderRunning.CompareAndSwap(false, true) {
		return
	}
	go p.senderLoop()
}

func (p *Peer) stopSender() {
	if !p.senderRunning.CompareAndSwap(true, false) {
		return
	}
	<-p.senderDone
	p.senderDone = make(chan struct{})
}

// senderLoop is the single thread-per-peer worker of spec.md §4.3: it
// waits on the send queue with a 50ms timeout, drains one packet per
// wake, and writes to the matching track outside any lock.
func (p *Peer) senderLoop() {
	defer close(p.senderDone)

	for {
		item, ok := p.queue.popWait(popTimeout)
		if !ok {
			if !p.senderRunning.Load() {
				return
			}
			continue
		}

		p.tracksMu.Lock()
		track := p.videoTrack
		if item.kind == kindAudio {
			track = p.audioTrack
		}
		p.tracksMu.Unlock()

		if track == nil {
			continue
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(item.payload); err != nil {
			p.stats.SendFailed.Add(1)
			continue
		}
		if err := track.WriteRTP(&pkt); err != nil {
			p.stats.SendFailed.Add(1)
			continue
		}
		p.stats.PacketsSent.Add(1)
		p.stats.BytesSent.Add(uint64(len(item.payload)))

		if !p.senderRunning.Load() && p.queue.len() == 0 {
			return
		}
	}
}

// Close is idempotent: it flips the state to DISCONNECTED, stops the
// sender, and closes the underlying connection before releasing
// references, so no callback touches a half-destroyed peer (spec.md
// §4.3, §5 "two-phase" close).
func (p *Peer) Close() error {
	var closeErr error
	p.closeOnce.Do(func() {
		p.alive.Store(false)
		p.state.Store(int32(StateDisconnected))
		p.stopSender()
		closeErr = p.pc.Close()
	})
	return closeErr
}
