// Package signaling owns the WebSocket transport, decodes JSON
// messages, and wires peer lifecycle events to the Room model
// (spec.md §4.9).
//
// Grounded on original_source/src/webrtc/signaling.h's documented
// wire protocol (matches spec.md §6 verbatim) and on
// PufferBlow-media-sfu/cmd/server/main.go's handleWS message-switch
// idiom, restructured around internal/room and internal/peer instead
// of the teacher's flat per-room map.
package signaling

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/streamfab/gamestream-sfu/internal/apperr"
	"github.com/streamfab/gamestream-sfu/internal/inputrouter"
	"github.com/streamfab/gamestream-sfu/internal/mediasender"
	"github.com/streamfab/gamestream-sfu/internal/metrics"
	"github.com/streamfab/gamestream-sfu/internal/peer"
	"github.com/streamfab/gamestream-sfu/internal/room"
	"github.com/streamfab/gamestream-sfu/internal/rtpcodec"
	"github.com/streamfab/gamestream-sfu/internal/wstransport"
)

// Quality clamps from spec.md §6.
const (
	minBitrateKbps = 1000
	maxBitrateKbps = 150000
	minFramerate   = 30
	maxFramerate   = 240
	minWidth       = 640
	maxWidth       = 7680
	minHeight      = 480
	maxHeight      = 4320
)

// Controller mediates SDP, ICE, membership, and permission messages
// over WebSocket connections, and tears everything down deterministically
// on disconnect (spec.md §4.9, §5).
type Controller struct {
	transport  *wstransport.Transport
	peers      *peer.Registry
	rooms      *room.Registry
	router     *inputrouter.Router
	api        *webrtc.API
	videoCodec func() rtpcodec.VideoCodec
	idr        mediasender.IDRRequester
	encoder    QualityConfigurer
	capture    CaptureController
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	maxPlayers int

	mu             sync.Mutex
	connToPeer     map[wstransport.ConnID]peer.ID
	peerToConn     map[peer.ID]wstransport.ConnID
	activeRoomCode string
}

// QualityConfigurer is the external encoder's live reconfiguration
// hook (spec.md §1 Out Of Scope), driven by set_quality.
type QualityConfigurer interface {
	SetQuality(bitrateKbps, framerate, width, height int)
}

// CaptureController is the external encoder's start/stop hook
// (spec.md §1 Out Of Scope, lines 169-170/179/285): the first joiner
// starts capture, and capture stops once the active room count drops
// back to zero.
type CaptureController interface {
	StartCapture()
	StopCapture()
}

// Params bundles Controller's collaborators, injected by the caller
// (spec.md §9: "a single Runtime value wires sub-systems"). IDR,
// Encoder, Capture and Metrics may be nil; the controller then skips
// those calls.
type Params struct {
	Peers      *peer.Registry
	Rooms      *room.Registry
	Router     *inputrouter.Router
	API        *webrtc.API
	VideoCodec func() rtpcodec.VideoCodec
	IDR        mediasender.IDRRequester
	Encoder    QualityConfigurer
	Capture    CaptureController
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
	MaxPlayers int
}

func New(p Params) *Controller {
	c := &Controller{
		peers:      p.Peers,
		rooms:      p.Rooms,
		router:     p.Router,
		api:        p.API,
		videoCodec: p.VideoCodec,
		idr:        p.IDR,
		encoder:    p.Encoder,
		capture:    p.Capture,
		metrics:    p.Metrics,
		logger:     p.Logger,
		maxPlayers: p.MaxPlayers,
		connToPeer: make(map[wstransport.ConnID]peer.ID),
		peerToConn: make(map[peer.ID]wstransport.ConnID),
	}
	c.transport = wstransport.New(wstransport.Callbacks{
		OnConnect:    c.onConnect,
		OnMessage:    c.onMessage,
		OnDisconnect: c.onDisconnect,
	}, p.Logger)
	return c
}

// ServeHTTP exposes the WebSocket endpoint.
func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.transport.ServeHTTP(w, r)
}

func (c *Controller) onConnect(connID wstransport.ConnID, _ *http.Request) {
	id := peer.ID(fmt.Sprintf("peer_%d", connID))

	c.mu.Lock()
	c.connToPeer[connID] = id
	c.peerToConn[id] = connID
	c.mu.Unlock()
}

func (c *Controller) peerIDFor(connID wstransport.ConnID) (peer.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.connToPeer[connID]
	return id, ok
}

func (c *Controller) connIDFor(id peer.ID) (wstransport.ConnID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	connID, ok := c.peerToConn[id]
	return connID, ok
}

func (c *Controller) onMessage(connID wstransport.ConnID, text []byte) {
	id, ok := c.peerIDFor(connID)
	if !ok {
		return
	}

	var msg inbound
	if err := json.Unmarshal(text, &msg); err != nil {
		c.sendError(connID, apperr.KindParseError, "invalid json")
		return
	}

	switch msg.Type {
	case "join", "create_room", "join_room":
		c.handleJoin(connID, id, msg)
	case "leave":
		c.handleLeave(id)
	case "join_as_player":
		c.handleJoinAsPlayer(connID, id)
	case "claim_gamepad":
		c.handleClaimGamepad(connID, id, msg)
	case "release_gamepad":
		c.handleReleaseGamepad(connID, id, msg)
	case "sdp":
		c.handleSDP(connID, id, msg)
	case "ice":
		c.handleICE(id, msg)
	case "set_guest_keyboard":
		c.handleSetGuestKeyboard(id, msg)
	case "set_guest_mouse":
		c.handleSetGuestMouse(id, msg)
	case "set_quality":
		c.handleSetQuality(connID, id, msg)
	default:
		c.sendError(connID, apperr.KindUnknownType, "unknown message type")
	}
}

// onDisconnect orders cleanup deterministically: peer registry first
// (stops media sends), then room membership (notifying others), then
// the id mapping (spec.md §4.9).
func (c *Controller) onDisconnect(connID wstransport.ConnID) {
	id, ok := c.peerIDFor(connID)
	if !ok {
		return
	}

	c.peers.Remove(id)
	c.evictFromRoom(id)
	c.forgetPeer(id)

	if c.metrics != nil {
		c.metrics.Rooms.Set(float64(c.rooms.RoomCount()))
		c.metrics.ConnectedPeers.Set(float64(c.peers.ConnectedCount()))
	}
}

func (c *Controller) forgetPeer(id peer.ID) {
	c.mu.Lock()
	if connID, ok := c.peerToConn[id]; ok {
		delete(c.connToPeer, connID)
	}
	delete(c.peerToConn, id)
	c.mu.Unlock()
}

func (c *Controller) send(id peer.ID, msg any) {
	connID, ok := c.connIDFor(id)
	if !ok {
		return
	}
	c.sendToConn(connID, msg)
}

func (c *Controller) sendToConn(connID wstransport.ConnID, msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error().Err(err).Msg("marshal signaling message")
		return
	}
	c.transport.Send(connID, b)
}

func (c *Controller) sendError(connID wstransport.ConnID, kind apperr.Kind, message string) {
	if c.metrics != nil {
		c.metrics.SignalingErrors.WithLabelValues(string(kind)).Inc()
	}
	c.sendToConn(connID, errorMsg{Type: "error", Code: string(kind), Message: message})
}

func snapshotPlayers(r *room.Room) []playerSnapshot {
	players := r.GetPlayers()
	sources := make([]playerSnapshotSource, 0, len(players))
	for _, p := range players {
		sources = append(sources, playerSnapshotSource{
			PeerID:      p.PeerID,
			Slot:        int(p.Slot),
			Name:        p.Name,
			IsHost:      p.IsHost,
			IsSpectator: p.IsSpectator,
		})
	}
	return toSnapshots(sources)
}

func (c *Controller) broadcastRoomUpdated(r *room.Room) {
	msg := roomUpdatedMsg{Type: "room_updated", Players: snapshotPlayers(r)}
	for _, p := range r.GetPlayers() {
		c.send(peer.ID(p.PeerID), msg)
	}
}

func (c *Controller) broadcastToRoom(r *room.Room, except peer.ID, msg any) {
	for _, p := range r.GetPlayers() {
		if peer.ID(p.PeerID) == except {
			continue
		}
		c.send(peer.ID(p.PeerID), msg)
	}
}
