package signaling

import (
	"github.com/pion/webrtc/v4"

	"github.com/streamfab/gamestream-sfu/internal/apperr"
	"github.com/streamfab/gamestream-sfu/internal/peer"
	"github.com/streamfab/gamestream-sfu/internal/room"
	"github.com/streamfab/gamestream-sfu/internal/wstransport"
)

// handleJoin implements spec.md §4.9's join row: the first joiner
// becomes host of the one active session; every later joiner arrives
// as a spectator of that same room. Both cases then materialize a
// WebRTC peer with video/audio tracks and an input data channel.
func (c *Controller) handleJoin(connID wstransport.ConnID, id peer.ID, msg inbound) {
	c.mu.Lock()
	code := c.activeRoomCode
	c.mu.Unlock()

	if code == "" {
		r, err := c.rooms.CreateRoom(string(id), msg.PlayerName)
		if err != nil {
			c.sendError(connID, apperr.KindRoomFull, err.Error())
			return
		}
		c.mu.Lock()
		c.activeRoomCode = r.Code()
		c.mu.Unlock()

		if c.capture != nil {
			c.capture.StartCapture()
		}

		if err := c.setupPeerConnection(connID, id); err != nil {
			c.sendError(connID, apperr.KindTransport, err.Error())
			return
		}

		c.sendToConn(connID, roomCreatedMsg{
			Type:            "room_created",
			RoomCode:        r.Code(),
			PlayerSlot:      int(room.Slot1),
			IsHost:          true,
			KeyboardEnabled: true,
			MouseEnabled:    true,
			Players:         snapshotPlayers(r),
		})
		return
	}

	r, ok := c.rooms.FindByCode(code)
	if !ok {
		c.sendError(connID, apperr.KindRoomNotFound, "no active room")
		return
	}
	if _, err := c.rooms.Join(code, string(id), msg.PlayerName); err != nil {
		c.sendError(connID, apperr.KindRoomFull, err.Error())
		return
	}

	if err := c.setupPeerConnection(connID, id); err != nil {
		c.sendError(connID, apperr.KindTransport, err.Error())
		return
	}

	p, _ := r.GetPlayer(string(id))
	c.sendToConn(connID, roomJoinedMsg{
		Type:            "room_joined",
		RoomCode:        code,
		PlayerSlot:      int(p.Slot),
		IsSpectator:     p.IsSpectator,
		KeyboardEnabled: p.CanUseKeyboard,
		MouseEnabled:    p.CanUseMouse,
		Players:         snapshotPlayers(r),
	})
	c.broadcastToRoom(r, id, playerJoinedMsg{Type: "player_joined", PeerID: string(id), Name: msg.PlayerName})
}

// setupPeerConnection creates the pion PeerConnection for id, adds the
// video/audio send tracks and the input data channel, wires the peer's
// callbacks to signaling messages, and places it in the Peer Registry
// (spec.md §4.3/§4.9).
func (c *Controller) setupPeerConnection(connID wstransport.ConnID, id peer.ID) error {
	p, err := peer.New(id, c.api, c.peers.ICEServers(), c.logger)
	if err != nil {
		return err
	}

	if err := p.AddVideoTrack(c.videoCodec()); err != nil {
		return err
	}
	if err := p.AddAudioTrack(); err != nil {
		return err
	}
	if err := p.CreateDataChannel("input"); err != nil {
		return err
	}

	p.OnPictureLossIndication(func() {
		if c.idr != nil {
			c.idr.RequestIDR()
		}
	})

	c.peers.Add(p)

	p.Start(peer.Callbacks{
		OnLocalDescription: func(id peer.ID, desc webrtc.SessionDescription) {
			c.send(id, sdpMsg{Type: "sdp", SDP: desc.SDP, SDPType: desc.Type.String()})
		},
		OnLocalCandidate: func(id peer.ID, cand webrtc.ICECandidateInit) {
			mid := ""
			if cand.SDPMid != nil {
				mid = *cand.SDPMid
			}
			c.send(id, iceMsg{Type: "ice", Candidate: cand.Candidate, Mid: mid})
		},
		OnStateChange: func(id peer.ID, state peer.State) {
			if state != peer.StateConnected {
				return
			}
			c.send(id, streamReadyMsg{Type: "stream_ready"})
			if c.idr != nil {
				c.idr.RequestIDR()
			}
		},
	})

	p.OnDataChannelMessage("input", func(data []byte, isString bool) {
		if isString {
			return
		}
		c.router.Route(string(id), data)
	})

	return nil
}

// handleLeave reverses join: the peer's WebRTC connection is torn
// down and it is removed from the room; if it was the host the room
// is destroyed and every other member is evicted too (spec.md §4.9).
func (c *Controller) handleLeave(id peer.ID) {
	c.peers.Remove(id)
	c.evictFromRoom(id)
}

// evictFromRoom removes id from its room, cascading a host departure
// to every other member, and clears the controller's notion of the
// active room once it empties.
func (c *Controller) evictFromRoom(id peer.ID) {
	r, wasHost, evicted := c.rooms.RemovePeer(string(id))
	if r == nil {
		return
	}

	if wasHost {
		for _, otherID := range evicted {
			c.send(peer.ID(otherID), roomClosedMsg{Type: "room_closed", Reason: "host_left"})
			c.peers.Remove(peer.ID(otherID))
			c.forgetPeer(peer.ID(otherID))
		}
		c.mu.Lock()
		if c.activeRoomCode == r.Code() {
			c.activeRoomCode = ""
		}
		c.mu.Unlock()
	} else {
		c.broadcastRoomUpdated(r)
		c.broadcastToRoom(r, id, playerLeftMsg{Type: "player_left", PeerID: string(id)})
	}

	if c.capture != nil && c.rooms.RoomCount() == 0 {
		c.capture.StopCapture()
	}
}

func (c *Controller) handleJoinAsPlayer(connID wstransport.ConnID, id peer.ID) {
	r, ok := c.rooms.FindByPeer(string(id))
	if !ok {
		c.sendError(connID, apperr.KindNotInRoom, "not in a room")
		return
	}
	if r.PlayerCount() >= c.maxPlayers {
		c.sendError(connID, apperr.KindRoomFull, "configured player limit reached")
		return
	}
	slot, err := r.PromoteToPlayer(string(id))
	if err != nil {
		c.sendError(connID, apperr.KindRoomFull, err.Error())
		return
	}

	c.sendToConn(connID, promotedToPlayerMsg{Type: "promoted_to_player", PlayerSlot: int(slot)})
	c.broadcastRoomUpdated(r)
	if c.idr != nil {
		c.idr.RequestIDR()
	}
}

func (c *Controller) handleClaimGamepad(connID wstransport.ConnID, id peer.ID, msg inbound) {
	r, ok := c.rooms.FindByPeer(string(id))
	if !ok {
		c.sendError(connID, apperr.KindNotInRoom, "not in a room")
		return
	}
	slot, err := r.ClaimGamepad(string(id), msg.GamepadID)
	if err != nil {
		c.sendError(connID, apperr.KindGamepadExhausted, err.Error())
		return
	}
	c.sendToConn(connID, gamepadClaimedMsg{Type: "gamepad_claimed", GamepadID: msg.GamepadID, ServerSlot: slot})
}

func (c *Controller) handleReleaseGamepad(connID wstransport.ConnID, id peer.ID, msg inbound) {
	r, ok := c.rooms.FindByPeer(string(id))
	if !ok {
		c.sendError(connID, apperr.KindNotInRoom, "not in a room")
		return
	}
	if err := r.ReleaseGamepad(string(id), msg.ServerSlot); err != nil {
		c.sendError(connID, apperr.KindNotInRoom, err.Error())
		return
	}
	c.sendToConn(connID, gamepadReleasedMsg{Type: "gamepad_released", ServerSlot: msg.ServerSlot})
}

func (c *Controller) handleSDP(connID wstransport.ConnID, id peer.ID, msg inbound) {
	p, ok := c.peers.Find(id)
	if !ok {
		c.sendError(connID, apperr.KindPeerGone, "peer not found")
		return
	}

	answer, err := p.SetRemoteDescription(msg.SDP, webrtc.NewSDPType(msg.SDPType))
	if err != nil {
		c.sendError(connID, apperr.KindBadSdp, err.Error())
		return
	}
	if answer != nil {
		c.sendToConn(connID, sdpMsg{Type: "sdp", SDP: answer.SDP, SDPType: answer.Type.String()})
	}
}

func (c *Controller) handleICE(id peer.ID, msg inbound) {
	p, ok := c.peers.Find(id)
	if !ok {
		return
	}
	p.AddICECandidate(msg.Candidate, msg.Mid)
}

func (c *Controller) requirePeerIsHost(id peer.ID) (*room.Room, bool) {
	r, ok := c.rooms.FindByPeer(string(id))
	if !ok || !r.IsHost(string(id)) {
		return nil, false
	}
	return r, true
}

func (c *Controller) handleSetGuestKeyboard(id peer.ID, msg inbound) {
	r, ok := c.requirePeerIsHost(id)
	if !ok {
		return
	}
	if err := r.SetKeyboardAccess(msg.PeerID, msg.Enabled); err != nil {
		return
	}
	c.notifyPermissionChange(r, msg.PeerID)
}

func (c *Controller) handleSetGuestMouse(id peer.ID, msg inbound) {
	r, ok := c.requirePeerIsHost(id)
	if !ok {
		return
	}
	if err := r.SetMouseAccess(msg.PeerID, msg.Enabled); err != nil {
		return
	}
	c.notifyPermissionChange(r, msg.PeerID)
}

func (c *Controller) notifyPermissionChange(r *room.Room, targetPeerID string) {
	p, ok := r.GetPlayer(targetPeerID)
	if !ok {
		return
	}
	c.send(peer.ID(targetPeerID), permissionChangedMsg{
		Type:     "permission_changed",
		PeerID:   targetPeerID,
		Keyboard: p.CanUseKeyboard,
		Mouse:    p.CanUseMouse,
	})
	c.broadcastRoomUpdated(r)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (c *Controller) handleSetQuality(connID wstransport.ConnID, id peer.ID, msg inbound) {
	if _, ok := c.requirePeerIsHost(id); !ok {
		c.sendError(connID, apperr.KindNotHost, "only the host may set quality")
		return
	}

	bitrate := clampInt(msg.Bitrate, minBitrateKbps, maxBitrateKbps)
	framerate := clampInt(msg.Framerate, minFramerate, maxFramerate)
	width := clampInt(msg.Width, minWidth, maxWidth)
	height := clampInt(msg.Height, minHeight, maxHeight)

	if c.encoder != nil {
		c.encoder.SetQuality(bitrate, framerate, width, height)
	}

	c.sendToConn(connID, qualityUpdatedMsg{
		Type:      "quality_updated",
		Bitrate:   bitrate,
		Framerate: framerate,
		Width:     width,
		Height:    height,
	})
}
