// Package inputrouter decodes binary input frames received on a
// peer's "input" data channel, enforces the permissions carried by
// the peer's room, and forwards the decoded event to the system-input
// facade (spec.md §4.6).
//
// Grounded on spec.md §4.6/§6's tagged-union layout and
// original_source/src/input.h's keyboard/mouse_move_rel/mouse_move_abs/
// mouse_button/mouse_scroll free functions, reshaped per spec.md §9's
// "model input event types as a tagged sum with a decode function"
// substitution.
package inputrouter

import (
	"encoding/binary"

	"github.com/rs/zerolog"

	"github.com/streamfab/gamestream-sfu/internal/room"
	"github.com/streamfab/gamestream-sfu/internal/sysinput"
)

// Frame tags (spec.md §6).
const (
	TagGamepadState  byte = 0x01
	TagGamepadRumble byte = 0x02
	TagKeyboard      byte = 0x10
	TagMouseMove     byte = 0x20
	TagMouseButton   byte = 0x21
	TagMouseScroll   byte = 0x22
)

// RoomLookup resolves the room a peer belongs to, so the router never
// depends on the full room registry or signaling state directly.
type RoomLookup interface {
	FindByPeer(peerID string) (*room.Room, bool)
}

// Router parses and permission-checks input frames, then dispatches to
// a sysinput.Facade.
type Router struct {
	rooms  RoomLookup
	facade sysinput.Facade
	logger zerolog.Logger
}

func New(rooms RoomLookup, facade sysinput.Facade, logger zerolog.Logger) *Router {
	return &Router{rooms: rooms, facade: facade, logger: logger}
}

// Route decodes one frame received from peerID on the "input" data
// channel. Malformed, permission-denied, or peer-not-in-room frames
// are dropped silently (undersized frames log a warning), matching
// spec.md §4.6.
func (r *Router) Route(peerID string, frame []byte) {
	if len(frame) == 0 {
		return
	}

	rm, ok := r.rooms.FindByPeer(peerID)
	if !ok {
		return
	}

	tag := frame[0]
	body := frame[1:]

	switch tag {
	case TagGamepadState:
		r.routeGamepad(rm, peerID, body)
	case TagGamepadRumble:
		// server->client only; never accepted from a peer.
	case TagKeyboard:
		r.routeKeyboard(rm, peerID, body)
	case TagMouseMove:
		r.routeMouseMove(rm, peerID, body)
	case TagMouseButton:
		r.routeMouseButton(rm, peerID, body)
	case TagMouseScroll:
		r.routeMouseScroll(rm, peerID, body)
	default:
		r.logger.Warn().Str("peer_id", peerID).Uint8("tag", tag).Msg("unknown input frame tag")
	}
}

func (r *Router) undersized(peerID string, tag byte, want, got int) {
	r.logger.Warn().
		Str("peer_id", peerID).
		Uint8("tag", tag).
		Int("want_bytes", want).
		Int("got_bytes", got).
		Msg("undersized input frame")
}

// routeGamepad decodes a 13-byte GamepadState payload. The server
// slot is auto-claimed on the gamepad's first event.
func (r *Router) routeGamepad(rm *room.Room, peerID string, body []byte) {
	const size = 13
	if len(body) < size {
		r.undersized(peerID, TagGamepadState, size, len(body))
		return
	}
	if rm.IsSpectator(peerID) {
		return
	}

	gamepadID := int(body[0])
	state := sysinput.GamepadState{
		Buttons:      binary.LittleEndian.Uint16(body[1:3]),
		LeftTrigger:  body[3],
		RightTrigger: body[4],
		LeftStickX:   int16(binary.LittleEndian.Uint16(body[5:7])),
		LeftStickY:   int16(binary.LittleEndian.Uint16(body[7:9])),
		RightStickX:  int16(binary.LittleEndian.Uint16(body[9:11])),
		RightStickY:  int16(binary.LittleEndian.Uint16(body[11:13])),
	}

	slot, err := rm.ClaimGamepad(peerID, gamepadID)
	if err != nil {
		return
	}

	r.facade.Gamepad(slot, state)
}

// routeKeyboard decodes a 4-byte KeyboardEvent payload.
func (r *Router) routeKeyboard(rm *room.Room, peerID string, body []byte) {
	const size = 4
	if len(body) < size {
		r.undersized(peerID, TagKeyboard, size, len(body))
		return
	}
	if !rm.CanUseKeyboard(peerID) {
		return
	}

	keyCode := binary.LittleEndian.Uint16(body[0:2])
	pressed := body[3] != 0

	r.facade.Keyboard(keyCode, !pressed)
}

// routeMouseMove decodes a 5-byte MouseMove payload; bit 0 of the
// flags byte selects absolute vs. relative.
func (r *Router) routeMouseMove(rm *room.Room, peerID string, body []byte) {
	const size = 5
	if len(body) < size {
		r.undersized(peerID, TagMouseMove, size, len(body))
		return
	}
	if !rm.CanUseMouse(peerID) {
		return
	}

	absolute := body[0]&0x01 != 0
	a := binary.LittleEndian.Uint16(body[1:3])
	b := binary.LittleEndian.Uint16(body[3:5])

	if absolute {
		r.facade.MouseMoveAbsolute(a, b)
	} else {
		r.facade.MouseMoveRelative(int16(a), int16(b))
	}
}

// routeMouseButton decodes a 2-byte MouseButton payload, mapping the
// browser's 0/1/2 to original_source's 1/2/3 (left/middle/right).
func (r *Router) routeMouseButton(rm *room.Room, peerID string, body []byte) {
	const size = 2
	if len(body) < size {
		r.undersized(peerID, TagMouseButton, size, len(body))
		return
	}
	if !rm.CanUseMouse(peerID) {
		return
	}

	button := body[0] + 1
	pressed := body[1] != 0

	r.facade.MouseButton(button, pressed)
}

// routeMouseScroll decodes a 5-byte MouseScroll payload.
func (r *Router) routeMouseScroll(rm *room.Room, peerID string, body []byte) {
	const size = 5
	if len(body) < size {
		r.undersized(peerID, TagMouseScroll, size, len(body))
		return
	}
	if !rm.CanUseMouse(peerID) {
		return
	}

	dx := int16(binary.LittleEndian.Uint16(body[1:3]))
	dy := int16(binary.LittleEndian.Uint16(body[3:5]))

	if dy != 0 {
		r.facade.MouseScroll(dy, false)
	}
	if dx != 0 {
		r.facade.MouseScroll(dx, true)
	}
}
