// Package apperr defines the typed error kinds surfaced back to
// signaling clients and the sentinels checked internally.
package apperr

import "fmt"

// Kind identifies one of the error categories from the signaling
// protocol. The string value is sent verbatim as the `code` field of
// a `{"type":"error"}` message.
type Kind string

const (
	KindBadSdp           Kind = "bad_sdp"
	KindBadIce           Kind = "bad_ice"
	KindRoomFull         Kind = "room_full"
	KindRoomNotFound     Kind = "room_not_found"
	KindNotInRoom        Kind = "not_in_room"
	KindNotHost          Kind = "not_host"
	KindUnknownType      Kind = "unknown_type"
	KindParseError       Kind = "parse_error"
	KindGamepadExhausted Kind = "gamepad_error"
	KindSendDropped      Kind = "send_dropped"
	KindMalformedFrame   Kind = "malformed_frame"
	KindPeerGone         Kind = "peer_gone"
	KindTransport        Kind = "transport_error"
)

// Error is a typed, wrappable error carrying a stable signaling code.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the stable string sent as the signaling error code.
func (e *Error) Code() string { return string(e.kind) }

// Is lets errors.Is(err, apperr.New(KindX, "")) match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == t.kind
}

// Kind of a convenience sentinel for errors.Is comparisons, e.g.
// errors.Is(err, apperr.RoomFull).
var (
	RoomFull         = New(KindRoomFull, "")
	RoomNotFound     = New(KindRoomNotFound, "")
	NotInRoom        = New(KindNotInRoom, "")
	NotHost          = New(KindNotHost, "")
	UnknownType      = New(KindUnknownType, "")
	ParseError       = New(KindParseError, "")
	GamepadExhausted = New(KindGamepadExhausted, "")
	BadSdp           = New(KindBadSdp, "")
	BadIce           = New(KindBadIce, "")
	PeerGone         = New(KindPeerGone, "")
)
