package inputrouter

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamfab/gamestream-sfu/internal/room"
	"github.com/streamfab/gamestream-sfu/internal/sysinput"
)

type fakeLookup struct {
	rooms map[string]*room.Room
}

func (f *fakeLookup) FindByPeer(peerID string) (*room.Room, bool) {
	r, ok := f.rooms[peerID]
	return r, ok
}

type recordingFacade struct {
	sysinput.NoOp
	gamepadCalls    int
	lastSlot        int
	lastState       sysinput.GamepadState
	keyboardCalls   int
	lastKeyCode     uint16
	lastRelease     bool
	mouseMoveCalls  int
	lastAbsolute    bool
}

func (f *recordingFacade) Gamepad(slot int, state sysinput.GamepadState) {
	f.gamepadCalls++
	f.lastSlot = slot
	f.lastState = state
}

func (f *recordingFacade) Keyboard(keyCode uint16, release bool) {
	f.keyboardCalls++
	f.lastKeyCode = keyCode
	f.lastRelease = release
}

func (f *recordingFacade) MouseMoveAbsolute(x, y uint16) { f.mouseMoveCalls++; f.lastAbsolute = true }
func (f *recordingFacade) MouseMoveRelative(dx, dy int16) { f.mouseMoveCalls++; f.lastAbsolute = false }

func newTestRouter(t *testing.T, peerID string, r *room.Room, facade sysinput.Facade) *Router {
	t.Helper()
	lookup := &fakeLookup{rooms: map[string]*room.Room{peerID: r}}
	return New(lookup, facade, zerolog.Nop())
}

func TestRoute_KeyboardDroppedWhenPermissionRevoked(t *testing.T) {
	r := room.New("STREAM", "peer_1", "Alice")
	require.NoError(t, r.AddSpectator("peer_2", "Bob"))
	require.NoError(t, r.SetKeyboardAccess("peer_2", false))

	facade := &recordingFacade{}
	router := newTestRouter(t, "peer_2", r, facade)

	frame := []byte{TagKeyboard, 0x41, 0x00, 0x00, 0x01}
	router.Route("peer_2", frame)

	assert.Equal(t, 0, facade.keyboardCalls)
}

func TestRoute_KeyboardForwardedWithReleaseInverted(t *testing.T) {
	r := room.New("STREAM", "peer_1", "Alice")
	facade := &recordingFacade{}
	router := newTestRouter(t, "peer_1", r, facade)

	// key_code=0x0041, modifiers=0, pressed=1 -> release should be false
	frame := []byte{TagKeyboard, 0x41, 0x00, 0x00, 0x01}
	router.Route("peer_1", frame)

	require.Equal(t, 1, facade.keyboardCalls)
	assert.Equal(t, uint16(0x0041), facade.lastKeyCode)
	assert.False(t, facade.lastRelease)
}

func TestRoute_GamepadAutoClaimsSlotOnFirstEvent(t *testing.T) {
	r := room.New("STREAM", "peer_1", "Alice")
	facade := &recordingFacade{}
	router := newTestRouter(t, "peer_1", r, facade)

	frame := make([]byte, 14)
	frame[0] = TagGamepadState
	frame[1] = 0 // gamepad_id
	router.Route("peer_1", frame)

	require.Equal(t, 1, facade.gamepadCalls)
	assert.Equal(t, 0, facade.lastSlot)
}

func TestRoute_GamepadDroppedForSpectator(t *testing.T) {
	r := room.New("STREAM", "peer_1", "Alice")
	require.NoError(t, r.AddSpectator("peer_2", "Bob"))
	facade := &recordingFacade{}
	router := newTestRouter(t, "peer_2", r, facade)

	frame := make([]byte, 14)
	frame[0] = TagGamepadState
	router.Route("peer_2", frame)

	assert.Equal(t, 0, facade.gamepadCalls)
}

func TestRoute_UndersizedFrameDropped(t *testing.T) {
	r := room.New("STREAM", "peer_1", "Alice")
	facade := &recordingFacade{}
	router := newTestRouter(t, "peer_1", r, facade)

	router.Route("peer_1", []byte{TagKeyboard, 0x01})
	assert.Equal(t, 0, facade.keyboardCalls)
}

func TestRoute_RumbleTagNeverAccepted(t *testing.T) {
	r := room.New("STREAM", "peer_1", "Alice")
	facade := &recordingFacade{}
	router := newTestRouter(t, "peer_1", r, facade)

	router.Route("peer_1", []byte{TagGamepadRumble, 0, 0, 0, 0, 0, 0, 0})
	assert.Equal(t, 0, facade.gamepadCalls)
}

func TestRoute_PeerNotInAnyRoomDropped(t *testing.T) {
	lookup := &fakeLookup{rooms: map[string]*room.Room{}}
	facade := &recordingFacade{}
	router := New(lookup, facade, zerolog.Nop())

	router.Route("peer_9", []byte{TagKeyboard, 0x01, 0x00, 0x00, 0x01})
	assert.Equal(t, 0, facade.keyboardCalls)
}
