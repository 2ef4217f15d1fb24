package signaling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/streamfab/gamestream-sfu/internal/inputrouter"
	"github.com/streamfab/gamestream-sfu/internal/peer"
	"github.com/streamfab/gamestream-sfu/internal/room"
	"github.com/streamfab/gamestream-sfu/internal/rtpcodec"
	"github.com/streamfab/gamestream-sfu/internal/sysinput"
)

// fakeCapture records StartCapture/StopCapture calls for assertions.
type fakeCapture struct {
	starts, stops int
}

func (f *fakeCapture) StartCapture() { f.starts++ }
func (f *fakeCapture) StopCapture()  { f.stops++ }

func newTestServer(t *testing.T) (*Controller, *httptest.Server) {
	c, srv, _ := newTestServerWithCapture(t)
	return c, srv
}

func newTestServerWithCapture(t *testing.T) (*Controller, *httptest.Server, *fakeCapture) {
	t.Helper()
	rooms := room.NewRegistry(zerolog.Nop())
	peers := peer.NewRegistry(nil)
	router := inputrouter.New(rooms, sysinput.NoOp{}, zerolog.Nop())
	capture := &fakeCapture{}

	c := New(Params{
		Peers:      peers,
		Rooms:      rooms,
		Router:     router,
		API:        webrtc.NewAPI(),
		VideoCodec: func() rtpcodec.VideoCodec { return rtpcodec.CodecH264 },
		Logger:     zerolog.Nop(),
		MaxPlayers: 4,
		Capture:    capture,
	})

	srv := httptest.NewServer(http.HandlerFunc(c.ServeHTTP))
	t.Cleanup(srv.Close)
	return c, srv, capture
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, msg any) {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, b))
}

// readType reads messages until one with the given "type" field
// arrives, skipping unrelated traffic like ICE-candidate trickle.
func readType(t *testing.T, ws *websocket.Conn, wantType string) map[string]any {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)

		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		if m["type"] == wantType {
			return m
		}
	}
}

func TestController_HostJoinCreatesRoom(t *testing.T) {
	_, srv := newTestServer(t)
	ws := dial(t, srv)

	send(t, ws, map[string]any{"type": "join", "player_name": "Alice"})

	msg := readType(t, ws, "room_created")
	require.Equal(t, float64(1), msg["player_slot"])
	require.Equal(t, true, msg["is_host"])
}

func TestController_SecondJoinerIsSpectator(t *testing.T) {
	_, srv := newTestServer(t)
	host := dial(t, srv)
	send(t, host, map[string]any{"type": "join", "player_name": "Alice"})
	readType(t, host, "room_created")

	guest := dial(t, srv)
	send(t, guest, map[string]any{"type": "join", "player_name": "Bob"})
	joined := readType(t, guest, "room_joined")
	require.Equal(t, true, joined["is_spectator"])
	require.Equal(t, float64(0), joined["player_slot"])
}

func TestController_ClaimGamepadIsIdempotent(t *testing.T) {
	_, srv := newTestServer(t)
	host := dial(t, srv)
	send(t, host, map[string]any{"type": "join", "player_name": "Alice"})
	readType(t, host, "room_created")

	send(t, host, map[string]any{"type": "claim_gamepad", "gamepad_id": 0})
	first := readType(t, host, "gamepad_claimed")

	send(t, host, map[string]any{"type": "claim_gamepad", "gamepad_id": 0})
	second := readType(t, host, "gamepad_claimed")

	require.Equal(t, first["server_slot"], second["server_slot"])
}

func TestController_HostRevokesGuestKeyboard(t *testing.T) {
	_, srv := newTestServer(t)
	host := dial(t, srv)
	send(t, host, map[string]any{"type": "join", "player_name": "Alice"})
	readType(t, host, "room_created")

	guest := dial(t, srv)
	send(t, guest, map[string]any{"type": "join", "player_name": "Bob"})
	readType(t, guest, "room_joined")

	send(t, host, map[string]any{"type": "set_guest_keyboard", "peer_id": "peer_2", "enabled": false})

	changed := readType(t, guest, "permission_changed")
	require.Equal(t, false, changed["keyboard_enabled"])
}

func TestController_HostDisconnectClosesRoomForGuest(t *testing.T) {
	_, srv := newTestServer(t)
	host := dial(t, srv)
	send(t, host, map[string]any{"type": "join", "player_name": "Alice"})
	readType(t, host, "room_created")

	guest := dial(t, srv)
	send(t, guest, map[string]any{"type": "join", "player_name": "Bob"})
	readType(t, guest, "room_joined")

	require.NoError(t, host.Close())

	closed := readType(t, guest, "room_closed")
	require.Equal(t, "host_left", closed["reason"])
}

func TestController_CaptureStartsOnFirstJoinStopsWhenRoomEmpties(t *testing.T) {
	_, srv, capture := newTestServerWithCapture(t)
	host := dial(t, srv)
	send(t, host, map[string]any{"type": "join", "player_name": "Alice"})
	readType(t, host, "room_created")

	require.Equal(t, 1, capture.starts)
	require.Equal(t, 0, capture.stops)

	require.NoError(t, host.Close())

	require.Eventually(t, func() bool { return capture.stops == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, capture.starts)
}
