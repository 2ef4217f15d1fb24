package runtime

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamfab/gamestream-sfu/internal/config"
	"github.com/streamfab/gamestream-sfu/internal/rtpcodec"
)

func TestNew_WiresEveryComponent(t *testing.T) {
	cfg := config.Load()

	rt, err := New(Params{
		Config:     cfg,
		Logger:     zerolog.Nop(),
		VideoCodec: rtpcodec.CodecH264,
	})
	require.NoError(t, err)

	assert.NotNil(t, rt.PeerRegistry)
	assert.NotNil(t, rt.RoomRegistry)
	assert.NotNil(t, rt.Controller)
	assert.NotNil(t, rt.Metrics)
	assert.NotNil(t, rt.VideoQueue())
	assert.NotNil(t, rt.AudioQueue())
}

func TestBuildICEServers_STUNOnlyByDefault(t *testing.T) {
	cfg := config.Load()
	servers, err := buildICEServers(cfg)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, []string{cfg.STUNServer}, servers[0].URLs)
}

func TestBuildICEServers_AddsTURNWhenConfigured(t *testing.T) {
	cfg := config.Load()
	cfg.TURNServer = "turn:turn.example.com:3478"
	cfg.TURNUser = "user"
	cfg.TURNPass = "pass"

	servers, err := buildICEServers(cfg)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "user", servers[1].Username)
}
