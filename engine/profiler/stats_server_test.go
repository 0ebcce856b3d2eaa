package profiler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oloengine/olo/engine/renderer/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsServerStreamsSnapshots(t *testing.T) {
	srv, err := NewStatsServer("127.0.0.1:0", func() Snapshot {
		return Snapshot{
			FPS: 60,
			Scenes: []SceneStats{
				NewSceneStats("main", command.Stats{Packets: 12, DrawCalls: 3}),
			},
		}
	})
	require.NoError(t, err)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/stats", nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(payload, &snap))
	assert.Equal(t, float64(60), snap.FPS)
	require.Len(t, snap.Scenes, 1)
	assert.Equal(t, "main", snap.Scenes[0].Name)
	assert.Equal(t, 12, snap.Scenes[0].Packets)
	assert.Equal(t, 3, snap.Scenes[0].DrawCalls)
	// Runtime fields are filled by the server, not the source.
	assert.Greater(t, snap.HeapMB, 0.0)
	assert.Greater(t, snap.Goroutines, 0)
}

func TestStatsServerCloseDisconnectsClients(t *testing.T) {
	srv, err := NewStatsServer("127.0.0.1:0", nil)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/stats", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, srv.Close())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
}

func TestNewSceneStatsCopiesAllCounters(t *testing.T) {
	stats := command.Stats{
		Packets:         10,
		BatchedPackets:  4,
		DrawCalls:       6,
		StateChanges:    2,
		ShaderSwitches:  3,
		TextureSwitches: 5,
	}
	entry := NewSceneStats("overlay", stats)
	assert.Equal(t, "overlay", entry.Name)
	assert.Equal(t, 4, entry.BatchedPackets)
	assert.Equal(t, 2, entry.StateChanges)
	assert.Equal(t, 3, entry.ShaderSwitches)
	assert.Equal(t, 5, entry.TextureSwitches)
}
