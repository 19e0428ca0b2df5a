package protocol

import (
	"testing"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_ContentChangedWireShape(t *testing.T) {
	frame := Change{Type: domain.KindContentChanged, Changes: []string{"project:1", "skill:go"}, Timestamp: 1700000000000}

	data, err := JSON.Encode(frame)
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"content_changed","changes":["project:1","skill:go"],"timestamp":1700000000000}`, string(data))
}

func TestJSON_SyncStatusWireShape(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	data, err := JSON.Encode(NewSyncStatus(at, 2, ""))
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"sync_status","status":"change_broadcasted","timestamp":1700000000123,"previewClients":2}`, string(data))

	data, err = JSON.Encode(NewSyncStatus(at, 0, "c-7"))
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"sync_status","status":"change_broadcasted","timestamp":1700000000123,"previewClients":0,"origin":"c-7"}`, string(data))
}

func TestJSON_ClientStatsKeepsZeroCounts(t *testing.T) {
	data, err := JSON.Encode(NewClientStats(domain.ClientStats{Total: 1, Admin: 1}))
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"client_stats","total":1,"admin":1,"preview":0,"lastUpdate":0}`, string(data))
}

func TestCodecs_DecodeIntoEnvelope(t *testing.T) {
	established := ConnectionEstablished{
		Type:             domain.KindConnectionEstablished,
		ClientID:         "c-1",
		Role:             domain.RoleAdmin,
		RecentChanges:    []Change{{Type: domain.KindContentChanged, Changes: []string{"x"}, Timestamp: 5}},
		ConnectedClients: 3,
	}

	for _, codec := range []Codec{JSON, Msgpack} {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Encode(established)
			require.NoError(t, err)

			var env Envelope
			require.NoError(t, codec.Decode(data, &env))

			assert.Equal(t, domain.KindConnectionEstablished, env.Type)
			assert.Equal(t, "c-1", env.ClientID)
			assert.Equal(t, domain.RoleAdmin, env.Role)
			assert.Equal(t, 3, env.ConnectedClients)
			require.Len(t, env.RecentChanges, 1)
			assert.Equal(t, []string{"x"}, env.RecentChanges[0].Changes)
		})
	}
}

func TestCodecs_DecodeMalformed(t *testing.T) {
	var env Envelope

	assert.Error(t, JSON.Decode([]byte(`{"type":`), &env))
	assert.Error(t, JSON.Decode([]byte(`"just a string"`), &env))
	assert.Error(t, Msgpack.Decode([]byte{0xc1}, &env))
}

func TestForSubprotocol(t *testing.T) {
	assert.Equal(t, Msgpack, ForSubprotocol(SubprotocolMsgpack))
	assert.Equal(t, JSON, ForSubprotocol(SubprotocolJSON))
	assert.Equal(t, JSON, ForSubprotocol(""))

	assert.Equal(t, websocket.BinaryMessage, Msgpack.FrameType())
	assert.Equal(t, websocket.TextMessage, JSON.FrameType())
}

func TestByName(t *testing.T) {
	c, err := ByName("msgpack")
	require.NoError(t, err)
	assert.Equal(t, Msgpack, c)

	c, err = ByName("")
	require.NoError(t, err)
	assert.Equal(t, JSON, c)

	_, err = ByName("xml")
	assert.Error(t, err)
}

func TestNewChange_CarriesMillisTimestamp(t *testing.T) {
	msg := domain.ChangeMessage{
		Kind:      domain.KindForceRefresh,
		Timestamp: time.UnixMilli(1700000000000),
		Origin:    "c-9",
	}

	frame := NewChange(msg)
	assert.Equal(t, domain.KindForceRefresh, frame.Type)
	assert.Equal(t, int64(1700000000000), frame.Timestamp)
	assert.Equal(t, "c-9", frame.Origin)
	assert.True(t, msg.Timestamp.Equal(FromMillis(frame.Timestamp)))
}
