package broadcast

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/NotCoffee418/parking_bridge/pkg/parking"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) parking.Snapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var snapshot parking.Snapshot
	require.NoError(t, json.Unmarshal(payload, &snapshot))
	return snapshot
}

func TestHub_SendsCurrentThenChanges(t *testing.T) {
	store := parking.NewStore(3)
	hub := NewHub(store.Snapshot)
	store.OnChange(hub.Broadcast)

	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)

	initial := readSnapshot(t, conn)
	require.Equal(t, 3, initial.AvailableSlots)
	require.Equal(t, "Ready", initial.EntryGate)
	require.False(t, initial.Connected)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	store.Apply(parking.SlotStatusUpdate(2, parking.StatusOccupied))

	changed := readSnapshot(t, conn)
	require.Equal(t, parking.StatusOccupied, changed.Slots[1].Status)
	require.True(t, changed.Connected)
}

func TestHub_DropsClosedSubscribers(t *testing.T) {
	store := parking.NewStore(3)
	hub := NewHub(store.Snapshot)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	readSnapshot(t, conn)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)

	// Broadcasting with no subscribers is a no-op
	hub.Broadcast(store.Snapshot())
}

func TestHub_CloseDisconnectsSubscribers(t *testing.T) {
	store := parking.NewStore(1)
	hub := NewHub(store.Snapshot)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	readSnapshot(t, conn)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.Close()
	require.Equal(t, 0, hub.Count())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
