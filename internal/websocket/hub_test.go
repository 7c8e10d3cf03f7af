package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tahcohcat/meechain/internal/auth"
	"github.com/tahcohcat/meechain/internal/models"
	"github.com/tahcohcat/meechain/internal/progress"
)

func asPlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("player")
		if id != "" {
			r = r.WithContext(auth.WithPlayer(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func startHub(t *testing.T, snapshot SnapshotFunc) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(snapshot)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(asPlayer(hub))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hub.done
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, player string) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?player=" + player
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *gws.Conn) progress.Update {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env struct {
		Type string          `json:"type"`
		Data progress.Update `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "state", env.Type)
	return env.Data
}

func TestInitialSnapshotIsSent(t *testing.T) {
	_, srv := startHub(t, func(ctx context.Context, playerID string) (progress.Update, error) {
		return progress.Update{State: models.PlayerState{PlayerID: playerID, Progress: models.ProgressSnapshot{BotsMinted: 7}}}, nil
	})

	conn := dial(t, srv, "0xa")
	u := readEnvelope(t, conn)
	assert.Equal(t, "0xa", u.State.PlayerID)
	assert.Equal(t, 7, u.State.Progress.BotsMinted)
}

func TestUpdatesOnlyReachTheirPlayer(t *testing.T) {
	hub, srv := startHub(t, func(ctx context.Context, playerID string) (progress.Update, error) {
		return progress.Update{State: models.PlayerState{PlayerID: playerID}}, nil
	})

	a := dial(t, srv, "0xa")
	b := dial(t, srv, "0xb")
	// the snapshot is only written once the client is registered
	readEnvelope(t, a)
	readEnvelope(t, b)

	hub.StateChanged(progress.Update{State: models.PlayerState{PlayerID: "0xa", Progress: models.ProgressSnapshot{BotsMinted: 1}}})
	hub.StateChanged(progress.Update{State: models.PlayerState{PlayerID: "0xb", Progress: models.ProgressSnapshot{PersonasCreated: 1}}})

	u := readEnvelope(t, a)
	assert.Equal(t, "0xa", u.State.PlayerID)
	assert.Equal(t, 1, u.State.Progress.BotsMinted)

	u = readEnvelope(t, b)
	assert.Equal(t, "0xb", u.State.PlayerID)
	assert.Equal(t, 1, u.State.Progress.PersonasCreated)
}

func TestRejectsAnonymous(t *testing.T) {
	_, srv := startHub(t, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := gws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
