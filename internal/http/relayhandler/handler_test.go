package relayhandler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"roomrelay/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSink struct{}

func (nopSink) Push(relay.Event) bool { return true }
func (nopSink) Close()                {}

func setup(t *testing.T) (*gin.Engine, *relay.Relay) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rl := relay.New()
	eng := gin.New()
	New(rl, func() int64 { return 3 }).Register(eng)
	return eng, rl
}

func get(eng *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	eng.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRoomsAndConnections(t *testing.T) {
	eng, rl := setup(t)
	a := rl.Connect(nopSink{})
	b := rl.Connect(nopSink{})
	require.NoError(t, rl.Join(a, "lobby"))
	require.NoError(t, rl.Join(b, "lobby"))
	require.NoError(t, rl.Join(a, "annex"))

	w := get(eng, "/rooms")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"name":"annex","members":1},{"name":"lobby","members":2}]`, w.Body.String())

	w = get(eng, "/rooms/lobby")
	require.Equal(t, http.StatusOK, w.Code)
	var room RoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.ElementsMatch(t, []relay.ConnID{a, b}, room.Members)

	w = get(eng, "/connections/"+string(a))
	require.Equal(t, http.StatusOK, w.Code)
	var conn ConnectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conn))
	assert.Equal(t, []string{"annex", "lobby"}, conn.Rooms)
}

func TestNotFound(t *testing.T) {
	eng, _ := setup(t)

	assert.Equal(t, http.StatusNotFound, get(eng, "/rooms/ghost").Code)
	assert.Equal(t, http.StatusNotFound, get(eng, "/connections/ghost").Code)
}

func TestStatsAndHealth(t *testing.T) {
	eng, rl := setup(t)
	rl.Connect(nopSink{})

	w := get(eng, "/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var st StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, 1, st.Connections)
	assert.Equal(t, int64(1), st.Delivered)
	assert.Equal(t, int64(3), st.LifecycleDropped)

	w = get(eng, "/healthz")
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
