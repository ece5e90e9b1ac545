package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rollcall-api/internal/models"
)

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, body *bufio.Reader, out chan<- sseEvent) {
	t.Helper()
	var current sseEvent
	for {
		line, err := body.ReadString('\n')
		if err != nil {
			close(out)
			return
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			current.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			current.data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && current.name != "":
			out <- current
			current = sseEvent{}
		}
	}
}

func nextEvent(t *testing.T, events <-chan sseEvent) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "stream closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return sseEvent{}
	}
}

func TestClassStreamEmitsSnapshotsUntilClientLeaves(t *testing.T) {
	env := newAPIEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+apiPrefix+"/classes/stream", nil)
	require.NoError(t, err)
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := make(chan sseEvent, 4)
	go readEvents(t, bufio.NewReader(resp.Body), events)

	first := nextEvent(t, events)
	assert.Equal(t, eventSnapshot, first.name)
	var payload struct {
		Data []models.ClassOverview `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(first.data), &payload))
	assert.Empty(t, payload.Data)

	env.createClass(t, "9Z")
	second := nextEvent(t, events)
	require.NoError(t, json.Unmarshal([]byte(second.data), &payload))
	require.Len(t, payload.Data, 1)
	assert.Equal(t, "9Z", payload.Data[0].Name)

	cancel()
	require.Eventually(t, func() bool { return env.broker.Subscribers() == 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestScheduleStreamRejectsBadZoneBeforeStreaming(t *testing.T) {
	env := newAPIEnv(t)
	w := env.do(t, http.MethodGet, apiPrefix+"/schedule/stream?tz=Nowhere/City", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, env.broker.Subscribers())
}
