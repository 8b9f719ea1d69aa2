package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genstudio/api/internal/model"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h, cancel
}

func subscribe(t *testing.T, h *Hub, taskID string, buffer int) *Client {
	t.Helper()
	c := &Client{TaskID: taskID, Send: make(chan []byte, buffer)}
	require.True(t, h.Register(c))
	return c
}

func receive(t *testing.T, c *Client) ([]byte, bool) {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		return msg, ok
	case <-time.After(time.Second):
		t.Fatalf("no message for %s", c.TaskID)
		return nil, false
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		t.Fatalf("unexpected delivery to %s: %q (open=%v)", c.TaskID, msg, ok)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubFansOutPerTask(t *testing.T) {
	h, _ := startHub(t)
	a1 := subscribe(t, h, "t1", sendBuffer)
	a2 := subscribe(t, h, "t1", sendBuffer)
	b := subscribe(t, h, "t2", sendBuffer)

	h.BroadcastProgress("t1", model.TaskStatusProcessing, 3)

	for _, c := range []*Client{a1, a2} {
		raw, ok := receive(t, c)
		require.True(t, ok)
		var msg model.WSProgressMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, model.WSMessageTypeProgress, msg.Type)
		assert.Equal(t, "t1", msg.TaskID)
		assert.Equal(t, string(model.TaskStatusProcessing), msg.Status)
		assert.Equal(t, 3, msg.Attempt)
	}
	assertSilent(t, b)

	h.BroadcastComplete("t2", []model.Artifact{{URL: "https://cdn.test/a.png"}})
	raw, ok := receive(t, b)
	require.True(t, ok)
	var done model.WSCompleteMessage
	require.NoError(t, json.Unmarshal(raw, &done))
	assert.Equal(t, model.WSMessageTypeComplete, done.Type)
	require.Len(t, done.Result, 1)
	assert.Equal(t, "https://cdn.test/a.png", done.Result[0].URL)

	h.BroadcastError("t1", model.ErrorCodeGenerationFailed, "boom")
	raw, ok = receive(t, a1)
	require.True(t, ok)
	var failed model.WSErrorMessage
	require.NoError(t, json.Unmarshal(raw, &failed))
	assert.Equal(t, model.ErrorCodeGenerationFailed, failed.Error.Code)
	assert.Equal(t, "boom", failed.Error.Message)
}

func TestHubDropsSlowConsumer(t *testing.T) {
	h, _ := startHub(t)
	slow := subscribe(t, h, "t1", 1)
	fast := subscribe(t, h, "t1", sendBuffer)

	h.BroadcastProgress("t1", model.TaskStatusProcessing, 1)
	h.BroadcastProgress("t1", model.TaskStatusProcessing, 2)

	// slow stays unread until both broadcasts have gone out
	for i := 0; i < 2; i++ {
		_, ok := receive(t, fast)
		require.True(t, ok)
	}

	_, ok := receive(t, slow)
	require.True(t, ok)
	_, ok = receive(t, slow)
	assert.False(t, ok, "a full send buffer closes the client")

	// unregistering a dropped client must not close Send twice
	h.Unregister(slow)
	h.BroadcastProgress("t1", model.TaskStatusProcessing, 3)
	_, ok = receive(t, fast)
	assert.True(t, ok)
}

func TestHubUnregister(t *testing.T) {
	h, _ := startHub(t)
	c := subscribe(t, h, "t1", sendBuffer)

	h.Unregister(c)
	_, ok := receive(t, c)
	assert.False(t, ok)

	h.BroadcastProgress("t1", model.TaskStatusProcessing, 1)
	h.Unregister(c)
}

func TestHubShutdownClosesClients(t *testing.T) {
	h, cancel := startHub(t)
	a := subscribe(t, h, "t1", sendBuffer)
	b := subscribe(t, h, "t2", sendBuffer)

	cancel()
	for _, c := range []*Client{a, b} {
		_, ok := receive(t, c)
		assert.False(t, ok)
	}

	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	late := &Client{TaskID: "t1", Send: make(chan []byte, 1)}
	assert.False(t, h.Register(late))
	h.Unregister(a)
}
