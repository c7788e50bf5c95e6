package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kerastion/trioflow/orchestrator"
	"github.com/Kerastion/trioflow/types"
)

func stepView(turn int) orchestrator.StepView {
	return orchestrator.StepView{
		SessionID: "hub-test",
		Turn:      turn,
		Utterance: types.Utterance{
			Role: types.RoleInitiator,
			Text: fmt.Sprintf("turn %d", turn),
		},
	}
}

func TestHub_DeliversViewsToClient(t *testing.T) {
	hub := NewHub(8, zap.NewNop())
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	hub.OnStep(stepView(0))
	hub.OnStep(stepView(1))

	for want := 0; want < 2; want++ {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)

		var view orchestrator.StepView
		require.NoError(t, json.Unmarshal(data, &view))
		assert.Equal(t, "hub-test", view.SessionID)
		assert.Equal(t, want, view.Turn)
	}
}

func TestHub_ClientGoneIsUnregistered(t *testing.T) {
	hub := NewHub(8, zap.NewNop())
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)

	// broadcasting to nobody is a no-op
	hub.OnStep(stepView(3))
}

func TestHubClient_DropsOldestWhenFull(t *testing.T) {
	c := newHubClient(2)

	assert.False(t, c.push([]byte("a")))
	assert.False(t, c.push([]byte("b")))
	assert.True(t, c.push([]byte("c")))

	got, ok := c.pop()
	require.True(t, ok)
	assert.Equal(t, "b", string(got))

	got, ok = c.pop()
	require.True(t, ok)
	assert.Equal(t, "c", string(got))

	_, ok = c.pop()
	assert.False(t, ok)
}

func TestHub_OnStepNeverBlocksOnSlowClient(t *testing.T) {
	hub := NewHub(2, zap.NewNop())

	// a client nobody drains
	c := newHubClient(2)
	hub.register(c)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.OnStep(stepView(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}
