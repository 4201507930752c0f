package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/catcher/pkg/event"
)

func testEvent() *event.ErrorEvent {
	return &event.ErrorEvent{
		ID:        event.NewID(),
		Type:      event.TypeBrowser,
		Tag:       event.TagJavascript,
		Message:   "boom",
		GroupHash: event.GroupHash("boom"),
		Time:      1528101883,
	}
}

func TestSendPostsPayload(t *testing.T) {
	var got Payload
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	d := NewDispatcher(Config{
		Enabled:  true,
		Webhooks: map[string][]string{"p1": {srv.URL}},
	})

	ev := testEvent()
	err := d.Send(context.Background(), &event.Project{ID: "p1", Name: "demo"}, ev)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "p1", got.ProjectID)
	assert.Equal(t, "demo", got.ProjectName)
	require.NotNil(t, got.Event)
	assert.Equal(t, ev.Message, got.Event.Message)
	assert.Equal(t, ev.GroupHash, got.Event.GroupHash)
}

func TestSendFansOutToAllHooks(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	d := NewDispatcher(Config{
		Enabled:  true,
		Webhooks: map[string][]string{"p1": {srv.URL + "/a", srv.URL + "/b"}},
	})

	err := d.Send(context.Background(), &event.Project{ID: "p1"}, testEvent())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSendReportsHookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcher(Config{
		Enabled:  true,
		Webhooks: map[string][]string{"p1": {srv.URL}},
	})

	err := d.Send(context.Background(), &event.Project{ID: "p1"}, testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestSendPartialFailureStillDeliversRest(t *testing.T) {
	var ok int32
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ok, 1)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	d := NewDispatcher(Config{
		Enabled:  true,
		Webhooks: map[string][]string{"p1": {bad.URL, good.URL}},
	})

	err := d.Send(context.Background(), &event.Project{ID: "p1"}, testEvent())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ok))
}

func TestSendDisabledSkipsDelivery(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	d := NewDispatcher(Config{
		Enabled:  false,
		Webhooks: map[string][]string{"p1": {srv.URL}},
	})

	err := d.Send(context.Background(), &event.Project{ID: "p1"}, testEvent())
	require.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSendNoHooksFallsBackToLog(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true})
	err := d.Send(context.Background(), &event.Project{ID: "p1"}, testEvent())
	require.NoError(t, err)
}

func TestSendRateLimited(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	// Burst of 20 at the default limit; the 21st is dropped, not errored.
	d := NewDispatcher(Config{
		Enabled:  true,
		Webhooks: map[string][]string{"p1": {srv.URL}},
	})

	project := &event.Project{ID: "p1"}
	for i := 0; i < defaultRateBurst+5; i++ {
		require.NoError(t, d.Send(context.Background(), project, testEvent()))
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(defaultRateBurst+2))
}

func TestSetWebhooks(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	d := NewDispatcher(Config{Enabled: true})
	d.SetWebhooks("p1", []string{srv.URL})

	require.NoError(t, d.Send(context.Background(), &event.Project{ID: "p1"}, testEvent()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
