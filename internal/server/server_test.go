package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stravella/chatwidget/internal/chatapi"
	"github.com/stravella/chatwidget/internal/identity"
	"github.com/stravella/chatwidget/internal/metrics"
	"github.com/stravella/chatwidget/internal/session"
	"github.com/stravella/chatwidget/internal/surface"
	"github.com/stravella/chatwidget/internal/widget"
	"github.com/stravella/chatwidget/internal/widgetconfig"
)

type gatedSender struct {
	gate chan struct{}
}

func (s *gatedSender) Send(ctx context.Context, req chatapi.Request) (*chatapi.Response, error) {
	if s.gate != nil {
		<-s.gate
	}
	return &chatapi.Response{Reply: "Hello"}, nil
}

type fixture struct {
	handler  http.Handler
	sessions *session.Manager
}

func newFixture(t *testing.T, sender chatapi.Sender) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	storage := identity.NewMemoryStorage()

	sessions := session.NewManager(func(visitorID string, page ...widgetconfig.Overrides) (*widget.Widget, error) {
		sources := append([]widgetconfig.Overrides{{ClientID: "acme"}}, page...)
		return widget.Mount(widget.MountOptions{
			Sources:          sources,
			Storage:          storage,
			Client:           sender,
			Logger:           zerolog.Nop(),
			ExchangeObserver: m,
			IdentityObserver: m,
		})
	}).WithGauge(m)

	srv := New(Options{Sessions: sessions, Gatherer: reg, Logger: zerolog.Nop()})
	return &fixture{handler: srv.Router(), sessions: sessions}
}

func (f *fixture) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func visitorCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == VisitorCookieName {
			return c
		}
	}
	t.Fatal("no visitor cookie set")
	return nil
}

func decodeEvent(t *testing.T, rec *httptest.ResponseRecorder) eventResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp eventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// state fetches /widget/state without failing the test, for polling.
func (f *fixture) state(cookie *http.Cookie) (eventResponse, bool) {
	req := httptest.NewRequest(http.MethodGet, "/widget/state", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var resp eventResponse
	if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &resp) != nil {
		return resp, false
	}
	return resp, true
}

func TestHealth(t *testing.T) {
	f := newFixture(t, &gatedSender{})
	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestPageLoad(t *testing.T) {
	f := newFixture(t, &gatedSender{})

	rec := f.do(t, http.MethodGet, "/?data-business-name=Acme+Plumbing", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := visitorCookie(t, rec)
	assert.True(t, isValidVisitorID(cookie.Value))

	body := rec.Body.String()
	assert.Contains(t, body, "<title>Acme Plumbing</title>")
	assert.Equal(t, 1, strings.Count(body, `id="`+surface.LauncherID+`"`))
	assert.Equal(t, 1, strings.Count(body, `id="`+surface.RootID+`"`))

	w, err := f.sessions.Lookup(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "acme", w.Config().ClientID)
	assert.True(t, identity.ValidThreadID(w.ThreadID()))
}

func TestPageLoadKeepsVisitorAndThread(t *testing.T) {
	f := newFixture(t, &gatedSender{})

	rec := f.do(t, http.MethodGet, "/", "", nil)
	cookie := visitorCookie(t, rec)
	first, err := f.sessions.Lookup(cookie.Value)
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/", "", cookie)
	assert.Equal(t, cookie.Value, visitorCookie(t, rec).Value)
	second, err := f.sessions.Lookup(cookie.Value)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, first.ThreadID(), second.ThreadID())
}

func TestEventsConversation(t *testing.T) {
	f := newFixture(t, &gatedSender{})
	cookie := visitorCookie(t, f.do(t, http.MethodGet, "/", "", nil))

	resp := decodeEvent(t, f.do(t, http.MethodPost, "/widget/events", `{"kind":"open"}`, cookie))
	assert.True(t, resp.State.Open)
	require.Len(t, resp.State.Messages, 1)
	assert.Contains(t, resp.HTML, `class="message bot"`)

	resp = decodeEvent(t, f.do(t, http.MethodPost, "/widget/events", `{"kind":"key","key":"Enter","text":"Hi"}`, cookie))
	assert.Equal(t, surface.Message{Text: "Hi", Sender: surface.SenderUser}, resp.State.Messages[1])

	require.Eventually(t, func() bool {
		var ok bool
		resp, ok = f.state(cookie)
		return ok && !resp.State.Sending
	}, time.Second, 5*time.Millisecond)
	require.Len(t, resp.State.Messages, 3)
	assert.Equal(t, surface.Message{Text: "Hello", Sender: surface.SenderBot}, resp.State.Messages[2])

	rec := f.do(t, http.MethodGet, "/widget", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ">Hello</div>")

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `stravella_widget_exchanges_total{outcome="ok"} 1`)
}

func TestEventsShiftEnterDoesNotSend(t *testing.T) {
	f := newFixture(t, &gatedSender{})
	cookie := visitorCookie(t, f.do(t, http.MethodGet, "/", "", nil))
	decodeEvent(t, f.do(t, http.MethodPost, "/widget/events", `{"kind":"open"}`, cookie))

	resp := decodeEvent(t, f.do(t, http.MethodPost, "/widget/events",
		`{"kind":"key","key":"Enter","text":"draft","modifiers":{"shift":true}}`, cookie))
	assert.False(t, resp.State.Sending)
	assert.Equal(t, "draft", resp.State.Input)
	assert.Len(t, resp.State.Messages, 1)
}

func TestEventsRejectBadInput(t *testing.T) {
	f := newFixture(t, &gatedSender{})

	cases := map[string]string{
		"malformed":      `{"kind":`,
		"unknown kind":   `{"kind":"dance"}`,
		"no such action": `{"kind":"quick_action","index":99}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/widget/events", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestEventsShowSendingStateWhileInFlight(t *testing.T) {
	sender := &gatedSender{gate: make(chan struct{})}
	f := newFixture(t, sender)
	cookie := visitorCookie(t, f.do(t, http.MethodGet, "/", "", nil))
	decodeEvent(t, f.do(t, http.MethodPost, "/widget/events", `{"kind":"open"}`, cookie))

	// Answers while the exchange is still blocked on the chatbot.
	resp := decodeEvent(t, f.do(t, http.MethodPost, "/widget/events", `{"kind":"submit","text":"first"}`, cookie))
	assert.True(t, resp.State.Sending)
	require.Len(t, resp.State.Messages, 2)
	assert.Equal(t, surface.Message{Text: "first", Sender: surface.SenderUser}, resp.State.Messages[1])
	assert.Contains(t, resp.HTML, `<div class="message user">first</div>`)
	assert.Contains(t, resp.HTML, `<button id="`+surface.SendID+`" type="button" disabled="">`)

	state := decodeEvent(t, f.do(t, http.MethodGet, "/widget/state", "", cookie))
	assert.True(t, state.State.Sending)
	assert.Contains(t, state.HTML, `disabled=""`)

	rec := f.do(t, http.MethodPost, "/widget/events", `{"kind":"submit","text":"second"}`, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(sender.gate)
	require.Eventually(t, func() bool {
		var ok bool
		state, ok = f.state(cookie)
		return ok && !state.State.Sending
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, state.State.Messages, 3)
	assert.NotContains(t, state.HTML, `disabled=""`)
}
