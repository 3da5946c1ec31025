// Package widget is the conversation controller: it binds the surface to the
// chatbot endpoint and enforces the one-request-in-flight rule.
package widget

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/stravella/chatwidget/internal/chatapi"
	"github.com/stravella/chatwidget/internal/surface"
	"github.com/stravella/chatwidget/internal/widgetconfig"
)

// StillListeningMessage replaces a blank reply.
const StillListeningMessage = "I'm still listening. Could you tell me a little more?"

var (
	// ErrBusy is returned by Submit while an exchange is in flight.
	ErrBusy         = errors.New("an exchange is already in flight")
	ErrNoSuchAction = errors.New("no such quick action")
)

// Observer receives the outcome of every exchange.
type Observer interface {
	ObserveExchange(kind chatapi.Kind, elapsed time.Duration)
}

// Deps is everything New needs to mount a widget.
type Deps struct {
	Config   widgetconfig.Config
	ThreadID string
	// Document is the page to mount into; nil means a fresh empty page.
	Document *surface.Document
	Client   chatapi.Sender
	Logger   zerolog.Logger
	Observer Observer
}

// Widget is one mounted chat widget. All methods are safe for concurrent
// use; the exchange itself runs without holding the lock so a second submit
// sees the widget as busy instead of queueing behind it.
type Widget struct {
	cfg      widgetconfig.Config
	threadID string
	client   chatapi.Sender
	log      zerolog.Logger
	observer Observer

	mu         sync.Mutex
	els        *surface.Elements
	open       bool
	greeted    bool
	sending    bool
	menuHidden bool
	transcript []surface.Message
}

// New ensures the surface exists, applies the config and puts the widget in
// its initial state: panel hidden, launcher shown, send enabled.
func New(d Deps) (*Widget, error) {
	if d.Client == nil {
		return nil, errors.New("widget: nil chat client")
	}
	doc := d.Document
	if doc == nil {
		doc = surface.NewDocument()
	}

	els, err := surface.Ensure(doc)
	if err != nil {
		return nil, errors.Wrap(err, "mounting widget")
	}
	els.ApplyConfig(d.Config)
	els.HidePanel()
	els.SetSendEnabled(true)

	return &Widget{
		cfg:      d.Config,
		threadID: d.ThreadID,
		client:   d.Client,
		observer: d.Observer,
		log: d.Logger.With().
			Str("component", "widget").
			Str("client_id", d.Config.ClientID).
			Str("pack_id", d.Config.PackID).
			Str("thread_id", d.ThreadID).
			Logger(),
		els:        els,
		transcript: els.Messages(),
	}, nil
}

func (w *Widget) Config() widgetconfig.Config { return w.cfg }

func (w *Widget) ThreadID() string { return w.threadID }

// Open shows the panel, hides the launcher and focuses the input. The first
// open appends the greeting.
func (w *Widget) Open() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.els.ShowPanel()
	w.els.FocusInput()
	w.open = true
	if !w.greeted {
		w.greeted = true
		w.appendLocked(surface.Message{Text: w.cfg.GreetingMessage, Sender: surface.SenderBot})
	}
}

func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.els.HidePanel()
	w.open = false
}

// SetInput replaces the input's text, as typing would.
func (w *Widget) SetInput(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.els.SetInputValue(text)
}

// SelectQuickAction prefills the input with the action's text and focuses
// it. It does not submit.
func (w *Widget) SelectQuickAction(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, prefill, ok := w.els.QuickAction(index)
	if !ok {
		return errors.Wrapf(ErrNoSuchAction, "index %d", index)
	}
	w.els.SetInputValue(prefill)
	w.els.FocusInput()
	w.hideMenuLocked()
	return nil
}

// Submit sends the input's text. Blank input, or a closed panel, is a no-op.
// While an exchange is in flight it returns ErrBusy and changes nothing.
// A failed exchange is not an error for the caller: the configured error
// message is shown as the bot's reply.
func (w *Widget) Submit(ctx context.Context) error {
	req, ok, err := w.beginExchange()
	if err != nil || !ok {
		return err
	}
	w.exchange(ctx, req)
	return nil
}

// SubmitAsync is Submit with the exchange run in the background. When it
// returns the user's message is already shown and the send control
// disabled. done is closed once the reply (or error message) is shown.
func (w *Widget) SubmitAsync(ctx context.Context) (done <-chan struct{}, err error) {
	req, ok, err := w.beginExchange()
	if err != nil {
		return nil, err
	}
	ch := make(chan struct{})
	if !ok {
		close(ch)
		return ch, nil
	}
	go func() {
		defer close(ch)
		w.exchange(ctx, req)
	}()
	return ch, nil
}

// beginExchange moves the widget into Sending. ok is false when there is
// nothing to send.
func (w *Widget) beginExchange() (req chatapi.Request, ok bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sending {
		return req, false, ErrBusy
	}
	if !w.open {
		w.log.Debug().Msg("submit ignored, panel closed")
		return req, false, nil
	}
	text := strings.TrimSpace(w.els.InputValue())
	if text == "" {
		return req, false, nil
	}

	w.hideMenuLocked()
	w.appendLocked(surface.Message{Text: text, Sender: surface.SenderUser})
	w.els.SetInputValue("")
	w.els.SetSendEnabled(false)
	w.sending = true
	return chatapi.Request{
		Message:  text,
		ThreadID: w.threadID,
		ClientID: w.cfg.ClientID,
		PackID:   w.cfg.PackID,
		Channel:  chatapi.ChannelChat,
	}, true, nil
}

// exchange runs without the lock so a concurrent submit sees the widget
// as busy.
func (w *Widget) exchange(ctx context.Context, req chatapi.Request) {
	start := time.Now()
	resp, err := w.client.Send(ctx, req)
	elapsed := time.Since(start)
	kind := chatapi.Classify(err)
	if w.observer != nil {
		w.observer.ObserveExchange(kind, elapsed)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	reply := w.cfg.SystemErrorMessage
	switch {
	case err != nil:
		w.log.Warn().Err(err).Str("kind", string(kind)).Dur("elapsed", elapsed).Msg("chat exchange failed")
	case resp == nil || strings.TrimSpace(resp.Reply) == "":
		reply = StillListeningMessage
	default:
		reply = resp.Reply
		w.log.Debug().Dur("elapsed", elapsed).Msg("chat exchange done")
	}
	w.appendLocked(surface.Message{Text: reply, Sender: surface.SenderBot})
	w.sending = false
	w.els.SetSendEnabled(true)
}

// HandleKey submits on Enter pressed without a modifier.
func (w *Widget) HandleKey(ctx context.Context, key string, mods Modifiers) error {
	if !isSendKey(key, mods) {
		return nil
	}
	return w.Submit(ctx)
}

func isSendKey(key string, mods Modifiers) bool {
	return key == "Enter" && !mods.Any()
}

func (w *Widget) hideMenuLocked() {
	if w.menuHidden {
		return
	}
	w.menuHidden = true
	w.els.HideQuickActions()
}

func (w *Widget) appendLocked(msg surface.Message) {
	w.els.AppendMessage(msg)
	w.transcript = append(w.transcript, msg)
}

// Transcript returns the messages shown so far, oldest first.
func (w *Widget) Transcript() []surface.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]surface.Message, len(w.transcript))
	copy(out, w.transcript)
	return out
}

// Render writes the widget's markup (the root element and its subtree).
func (w *Widget) Render(out io.Writer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return surface.RenderElement(out, w.els.Root)
}

// RenderPage writes the whole document the widget is mounted in.
func (w *Widget) RenderPage(out io.Writer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.els.Document().Render(out)
}
