package widget

import (
	"context"

	"github.com/pkg/errors"

	"github.com/stravella/chatwidget/internal/surface"
)

var ErrUnknownEvent = errors.New("unknown event")

type Modifiers struct {
	Shift bool `json:"shift,omitempty"`
	Ctrl  bool `json:"ctrl,omitempty"`
	Alt   bool `json:"alt,omitempty"`
	Meta  bool `json:"meta,omitempty"`
}

func (m Modifiers) Any() bool { return m.Shift || m.Ctrl || m.Alt || m.Meta }

type EventKind string

const (
	EventOpen        EventKind = "open"
	EventClose       EventKind = "close"
	EventInput       EventKind = "input"
	EventSubmit      EventKind = "submit"
	EventKey         EventKind = "key"
	EventQuickAction EventKind = "quick_action"
)

// Event is a UI interaction forwarded from a front end.
type Event struct {
	Kind      EventKind `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Key       string    `json:"key,omitempty"`
	Modifiers Modifiers `json:"modifiers"`
	Index     int       `json:"index,omitempty"`
}

// Dispatch applies one event. Input events carrying text also set the input
// before a submit or key event is handled.
func (w *Widget) Dispatch(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventOpen:
		w.Open()
	case EventClose:
		w.Close()
	case EventInput:
		w.SetInput(ev.Text)
	case EventSubmit:
		if ev.Text != "" {
			w.SetInput(ev.Text)
		}
		return w.Submit(ctx)
	case EventKey:
		if ev.Text != "" {
			w.SetInput(ev.Text)
		}
		return w.HandleKey(ctx, ev.Key, ev.Modifiers)
	case EventQuickAction:
		return w.SelectQuickAction(ev.Index)
	default:
		return errors.Wrapf(ErrUnknownEvent, "%q", ev.Kind)
	}
	return nil
}

// DispatchAsync is Dispatch with any exchange run in the background; see
// SubmitAsync. Events that do not send return an already closed channel.
func (w *Widget) DispatchAsync(ctx context.Context, ev Event) (done <-chan struct{}, err error) {
	switch ev.Kind {
	case EventSubmit, EventKey:
		if ev.Text != "" {
			w.SetInput(ev.Text)
		}
		if ev.Kind == EventSubmit || isSendKey(ev.Key, ev.Modifiers) {
			return w.SubmitAsync(ctx)
		}
	default:
		if err := w.Dispatch(ctx, ev); err != nil {
			return nil, err
		}
	}
	ch := make(chan struct{})
	close(ch)
	return ch, nil
}

// Snapshot is the widget state a front end needs to redraw.
type Snapshot struct {
	Open                bool              `json:"open"`
	Sending             bool              `json:"sending"`
	ThreadID            string            `json:"thread_id"`
	Title               string            `json:"title"`
	Input               string            `json:"input"`
	InputFocused        bool              `json:"input_focused"`
	QuickActionsVisible bool              `json:"quick_actions_visible"`
	Messages            []surface.Message `json:"messages"`
}

func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	msgs := make([]surface.Message, len(w.transcript))
	copy(msgs, w.transcript)
	return Snapshot{
		Open:                w.open,
		Sending:             w.sending,
		ThreadID:            w.threadID,
		Title:               w.els.TitleText(),
		Input:               w.els.InputValue(),
		InputFocused:        w.els.InputFocused(),
		QuickActionsVisible: w.els.QuickActionsVisible(),
		Messages:            msgs,
	}
}

// SendEnabled reports whether the send control is enabled.
func (w *Widget) SendEnabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.els.SendEnabled()
}

// PanelVisible reports whether the panel is shown.
func (w *Widget) PanelVisible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.els.PanelVisible()
}

// LauncherVisible reports whether the launcher is shown.
func (w *Widget) LauncherVisible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.els.LauncherVisible()
}

// QuickActions lists the labels of the menu buttons.
func (w *Widget) QuickActions() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var labels []string
	for i := range w.els.QuickActionButtons() {
		label, _, _ := w.els.QuickAction(i)
		labels = append(labels, label)
	}
	return labels
}
