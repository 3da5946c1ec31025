package surface

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/stravella/chatwidget/internal/widgetconfig"
)

// Fixed element ids. Host pages may pre-supply any of them.
const (
	RootID         = "stravella-widget-root"
	LauncherID     = "chat-button"
	PanelID        = "chat-widget"
	HeaderID       = "chat-header"
	TitleID        = "chat-title"
	CloseID        = "chat-close"
	TrustID        = "chat-trust"
	TrustPhoneID   = "chat-trust-phone"
	TrustAreaID    = "chat-trust-area"
	QuickActionsID = "quick-actions"
	LogID          = "chat-body"
	InputAreaID    = "chat-input-area"
	InputID        = "chat-input"
	SendID         = "chat-send"
)

const menuPrompt = "How can I help today?"

var ErrMissingElements = errors.New("required widget elements missing")

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type Message struct {
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

// blueprint lists every fixed element in creation order; parents come before
// their children.
var blueprint = []struct {
	id     string
	parent string
	tag    atom.Atom
	attrs  []html.Attribute
	text   string
}{
	{id: RootID, tag: atom.Div},
	{id: LauncherID, parent: RootID, tag: atom.Div, attrs: []html.Attribute{{Key: "aria-label", Val: "Open chat"}, {Key: "role", Val: "button"}}, text: "Chat"},
	{id: PanelID, parent: RootID, tag: atom.Div, attrs: []html.Attribute{{Key: "style", Val: "display:none;"}}},
	{id: HeaderID, parent: PanelID, tag: atom.Div},
	{id: TitleID, parent: HeaderID, tag: atom.Span},
	{id: CloseID, parent: HeaderID, tag: atom.Button, attrs: []html.Attribute{{Key: "type", Val: "button"}, {Key: "aria-label", Val: "Close chat"}}, text: "×"},
	{id: TrustID, parent: PanelID, tag: atom.Div},
	{id: TrustPhoneID, parent: TrustID, tag: atom.Div},
	{id: TrustAreaID, parent: TrustID, tag: atom.Div},
	{id: QuickActionsID, parent: PanelID, tag: atom.Div},
	{id: LogID, parent: PanelID, tag: atom.Div, attrs: []html.Attribute{{Key: "role", Val: "log"}, {Key: "aria-live", Val: "polite"}}},
	{id: InputAreaID, parent: PanelID, tag: atom.Div},
	{id: InputID, parent: InputAreaID, tag: atom.Input, attrs: []html.Attribute{{Key: "type", Val: "text"}, {Key: "placeholder", Val: "Type your message..."}}},
	{id: SendID, parent: InputAreaID, tag: atom.Button, attrs: []html.Attribute{{Key: "type", Val: "button"}}, text: "Send"},
}

// Elements are the widget's nodes inside one Document.
type Elements struct {
	doc *Document

	Root         *html.Node
	Launcher     *html.Node
	Panel        *html.Node
	Header       *html.Node
	Title        *html.Node
	Close        *html.Node
	Trust        *html.Node
	TrustPhone   *html.Node
	TrustArea    *html.Node
	QuickActions *html.Node
	Log          *html.Node
	InputArea    *html.Node
	Input        *html.Node
	Send         *html.Node
}

// Ensure locates every fixed element by id and creates the missing ones, so
// calling it again, or on a page that already carries the markup, never
// duplicates structure. It fails with ErrMissingElements when an adopted
// input or send control has the wrong element type.
func Ensure(d *Document) (*Elements, error) {
	body := d.Body()
	if body == nil {
		return nil, errors.Wrap(ErrMissingElements, "document has no body")
	}

	nodes := make(map[string]*html.Node, len(blueprint))
	for _, bp := range blueprint {
		if n := d.ElementByID(bp.id); n != nil {
			nodes[bp.id] = n
			continue
		}

		parent := body
		if bp.parent != "" {
			parent = nodes[bp.parent]
		}
		attrs := append([]html.Attribute{{Key: "id", Val: bp.id}}, bp.attrs...)
		n := newElement(bp.tag, attrs...)
		if bp.text != "" {
			setText(n, bp.text)
		}
		parent.AppendChild(n)
		nodes[bp.id] = n
	}

	els := &Elements{
		doc:          d,
		Root:         nodes[RootID],
		Launcher:     nodes[LauncherID],
		Panel:        nodes[PanelID],
		Header:       nodes[HeaderID],
		Title:        nodes[TitleID],
		Close:        nodes[CloseID],
		Trust:        nodes[TrustID],
		TrustPhone:   nodes[TrustPhoneID],
		TrustArea:    nodes[TrustAreaID],
		QuickActions: nodes[QuickActionsID],
		Log:          nodes[LogID],
		InputArea:    nodes[InputAreaID],
		Input:        nodes[InputID],
		Send:         nodes[SendID],
	}
	if err := els.validate(); err != nil {
		return nil, err
	}
	return els, nil
}

func (e *Elements) validate() error {
	var problems []string
	switch e.Input.DataAtom {
	case atom.Input, atom.Textarea:
	default:
		problems = append(problems, "#"+InputID+" is <"+e.Input.Data+">, want <input> or <textarea>")
	}
	if e.Send.DataAtom != atom.Button {
		problems = append(problems, "#"+SendID+" is <"+e.Send.Data+">, want <button>")
	}
	if len(problems) > 0 {
		return errors.Wrap(ErrMissingElements, strings.Join(problems, "; "))
	}
	return nil
}

func (e *Elements) Document() *Document { return e.doc }

// ApplyConfig writes the config into the header, the trust block and the
// quick-action menu.
func (e *Elements) ApplyConfig(cfg widgetconfig.Config) {
	setText(e.Title, cfg.BusinessName)

	phone := strings.TrimSpace(cfg.DisplayPhone)
	area := strings.TrimSpace(cfg.ServiceAreaText)
	setText(e.TrustPhone, phone)
	setText(e.TrustArea, area)
	setDisplay(e.TrustPhone, displayIf(phone != "", ""))
	setDisplay(e.TrustArea, displayIf(area != "", ""))
	setDisplay(e.Trust, displayIf(cfg.HasTrustInfo(), ""))

	e.renderQuickActions(cfg.QuickActions)
}

func displayIf(show bool, shown string) string {
	if show {
		return shown
	}
	return "none"
}

func (e *Elements) renderQuickActions(actions []widgetconfig.QuickAction) {
	removeChildren(e.QuickActions)

	prompt := newElement(atom.Div, html.Attribute{Key: "class", Val: "intent-menu-prompt"})
	setText(prompt, menuPrompt)
	e.QuickActions.AppendChild(prompt)

	list := newElement(atom.Ul, html.Attribute{Key: "class", Val: "intent-menu-list"})
	for i, a := range actions {
		btn := newElement(atom.Button,
			html.Attribute{Key: "type", Val: "button"},
			html.Attribute{Key: "class", Val: "intent-menu-item"},
			html.Attribute{Key: "data-action-index", Val: strconv.Itoa(i)},
			html.Attribute{Key: "data-prefill", Val: a.Prefill},
		)
		setText(btn, a.Label)
		li := newElement(atom.Li)
		li.AppendChild(btn)
		list.AppendChild(li)
	}
	e.QuickActions.AppendChild(list)
	setDisplay(e.QuickActions, "block")
}

// QuickActionButtons returns the menu buttons in display order.
func (e *Elements) QuickActionButtons() []*html.Node {
	var out []*html.Node
	walk(e.QuickActions, func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "intent-menu-item") {
			out = append(out, n)
		}
	})
	return out
}

// QuickAction returns the label and prefill of the i-th menu button.
func (e *Elements) QuickAction(i int) (label, prefill string, ok bool) {
	buttons := e.QuickActionButtons()
	if i < 0 || i >= len(buttons) {
		return "", "", false
	}
	return textContent(buttons[i]), attr(buttons[i], "data-prefill"), true
}

func (e *Elements) HideQuickActions() { setDisplay(e.QuickActions, "none") }

func (e *Elements) QuickActionsVisible() bool { return visible(e.QuickActions) }

func (e *Elements) ShowPanel() {
	setDisplay(e.Panel, "flex")
	setDisplay(e.Launcher, "none")
}

func (e *Elements) HidePanel() {
	setDisplay(e.Panel, "none")
	setDisplay(e.Launcher, "block")
}

func (e *Elements) PanelVisible() bool { return visible(e.Panel) }

func (e *Elements) LauncherVisible() bool { return visible(e.Launcher) }

func (e *Elements) TrustVisible() bool { return visible(e.Trust) }

func (e *Elements) TitleText() string { return textContent(e.Title) }

func (e *Elements) FocusInput() { e.doc.Focus(e.Input) }

func (e *Elements) InputFocused() bool { return e.doc.Focused() == e.Input }

func (e *Elements) InputValue() string {
	if e.Input.DataAtom == atom.Textarea {
		return textContent(e.Input)
	}
	return attr(e.Input, "value")
}

func (e *Elements) SetInputValue(v string) {
	if e.Input.DataAtom == atom.Textarea {
		setText(e.Input, v)
		return
	}
	if v == "" {
		removeAttr(e.Input, "value")
		return
	}
	setAttr(e.Input, "value", v)
}

func (e *Elements) SetSendEnabled(enabled bool) {
	if enabled {
		removeAttr(e.Send, "disabled")
		return
	}
	setAttr(e.Send, "disabled", "")
}

func (e *Elements) SendEnabled() bool { return !hasAttr(e.Send, "disabled") }

// AppendMessage adds one bubble tagged with the sender role and scrolls the
// log to it. Earlier bubbles are never touched.
func (e *Elements) AppendMessage(msg Message) *html.Node {
	div := newElement(atom.Div, html.Attribute{Key: "class", Val: "message " + string(msg.Sender)})
	setText(div, msg.Text)
	e.Log.AppendChild(div)
	e.doc.ScrollTo(e.Log, div)
	return div
}

// Messages reads the rendered bubbles back in order.
func (e *Elements) Messages() []Message {
	var out []Message
	for c := e.Log.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || !hasClass(c, "message") {
			continue
		}
		sender := SenderBot
		if hasClass(c, string(SenderUser)) {
			sender = SenderUser
		}
		out = append(out, Message{Text: textContent(c), Sender: sender})
	}
	return out
}

// ScrolledToLatest reports whether the log shows its newest bubble.
func (e *Elements) ScrolledToLatest() bool {
	last := e.Log.LastChild
	return last == nil || e.doc.ScrolledTo(e.Log) == last
}
