package surface

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stravella/chatwidget/internal/widgetconfig"
)

var allIDs = []string{
	RootID, LauncherID, PanelID, HeaderID, TitleID, CloseID, TrustID, TrustPhoneID,
	TrustAreaID, QuickActionsID, LogID, InputAreaID, InputID, SendID,
}

func TestEnsureCreatesEveryElement(t *testing.T) {
	doc := NewDocument()
	els, err := Ensure(doc)
	require.NoError(t, err)

	for _, id := range allIDs {
		assert.Equal(t, 1, doc.CountID(id), id)
	}
	assert.False(t, els.PanelVisible())
	assert.True(t, els.LauncherVisible())
	assert.True(t, els.SendEnabled())
}

func TestEnsureIsIdempotent(t *testing.T) {
	doc := NewDocument()
	first, err := Ensure(doc)
	require.NoError(t, err)
	second, err := Ensure(doc)
	require.NoError(t, err)

	for _, id := range allIDs {
		assert.Equal(t, 1, doc.CountID(id), id)
	}
	assert.Same(t, first.Panel, second.Panel)
	assert.Same(t, first.Input, second.Input)
}

func TestEnsureAdoptsHostMarkup(t *testing.T) {
	page := `<html><body>
<div id="chat-widget" class="host-styled"><div id="chat-body"><div class="message bot">earlier</div></div></div>
<textarea id="chat-input">draft</textarea>
</body></html>`
	doc, err := ParseDocument(strings.NewReader(page))
	require.NoError(t, err)

	els, err := Ensure(doc)
	require.NoError(t, err)

	for _, id := range allIDs {
		assert.Equal(t, 1, doc.CountID(id), id)
	}
	assert.True(t, hasClass(els.Panel, "host-styled"))
	assert.Equal(t, "draft", els.InputValue())
	assert.Equal(t, []Message{{Text: "earlier", Sender: SenderBot}}, els.Messages())
	// children missing from the adopted panel are created inside it
	assert.Same(t, els.Panel, els.Header.Parent)
}

func TestEnsureRejectsWrongElementTypes(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(`<body><div id="chat-input"></div><a id="chat-send">go</a></body>`))
	require.NoError(t, err)

	_, err = Ensure(doc)
	require.ErrorIs(t, err, ErrMissingElements)
	assert.Contains(t, err.Error(), "#chat-input")
	assert.Contains(t, err.Error(), "#chat-send")
}

func TestApplyConfig(t *testing.T) {
	els, err := Ensure(NewDocument())
	require.NoError(t, err)

	cfg := widgetconfig.Resolve(widgetconfig.Options{}, widgetconfig.Overrides{BusinessName: "Acme Plumbing"})
	els.ApplyConfig(cfg)

	assert.Equal(t, "Acme Plumbing", els.TitleText())
	assert.False(t, els.TrustVisible())
	assert.True(t, els.QuickActionsVisible())
	require.Len(t, els.QuickActionButtons(), len(cfg.QuickActions))

	label, prefill, ok := els.QuickAction(2)
	require.True(t, ok)
	assert.Equal(t, cfg.QuickActions[2].Label, label)
	assert.Equal(t, cfg.QuickActions[2].Prefill, prefill)

	_, _, ok = els.QuickAction(len(cfg.QuickActions))
	assert.False(t, ok)
}

func TestApplyConfigTrustBlock(t *testing.T) {
	els, err := Ensure(NewDocument())
	require.NoError(t, err)

	els.ApplyConfig(widgetconfig.Resolve(widgetconfig.Options{}, widgetconfig.Overrides{DisplayPhone: "555-0100"}))
	assert.True(t, els.TrustVisible())
	assert.Equal(t, "555-0100", textContent(els.TrustPhone))
	assert.True(t, visible(els.TrustPhone))
	assert.False(t, visible(els.TrustArea))

	els.ApplyConfig(widgetconfig.Defaults())
	assert.False(t, els.TrustVisible())
}

func TestApplyConfigRebuildsQuickActions(t *testing.T) {
	els, err := Ensure(NewDocument())
	require.NoError(t, err)

	els.ApplyConfig(widgetconfig.Defaults())
	cfg := widgetconfig.Resolve(widgetconfig.Options{HonorQuickActions: true}, widgetconfig.Overrides{
		QuickActions: []widgetconfig.QuickAction{{Label: "Only one"}},
	})
	els.ApplyConfig(cfg)

	require.Len(t, els.QuickActionButtons(), 1)
}

func TestAppendMessage(t *testing.T) {
	els, err := Ensure(NewDocument())
	require.NoError(t, err)

	els.AppendMessage(Message{Text: "Hi", Sender: SenderUser})
	last := els.AppendMessage(Message{Text: "<b>Hello</b>", Sender: SenderBot})

	assert.Equal(t, []Message{
		{Text: "Hi", Sender: SenderUser},
		{Text: "<b>Hello</b>", Sender: SenderBot},
	}, els.Messages())
	assert.Same(t, last, els.Document().ScrolledTo(els.Log))
	assert.True(t, els.ScrolledToLatest())

	var buf bytes.Buffer
	require.NoError(t, RenderElement(&buf, els.Log))
	assert.Contains(t, buf.String(), `<div class="message bot">&lt;b&gt;Hello&lt;/b&gt;</div>`)
}

func TestVisibilityKeepsHostStyle(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(`<body><div id="chat-widget" style="color: red; display: block"></div></body>`))
	require.NoError(t, err)
	els, err := Ensure(doc)
	require.NoError(t, err)

	els.HidePanel()
	assert.Equal(t, "color: red;display:none;", attr(els.Panel, "style"))
	assert.False(t, els.PanelVisible())

	els.ShowPanel()
	assert.True(t, els.PanelVisible())
	assert.False(t, els.LauncherVisible())
}

func TestInputAndSendControls(t *testing.T) {
	els, err := Ensure(NewDocument())
	require.NoError(t, err)

	els.SetInputValue("hello")
	assert.Equal(t, "hello", els.InputValue())
	els.SetInputValue("")
	assert.Empty(t, els.InputValue())

	els.SetSendEnabled(false)
	assert.False(t, els.SendEnabled())
	els.SetSendEnabled(true)
	assert.True(t, els.SendEnabled())

	els.FocusInput()
	assert.True(t, els.InputFocused())
}

func TestDocumentRender(t *testing.T) {
	doc := NewDocument()
	_, err := Ensure(doc)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))
	out := buf.String()
	for _, id := range allIDs {
		assert.Equal(t, 1, strings.Count(out, `id="`+id+`"`), id)
	}
	assert.Contains(t, out, `<input id="chat-input" type="text" placeholder="Type your message..."/>`)
}
