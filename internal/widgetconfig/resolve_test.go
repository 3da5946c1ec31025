package widgetconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaults(t *testing.T) {
	cfg := Resolve(Options{})
	require.Equal(t, Defaults(), cfg)
	assert.False(t, cfg.HasTrustInfo())
}

func TestResolveBlankFallsBackToDefault(t *testing.T) {
	def := Defaults()
	cfg := Resolve(Options{}, Overrides{
		ClientID:           "   ",
		PackID:             "\t",
		BusinessName:       "",
		GreetingMessage:    " \n ",
		SystemErrorMessage: "  ",
	})

	assert.Equal(t, def.ClientID, cfg.ClientID)
	assert.Equal(t, def.PackID, cfg.PackID)
	assert.Equal(t, def.BusinessName, cfg.BusinessName)
	assert.Equal(t, def.GreetingMessage, cfg.GreetingMessage)
	assert.Equal(t, def.SystemErrorMessage, cfg.SystemErrorMessage)
}

func TestResolveNeverBlank(t *testing.T) {
	inputs := []string{"", " ", "\t\n", "value", "  padded  "}
	for _, in := range inputs {
		cfg := Resolve(Options{HonorQuickActions: true}, Overrides{
			ClientID:           in,
			PackID:             in,
			BusinessName:       in,
			GreetingMessage:    in,
			SystemErrorMessage: in,
		})
		for _, v := range []string{cfg.ClientID, cfg.PackID, cfg.BusinessName, cfg.GreetingMessage, cfg.SystemErrorMessage} {
			assert.NotEmpty(t, strings.TrimSpace(v), "input %q", in)
			assert.Equal(t, strings.TrimSpace(v), v, "input %q", in)
		}
		assert.NotEmpty(t, cfg.QuickActions)
	}
}

func TestResolvePrecedence(t *testing.T) {
	data := Overrides{ClientID: "from-attr", PackID: "attr-pack", BusinessName: "Attr Biz"}
	global := Overrides{ClientID: " from-global ", BusinessName: "   "}

	cfg := Resolve(Options{}, data, global)

	assert.Equal(t, "from-global", cfg.ClientID)
	assert.Equal(t, "attr-pack", cfg.PackID)
	// a blank global value does not erase the attribute
	assert.Equal(t, "Attr Biz", cfg.BusinessName)
}

func TestResolveQuickActionsFlag(t *testing.T) {
	custom := Overrides{QuickActions: []QuickAction{
		{Label: "Get a quote", Prefill: ""},
		{Label: "  ", Prefill: "dropped"},
		{Label: "Talk to us", Prefill: "I want to talk"},
	}}

	ignored := Resolve(Options{HonorQuickActions: false}, custom)
	assert.Equal(t, Defaults().QuickActions, ignored.QuickActions)

	honored := Resolve(Options{HonorQuickActions: true}, custom)
	require.Len(t, honored.QuickActions, 2)
	assert.Equal(t, QuickAction{Label: "Get a quote", Prefill: "Get a quote"}, honored.QuickActions[0])
	assert.Equal(t, QuickAction{Label: "Talk to us", Prefill: "I want to talk"}, honored.QuickActions[1])
}

func TestResolveDoesNotAliasInputs(t *testing.T) {
	actions := []QuickAction{{Label: "A", Prefill: "a"}}
	cfg := Resolve(Options{HonorQuickActions: true}, Overrides{QuickActions: actions})
	actions[0].Label = "mutated"
	assert.Equal(t, "A", cfg.QuickActions[0].Label)

	def := Resolve(Options{})
	def.QuickActions[0].Label = "mutated"
	assert.NotEqual(t, "mutated", Defaults().QuickActions[0].Label)
}

func TestTrustInfo(t *testing.T) {
	cfg := Resolve(Options{}, Overrides{DisplayPhone: " (555) 010-2000 "})
	assert.Equal(t, "(555) 010-2000", cfg.DisplayPhone)
	assert.True(t, cfg.HasTrustInfo())

	cfg = Resolve(Options{}, Overrides{ServiceAreaText: "Greater Austin"})
	assert.True(t, cfg.HasTrustInfo())
}
