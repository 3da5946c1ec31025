package widgetconfig

import (
	"strings"
)

// Overrides is a partial configuration supplied by the host page. A blank
// string means the field is absent.
type Overrides struct {
	ClientID           string
	PackID             string
	BusinessName       string
	GreetingMessage    string
	DisplayPhone       string
	ServiceAreaText    string
	SystemErrorMessage string
	QuickActions       []QuickAction
}

type Options struct {
	// HonorQuickActions makes host-supplied quick actions replace the
	// built-in intent menu. When false the built-in list is always used.
	HonorQuickActions bool
}

// Resolve merges sources in increasing precedence (data attributes first,
// then the global object) and fills whatever is still blank from Defaults.
// It never fails: malformed values were already dropped while building the
// overrides.
func Resolve(opts Options, sources ...Overrides) Config {
	cfg := Defaults()

	var merged Overrides
	for _, src := range sources {
		overlay(&merged.ClientID, src.ClientID)
		overlay(&merged.PackID, src.PackID)
		overlay(&merged.BusinessName, src.BusinessName)
		overlay(&merged.GreetingMessage, src.GreetingMessage)
		overlay(&merged.DisplayPhone, src.DisplayPhone)
		overlay(&merged.ServiceAreaText, src.ServiceAreaText)
		overlay(&merged.SystemErrorMessage, src.SystemErrorMessage)
		if actions := normalizeActions(src.QuickActions); len(actions) > 0 {
			merged.QuickActions = actions
		}
	}

	cfg.ClientID = pick(merged.ClientID, cfg.ClientID)
	cfg.PackID = pick(merged.PackID, cfg.PackID)
	cfg.BusinessName = pick(merged.BusinessName, cfg.BusinessName)
	cfg.GreetingMessage = pick(merged.GreetingMessage, cfg.GreetingMessage)
	cfg.DisplayPhone = pick(merged.DisplayPhone, cfg.DisplayPhone)
	cfg.ServiceAreaText = pick(merged.ServiceAreaText, cfg.ServiceAreaText)
	cfg.SystemErrorMessage = pick(merged.SystemErrorMessage, cfg.SystemErrorMessage)

	if opts.HonorQuickActions && len(merged.QuickActions) > 0 {
		cfg.QuickActions = merged.QuickActions
	}
	return cfg
}

func overlay(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func pick(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

// normalizeActions drops entries without a label and defaults a blank
// prefill to the label. The result never aliases the input.
func normalizeActions(in []QuickAction) []QuickAction {
	var out []QuickAction
	for _, a := range in {
		label := strings.TrimSpace(a.Label)
		if label == "" {
			continue
		}
		prefill := strings.TrimSpace(a.Prefill)
		if prefill == "" {
			prefill = label
		}
		out = append(out, QuickAction{Label: label, Prefill: prefill})
	}
	return out
}
