// Package widgetconfig resolves the widget configuration from the values a
// host page supplies (script data attributes and a global config object)
// over built-in defaults.
package widgetconfig

import "strings"

// QuickAction is a predefined label/prefill pair shown in the intent menu.
type QuickAction struct {
	Label   string `json:"label" yaml:"label"`
	Prefill string `json:"prefill" yaml:"prefill"`
}

// Config is the resolved widget configuration; every field is normalized.
type Config struct {
	ClientID           string        `json:"client_id" yaml:"client_id"`
	PackID             string        `json:"pack_id" yaml:"pack_id"`
	BusinessName       string        `json:"business_name" yaml:"business_name"`
	GreetingMessage    string        `json:"greeting_message" yaml:"greeting_message"`
	DisplayPhone       string        `json:"display_phone" yaml:"display_phone"`
	ServiceAreaText    string        `json:"service_area_text" yaml:"service_area_text"`
	SystemErrorMessage string        `json:"system_error_message" yaml:"system_error_message"`
	QuickActions       []QuickAction `json:"quick_actions" yaml:"quick_actions"`
}

// HasTrustInfo reports whether the trust block has anything to show.
func (c Config) HasTrustInfo() bool {
	return strings.TrimSpace(c.DisplayPhone) != "" || strings.TrimSpace(c.ServiceAreaText) != ""
}

var defaultQuickActions = []QuickAction{
	{Label: "Book an appointment", Prefill: "Book an appointment"},
	{Label: "Check availability", Prefill: "Check availability"},
	{Label: "Reschedule appointment", Prefill: "Reschedule my appointment"},
	{Label: "Cancel appointment", Prefill: "Cancel my appointment"},
	{Label: "What are your hours?", Prefill: "What are your hours?"},
	{Label: "Where are you located?", Prefill: "Where are you located?"},
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ClientID:           "unknown-client",
		PackID:             "default-pack",
		BusinessName:       "Stravella Assistant",
		GreetingMessage:    "Hi! I can help you check availability, book an appointment, reschedule, or cancel, right here in chat.",
		DisplayPhone:       "",
		ServiceAreaText:    "",
		SystemErrorMessage: "Sorry, I'm having trouble connecting right now. Please use the phone number on this page.",
		QuickActions:       cloneActions(defaultQuickActions),
	}
}

func cloneActions(in []QuickAction) []QuickAction {
	if in == nil {
		return nil
	}
	out := make([]QuickAction, len(in))
	copy(out, in)
	return out
}
