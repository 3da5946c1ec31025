package widgetconfig

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"gopkg.in/yaml.v3"
)

// GlobalObjectName is the name host pages use for the global config object.
// A document whose only top-level key is this name is unwrapped.
const GlobalObjectName = "StravellaWidgetConfig"

// ScriptID marks the embedding script element in host markup.
const ScriptID = "stravella-widget"

var ErrScriptNotFound = errors.New("widget script element not found")

// FromMap converts a decoded global object into overrides. Unknown keys and
// values of the wrong shape are ignored.
func FromMap(m map[string]any) Overrides {
	var o Overrides
	for k, v := range m {
		switch normalizeKey(k) {
		case "client_id":
			o.ClientID = stringify(v)
		case "pack_id":
			o.PackID = stringify(v)
		case "business_name":
			o.BusinessName = stringify(v)
		case "greeting_message":
			o.GreetingMessage = stringify(v)
		case "display_phone":
			o.DisplayPhone = stringify(v)
		case "service_area_text":
			o.ServiceAreaText = stringify(v)
		case "system_error_message":
			o.SystemErrorMessage = stringify(v)
		case "quick_actions":
			o.QuickActions = actionsFrom(v)
		}
	}
	return o
}

// FromDataAttributes converts script data attributes into overrides.
// data-quick-actions carries a JSON array of {label, prefill} objects.
func FromDataAttributes(attrs map[string]string) Overrides {
	m := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if normalizeKey(k) == "quick_actions" {
			var decoded any
			if err := yaml.Unmarshal([]byte(v), &decoded); err != nil {
				continue
			}
			m[k] = decoded
			continue
		}
		m[k] = v
	}
	return FromMap(m)
}

// FromQuery picks data-* parameters out of a URL query.
func FromQuery(q url.Values) map[string]string {
	attrs := make(map[string]string)
	for k, vs := range q {
		if !strings.HasPrefix(strings.ToLower(k), "data-") || len(vs) == 0 {
			continue
		}
		attrs[strings.ToLower(k)] = vs[len(vs)-1]
	}
	return attrs
}

// DecodeGlobal reads a global config object written as YAML or JSON. An empty
// document yields empty overrides.
func DecodeGlobal(r io.Reader) (Overrides, error) {
	var m map[string]any
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return Overrides{}, nil
		}
		return Overrides{}, errors.Wrap(err, "decoding global widget config")
	}
	if inner, ok := m[GlobalObjectName].(map[string]any); ok && len(m) == 1 {
		m = inner
	}
	return FromMap(m), nil
}

// ScriptAttributes finds the embedding script element in host markup and
// returns its data-* attributes.
func ScriptAttributes(r io.Reader) (map[string]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing host markup")
	}

	var found *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Script && isWidgetScript(n) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if found == nil {
		return nil, ErrScriptNotFound
	}
	attrs := make(map[string]string)
	for _, a := range found.Attr {
		if strings.HasPrefix(a.Key, "data-") {
			attrs[a.Key] = a.Val
		}
	}
	return attrs, nil
}

func isWidgetScript(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "id":
			if a.Val == ScriptID {
				return true
			}
		case "src":
			src := a.Val
			if i := strings.IndexAny(src, "?#"); i >= 0 {
				src = src[:i]
			}
			if strings.HasSuffix(src, "widget.js") {
				return true
			}
		}
	}
	return false
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.TrimPrefix(k, "data-")
	return strings.ReplaceAll(k, "-", "_")
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int, int64, float64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

func actionsFrom(v any) []QuickAction {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []QuickAction
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, QuickAction{
			Label:   stringify(m["label"]),
			Prefill: stringify(m["prefill"]),
		})
	}
	return out
}
