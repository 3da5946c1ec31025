package chatapi

import "encoding/json"

// ChannelChat tags every request coming from the web widget.
const ChannelChat = "chat"

type Request struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
	ClientID string `json:"client_id"`
	PackID   string `json:"pack_id"`
	Channel  string `json:"channel"`
}

// Response carries the reply text. The backend may send more fields; they
// are kept raw for callers that want them and otherwise ignored.
type Response struct {
	Reply  string
	Fields map[string]json.RawMessage
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	r.Fields = fields
	r.Reply = ""
	if raw, ok := fields["reply"]; ok {
		// a reply that is not a string counts as blank
		var s string
		if json.Unmarshal(raw, &s) == nil {
			r.Reply = s
		}
	}
	return nil
}
