package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

// requestBody builds the outbound body for a passthrough request. When the
// request arrived over HTTP its raw body is forwarded with only the model
// and stream fields patched, so fields the proxy does not model survive.
// Programmatic requests without a raw body are marshaled from the struct.
func requestBody(req *providers.MessagesRequest, stream bool) ([]byte, error) {
	if len(req.Raw) == 0 {
		clone := *req
		clone.Stream = stream
		body, err := json.Marshal(&clone)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		return body, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(req.Raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode request body: %w", err)
	}

	model, err := json.Marshal(req.Model)
	if err != nil {
		return nil, err
	}
	fields["model"] = model

	if stream {
		fields["stream"] = json.RawMessage("true")
	} else {
		delete(fields, "stream")
	}

	return json.Marshal(fields)
}

// PatchModel rewrites the top-level model field of a raw Messages response
// body, leaving everything else byte-compatible after re-marshaling. Bodies
// without a model field are returned unchanged.
func PatchModel(raw json.RawMessage, model string) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	if _, ok := fields["model"]; !ok {
		return raw, nil
	}

	encoded, err := json.Marshal(model)
	if err != nil {
		return nil, err
	}
	fields["model"] = encoded

	return json.Marshal(fields)
}

// PatchMessageStartModel rewrites message.model inside a raw message_start
// event payload. Frames that do not parse are returned unchanged; they were
// going to be forwarded verbatim anyway.
func PatchMessageStartModel(raw json.RawMessage, model string) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return raw
	}
	msgRaw, ok := fields["message"]
	if !ok {
		return raw
	}

	patched, err := PatchModel(msgRaw, model)
	if err != nil {
		return raw
	}
	fields["message"] = patched

	out, err := json.Marshal(fields)
	if err != nil {
		return raw
	}
	return out
}
