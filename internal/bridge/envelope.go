// Package bridge implements the request/response message protocol that connects
// isolated execution contexts. A Client correlates replies to requests by
// "<action>.RESULT:<requestId>" and enforces per-call timeouts; a Host dispatches
// inbound requests to registered handlers and posts the replies back.
package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResultSuffix is appended to a request action to name its reply.
const ResultSuffix = ".RESULT"

// ResultAction returns the reply action for action.
func ResultAction(action string) string { return action + ResultSuffix }

// Envelope is one message on the wire.
//
// Requests: {"action","payload","requestId"}.
// Replies:  {"action":"<Action>.RESULT","requestId","ok", ...fields | "error"}.
type Envelope struct {
	Action    string
	RequestID string
	Payload   json.RawMessage
	OK        bool
	Error     string
	// Fields are reply values, flattened into the top-level object on the wire.
	Fields map[string]json.RawMessage
}

var reservedKeys = map[string]bool{
	"action": true, "requestId": true, "payload": true, "ok": true, "error": true,
}

// IsReply reports whether e is a reply envelope.
func (e *Envelope) IsReply() bool { return strings.HasSuffix(e.Action, ResultSuffix) }

func (e Envelope) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Fields)+4)
	m["action"] = e.Action
	if e.RequestID != "" {
		m["requestId"] = e.RequestID
	}
	if e.IsReply() {
		m["ok"] = e.OK
		if !e.OK {
			m["error"] = e.Error
		}
		for k, v := range e.Fields {
			if !reservedKeys[k] {
				m[k] = v
			}
		}
		return json.Marshal(m)
	}
	if len(e.Payload) > 0 {
		m["payload"] = e.Payload
	} else {
		m["payload"] = json.RawMessage(`{}`)
	}
	return json.Marshal(m)
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*e = Envelope{}
	for k, v := range m {
		var err error
		switch k {
		case "action":
			err = json.Unmarshal(v, &e.Action)
		case "requestId":
			err = json.Unmarshal(v, &e.RequestID)
		case "payload":
			e.Payload = v
		case "ok":
			err = json.Unmarshal(v, &e.OK)
		case "error":
			err = json.Unmarshal(v, &e.Error)
		default:
			if e.Fields == nil {
				e.Fields = make(map[string]json.RawMessage)
			}
			e.Fields[k] = v
		}
		if err != nil {
			return fmt.Errorf("bridge: decode %q: %w", k, err)
		}
	}
	return nil
}

// DecodePayload unmarshals the request payload into v. A missing payload is
// treated as an empty object.
func (e *Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// Field unmarshals the reply field name into v. It reports false when the
// field is absent.
func (e *Envelope) Field(name string, v any) (bool, error) {
	raw, ok := e.Fields[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

// NewRequest builds a request envelope.
func NewRequest(action, requestID string, payload any) (Envelope, error) {
	env := Envelope{Action: action, RequestID: requestID}
	if payload == nil {
		return env, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		env.Payload = raw
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("bridge: encode payload for %s: %w", action, err)
	}
	env.Payload = raw
	return env, nil
}

// Reply builds a successful reply to req carrying fields.
func Reply(req *Envelope, fields map[string]any) (Envelope, error) {
	env := Envelope{Action: ResultAction(req.Action), RequestID: req.RequestID, OK: true}
	if len(fields) > 0 {
		env.Fields = make(map[string]json.RawMessage, len(fields))
		for k, v := range fields {
			raw, err := json.Marshal(v)
			if err != nil {
				return Envelope{}, fmt.Errorf("bridge: encode field %q: %w", k, err)
			}
			env.Fields[k] = raw
		}
	}
	return env, nil
}

// ReplyError builds a failed reply to req.
func ReplyError(req *Envelope, err error) Envelope {
	msg := "request failed"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Envelope{Action: ResultAction(req.Action), RequestID: req.RequestID, Error: msg}
}
