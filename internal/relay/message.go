// Package relay carries command dispatches between machines over a
// WebSocket hub. Clients identify themselves by id; the server routes
// envelopes between them without interpreting the payload.
package relay

import (
	"encoding/json"
	"fmt"
)

// Identification is the first message every client must send after
// connecting.
type Identification struct {
	ClientID string `json:"client_id"`
}

// Envelope is what a client sends to reach a peer. Message is a
// JSON-encoded string: the payload is serialized separately and
// carried as text, so the server can re-decode and re-wrap it without
// knowing its shape.
type Envelope struct {
	TargetID string `json:"target_id"`
	Message  string `json:"message"`
}

// Delivery is what the target receives: the sender's id plus the
// decoded payload.
type Delivery struct {
	Sender string          `json:"s"`
	Body   json.RawMessage `json:"m"`
}

// CommandData accepts either a single command string or a list,
// matching the two dispatch shapes callers send.
type CommandData struct {
	Commands []string
	Batch    bool
}

// UnmarshalJSON decodes a string as a single command and an array as a
// batch.
func (d *CommandData) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		d.Commands = []string{single}
		d.Batch = false
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		d.Commands = list
		d.Batch = true
		return nil
	}
	return fmt.Errorf("data must be a string or a list of strings")
}

// MarshalJSON emits the original shape back: a bare string for a
// single command, an array for a batch.
func (d CommandData) MarshalJSON() ([]byte, error) {
	if !d.Batch && len(d.Commands) == 1 {
		return json.Marshal(d.Commands[0])
	}
	return json.Marshal(d.Commands)
}

// CommandMessage is the payload an agent expects inside a delivery.
type CommandMessage struct {
	Data CommandData `json:"data"`
}

// Outcome is the agent's reply. A failed dispatch reports only the
// flag; a successful one carries the sanitized transcript, which may
// be null when nothing was captured.
type Outcome struct {
	Success bool
	Result  *string
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	if !o.Success {
		return json.Marshal(struct {
			Success bool `json:"success"`
		}{false})
	}
	return json.Marshal(struct {
		Success bool    `json:"success"`
		Result  *string `json:"result"`
	}{true, o.Result})
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var raw struct {
		Success bool    `json:"success"`
		Result  *string `json:"result"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Success = raw.Success
	o.Result = raw.Result
	return nil
}
