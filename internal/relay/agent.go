package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/muxcmd/muxcmd/internal/runner"
)

// Agent bridges relay deliveries to a command runner: inbound command
// payloads become dispatches, dispatch outcomes become replies to the
// sender. One agent fronts one session.
type Agent struct {
	client *Client
	runner *runner.Runner
	logger *slog.Logger
}

// NewAgent wires a runner to the hub at url under the given identity.
func NewAgent(url, id string, r *runner.Runner, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{runner: r, logger: logger}
	a.client = NewClient(url, id, a.handle, WithClientLogger(logger))
	return a
}

// Run serves until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	return a.client.Run(ctx)
}

// handle processes one delivery. Malformed payloads and busy
// rejections answer immediately; a real dispatch runs off the read
// loop so further traffic (and its busy rejections) keeps flowing.
func (a *Agent) handle(ctx context.Context, d Delivery) {
	var msg CommandMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || len(msg.Data.Commands) == 0 {
		a.logger.Warn("unintelligible command payload", "sender", d.Sender)
		a.reply(d.Sender, Outcome{Success: false})
		return
	}

	if a.runner.Busy() {
		a.logger.Warn("rejecting dispatch while busy", "sender", d.Sender)
		a.reply(d.Sender, Outcome{Success: false})
		return
	}

	go a.dispatch(ctx, d.Sender, msg.Data)
}

func (a *Agent) dispatch(ctx context.Context, sender string, data CommandData) {
	var (
		dsp runner.Dispatch
		err error
	)
	if data.Batch {
		dsp, err = runner.Batch(data.Commands)
	} else {
		dsp, err = runner.Single(data.Commands[0])
	}
	if err != nil {
		a.reply(sender, Outcome{Success: false})
		return
	}

	ok, err := a.runner.Execute(ctx, dsp)
	if err != nil {
		if !errors.Is(err, runner.ErrBusy) {
			a.logger.Error("dispatch failed", "sender", sender, "error", err)
		}
		a.reply(sender, Outcome{Success: false})
		return
	}
	if !ok {
		a.reply(sender, Outcome{Success: false})
		return
	}

	var result *string
	if out, present := a.runner.LastOutput(); present {
		result = &out
	}
	a.reply(sender, Outcome{Success: true, Result: result})
}

func (a *Agent) reply(target string, o Outcome) {
	if err := a.client.SendTo(target, o); err != nil {
		a.logger.Warn("sending reply", "target", target, "error", err)
	}
}
