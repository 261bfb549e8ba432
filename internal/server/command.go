package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cxd309/junction-sim/internal/signal"
)

// ErrBacklog is returned when the loop has not yet drained earlier inputs.
var ErrBacklog = errors.New("server: input backlog full")

// Command changes one or both external inputs. It is applied between ticks.
type Command struct {
	Density *int         `json:"density,omitempty"`
	Mode    *signal.Mode `json:"mode,omitempty"`
}

// Validate rejects an unknown mode. Density is clamped when applied.
func (c Command) Validate() error {
	if c.Mode != nil {
		if _, err := signal.ParseMode(string(*c.Mode)); err != nil {
			return err
		}
	}
	if c.Density == nil && c.Mode == nil {
		return errors.New("server: empty command")
	}
	return nil
}

func decodeCommand(data []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Command{}, fmt.Errorf("decoding envelope: %w", err)
	}
	switch env.Type {
	case MsgSetDensity:
		var p struct {
			Density int `json:"density"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Command{}, fmt.Errorf("decoding %s: %w", env.Type, err)
		}
		return Command{Density: &p.Density}, nil
	case MsgSetMode:
		var p struct {
			Mode signal.Mode `json:"mode"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Command{}, fmt.Errorf("decoding %s: %w", env.Type, err)
		}
		return Command{Mode: &p.Mode}, nil
	}
	return Command{}, fmt.Errorf("unknown message type %q", env.Type)
}
