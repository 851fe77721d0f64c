// Package diagnostic walks purchasers through troubleshooting flows that
// are described as data.
package diagnostic

import (
	"fmt"

	"github.com/BurntSushi/toml"

	e "github.com/openhouse/portalcache/errors"
)

// Step types
const (
	YesNo          = "yes_no"
	MultipleChoice = "multiple_choice"
	Info           = "info"
	Escalate       = "escalate"
	Redirect       = "redirect"
)

// Actions that end a flow
const (
	ActionResolved  = "resolved"
	ActionEscalate  = "escalate"
	ActionEscalated = "escalated"
)

type Option struct {
	Label  string `toml:"label" json:"label"`
	Next   string `toml:"next" json:"next,omitempty"`
	Action string `toml:"action" json:"action,omitempty"`
}

type Step struct {
	ID        string   `toml:"id" json:"id"`
	Type      string   `toml:"type" json:"type"`
	Title     string   `toml:"title" json:"title"`
	Body      string   `toml:"body" json:"body,omitempty"`
	YesNext   string   `toml:"yes_next" json:"yes_next,omitempty"`
	NoNext    string   `toml:"no_next" json:"no_next,omitempty"`
	YesAction string   `toml:"yes_action" json:"yes_action,omitempty"`
	NoAction  string   `toml:"no_action" json:"no_action,omitempty"`
	Options   []Option `toml:"options" json:"options,omitempty"`
	Next      string   `toml:"next" json:"next,omitempty"`
}

type Flow struct {
	ID          string `toml:"id" json:"id"`
	Name        string `toml:"name" json:"name"`
	Description string `toml:"description" json:"description,omitempty"`
	Steps       []Step `toml:"steps" json:"steps"`
}

// Step returns the step with id.
func (f Flow) Step(id string) (Step, bool) {
	for _, s := range f.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// Catalog is the set of flows offered to purchasers.
type Catalog struct {
	Flows []Flow `toml:"flows" json:"flows"`
}

// Flow returns the flow with id.
func (c *Catalog) Flow(id string) (Flow, error) {
	for _, f := range c.Flows {
		if f.ID == id {
			return f, nil
		}
	}
	return Flow{}, e.New("", "diagnostic.Flow", e.FlowNotFound, fmt.Sprintf("no diagnostic flow %q", id))
}

// LoadCatalog reads and checks a TOML catalogue.
func LoadCatalog(path string) (*Catalog, error) {
	var c Catalog
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("reading diagnostic flows: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// ParseCatalog is LoadCatalog for a catalogue held in memory.
func ParseCatalog(data string) (*Catalog, error) {
	var c Catalog
	if _, err := toml.Decode(data, &c); err != nil {
		return nil, fmt.Errorf("reading diagnostic flows: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func knownAction(a string) bool {
	switch a {
	case "", ActionResolved, ActionEscalate, ActionEscalated:
		return true
	}
	return false
}

/*
Validate checks that flow and step IDs are unique within their scope, that
every flow has steps, and that every next pointer names a step of the same
flow.
*/
func (c *Catalog) Validate() error {
	flows := make(map[string]bool)

	for _, f := range c.Flows {
		if f.ID == "" {
			return fmt.Errorf("flow %q has no id", f.Name)
		}
		if flows[f.ID] {
			return fmt.Errorf("duplicate flow %q", f.ID)
		}
		flows[f.ID] = true

		if len(f.Steps) == 0 {
			return fmt.Errorf("flow %q has no steps", f.ID)
		}

		steps := make(map[string]bool)
		for _, s := range f.Steps {
			if s.ID == "" || steps[s.ID] {
				return fmt.Errorf("flow %q: missing or duplicate step id %q", f.ID, s.ID)
			}
			steps[s.ID] = true
		}

		check := func(s Step, next, action string) error {
			if next != "" && !steps[next] {
				return fmt.Errorf("flow %q step %q: unknown next step %q", f.ID, s.ID, next)
			}
			if !knownAction(action) {
				return fmt.Errorf("flow %q step %q: unknown action %q", f.ID, s.ID, action)
			}
			return nil
		}

		for _, s := range f.Steps {
			var err error
			switch s.Type {
			case YesNo:
				if err = check(s, s.YesNext, s.YesAction); err == nil {
					err = check(s, s.NoNext, s.NoAction)
				}
			case MultipleChoice:
				if len(s.Options) == 0 {
					err = fmt.Errorf("flow %q step %q: no options", f.ID, s.ID)
				}
				for _, o := range s.Options {
					if err == nil {
						err = check(s, o.Next, o.Action)
					}
				}
			case Info, Redirect:
				err = check(s, s.Next, "")
			case Escalate:
			default:
				err = fmt.Errorf("flow %q step %q: unknown type %q", f.ID, s.ID, s.Type)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}
