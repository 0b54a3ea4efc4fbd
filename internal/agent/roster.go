// Package agent generates the automated assistant replies the backend
// attaches to user messages. A roster of named agents is configured at
// startup; @mentions in the user message route to specific agents, and an
// OpenAI-compatible model produces the reply when one is configured.
package agent

import (
	"strings"

	"github.com/username/deskchat/internal/domain/entities"
	"github.com/username/deskchat/pkg/config"
)

// Agent is one member of the assistant roster
type Agent struct {
	ID             string
	Name           string
	Avatar         string
	Role           string
	Responsibility string
	Default        bool
}

// Bot returns the descriptive metadata attached to this agent's messages
func (a Agent) Bot() *entities.Bot {
	role := a.Role
	if role == "" {
		role = "assistant"
	}
	return &entities.Bot{
		Name:   a.Name,
		Avatar: a.Avatar,
		Role:   role,
	}
}

// Roster holds the configured agents
type Roster struct {
	agents []Agent
	byID   map[string]Agent
}

// NewRoster builds a roster from configuration
func NewRoster(configs []config.AgentConfig) *Roster {
	r := &Roster{
		agents: make([]Agent, 0, len(configs)),
		byID:   make(map[string]Agent, len(configs)),
	}
	for _, c := range configs {
		a := Agent{
			ID:             c.ID,
			Name:           c.Name,
			Avatar:         c.Avatar,
			Role:           c.Role,
			Responsibility: c.Responsibility,
			Default:        c.Default,
		}
		r.agents = append(r.agents, a)
		r.byID[strings.ToLower(a.ID)] = a
	}
	return r
}

// DefaultAgent returns the agent marked as default, falling back to the
// first configured agent
func (r *Roster) DefaultAgent() (Agent, bool) {
	for _, a := range r.agents {
		if a.Default {
			return a, true
		}
	}
	if len(r.agents) > 0 {
		return r.agents[0], true
	}
	return Agent{}, false
}

// Lookup returns an agent by id, case-insensitively
func (r *Roster) Lookup(id string) (Agent, bool) {
	a, ok := r.byID[strings.ToLower(id)]
	return a, ok
}

// Route decides which agents should handle a user message. Explicit
// @mentions win; without any, the default agent answers alone.
func (r *Roster) Route(content string) []Agent {
	mentioned := make([]Agent, 0, 1)
	seen := make(map[string]bool)
	for _, word := range strings.Fields(content) {
		if !strings.HasPrefix(word, "@") {
			continue
		}
		id := strings.ToLower(strings.Trim(word[1:], ".,:;!?"))
		if agent, ok := r.byID[id]; ok && !seen[id] {
			mentioned = append(mentioned, agent)
			seen[id] = true
		}
	}
	if len(mentioned) > 0 {
		return mentioned
	}
	if def, ok := r.DefaultAgent(); ok {
		return []Agent{def}
	}
	return nil
}
