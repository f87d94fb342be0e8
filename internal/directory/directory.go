// Package directory holds the known agents, their roles and their seniority
// levels. The delegation workflow consults it to classify a hand-off as
// downward or upward; collab.directory.list exposes it for discovery.
package directory

import (
	"sort"
	"sync"
	"time"
)

// DefaultLevel is assumed for agents that were never registered. Unknown
// agents can still delegate laterally among themselves.
const DefaultLevel = 1

// Agent describes one entry in the expert directory.
type Agent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Role         string    `json:"role,omitempty"`
	Specialty    string    `json:"specialty,omitempty"`
	Level        int       `json:"level"`
	RegisteredAt time.Time `json:"registeredAt"`
}

type Directory struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

func New() *Directory {
	return &Directory{agents: make(map[string]Agent)}
}

func (d *Directory) Register(agent Agent) {
	if agent.Level == 0 {
		agent.Level = DefaultLevel
	}
	if agent.RegisteredAt.IsZero() {
		agent.RegisteredAt = time.Now().UTC()
	}
	d.mu.Lock()
	d.agents[agent.ID] = agent
	d.mu.Unlock()
}

func (d *Directory) Get(id string) (Agent, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	agent, ok := d.agents[id]
	return agent, ok
}

// Level returns the seniority level for id, or DefaultLevel when unknown.
func (d *Directory) Level(id string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if agent, ok := d.agents[id]; ok {
		return agent.Level
	}
	return DefaultLevel
}

// List returns all known agents sorted by id for stable output.
func (d *Directory) List() []Agent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := make([]Agent, 0, len(d.agents))
	for _, agent := range d.agents {
		result = append(result, agent)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
