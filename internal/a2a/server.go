// Package a2a exposes the delegation workflow over the A2A protocol:
// delegations become A2A tasks, directory entries become agent cards.
package a2a

import (
	"fmt"
	"net/http"
	"strings"

	sdka2a "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"

	"collab-hub/internal/delegation"
	"collab-hub/internal/directory"
	"collab-hub/internal/hub"
)

type Server struct {
	handler   a2asrv.RequestHandler
	directory *directory.Directory
	baseURL   string
}

func NewServer(dir *directory.Directory, workflow *delegation.Workflow, baseURL string) *Server {
	handler := a2asrv.NewHandler(
		NewDelegationExecutor(workflow),
		a2asrv.WithTaskStore(NewTaskStoreAdapter(workflow)),
	)
	return &Server{
		handler:   handler,
		directory: dir,
		baseURL:   baseURL,
	}
}

// Handler returns the A2A JSON-RPC endpoint, mounted at /a2a by the HTTP
// transport.
func (s *Server) Handler() http.Handler {
	return a2asrv.NewJSONRPCHandler(s.handler)
}

// HubCard describes the hub itself, with one skill per directory agent.
func (s *Server) HubCard() *sdka2a.AgentCard {
	a2aURL := strings.TrimRight(s.baseURL, "/") + "/a2a"
	agents := s.directory.List()
	skills := make([]sdka2a.AgentSkill, 0, len(agents))
	for _, agent := range agents {
		skills = append(skills, agentSkill(agent))
	}

	return &sdka2a.AgentCard{
		Name:            "Collab Hub",
		Description:     "Multi-agent deliberation and delegation engine",
		URL:             a2aURL,
		Version:         hub.Version,
		ProtocolVersion: "1.0",
		Provider: &sdka2a.AgentProvider{
			Org: "Local",
			URL: s.baseURL,
		},
		PreferredTransport: sdka2a.TransportProtocolJSONRPC,
		AdditionalInterfaces: []sdka2a.AgentInterface{
			{URL: a2aURL, Transport: sdka2a.TransportProtocolJSONRPC},
		},
		Capabilities: sdka2a.AgentCapabilities{
			Streaming:              true,
			PushNotifications:      false,
			StateTransitionHistory: true,
		},
		Skills:             skills,
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
	}
}

// AgentCard describes one directory agent.
func (s *Server) AgentCard(id string) (*sdka2a.AgentCard, bool) {
	agent, ok := s.directory.Get(id)
	if !ok {
		return nil, false
	}
	return &sdka2a.AgentCard{
		Name:            agent.ID,
		Description:     cardDescription(agent),
		URL:             strings.TrimRight(s.baseURL, "/") + "/.well-known/agents/" + agent.ID + ".json",
		Version:         hub.Version,
		ProtocolVersion: "1.0",
		Provider: &sdka2a.AgentProvider{
			Org: "Local",
			URL: s.baseURL,
		},
		Capabilities:       sdka2a.AgentCapabilities{Streaming: false},
		Skills:             []sdka2a.AgentSkill{agentSkill(agent)},
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
	}, true
}

// AgentCards lists cards for every directory agent.
func (s *Server) AgentCards() []*sdka2a.AgentCard {
	agents := s.directory.List()
	cards := make([]*sdka2a.AgentCard, 0, len(agents))
	for _, agent := range agents {
		if card, ok := s.AgentCard(agent.ID); ok {
			cards = append(cards, card)
		}
	}
	return cards
}

func agentSkill(agent directory.Agent) sdka2a.AgentSkill {
	return sdka2a.AgentSkill{
		ID:          agent.ID,
		Name:        agent.ID,
		Description: cardDescription(agent),
		Tags:        []string{"agent", agent.Role},
		InputModes:  []string{"text/plain"},
		OutputModes: []string{"text/plain"},
	}
}

func cardDescription(agent directory.Agent) string {
	desc := agent.Role
	if agent.Specialty != "" {
		desc = fmt.Sprintf("%s (%s)", agent.Role, agent.Specialty)
	}
	if desc == "" {
		desc = "agent"
	}
	return fmt.Sprintf("%s, level %d", desc, agent.Level)
}
