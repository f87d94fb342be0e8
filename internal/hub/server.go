// Package hub composes the deliberation engine behind a JSON-RPC surface:
// the session state machine, the delegation workflow, the expert directory,
// the run registry and the hierarchy projector.
package hub

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"collab-hub/internal/collab"
	"collab-hub/internal/delegation"
	"collab-hub/internal/directory"
	"collab-hub/internal/hierarchy"
	"collab-hub/internal/identity"
	"collab-hub/internal/jsonrpc"
	"collab-hub/internal/store"
)

const Version = "1.0.0"

type Server struct {
	cfg         Config
	log         *zap.Logger
	sessions    *collab.SessionManager
	polls       *collab.PollManager
	reviews     *collab.ReviewManager
	delegations *delegation.Workflow
	directory   *directory.Directory
	registry    *hierarchy.Registry
	broadcaster *hierarchy.Broadcaster
	projector   *hierarchy.Projector
	guard       *identity.Guard
	handler     *jsonrpc.Handler
	startTime   time.Time
	stopWatch   func()

	runMu sync.Mutex
	runs  map[string]string // delegation id -> run id
}

func NewServer(cfg Config, log *zap.Logger) *Server {
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(os.Getenv("HOME"), ".collab-hub")
	}

	dir := directory.New()
	for _, seed := range cfg.Agents {
		dir.Register(directory.Agent{
			ID:        seed.ID,
			Name:      seed.Name,
			Role:      seed.Role,
			Specialty: seed.Specialty,
			Level:     seed.Level,
		})
	}

	sessions := collab.NewSessionManager(
		store.New(filepath.Join(cfg.DataDir, "sessions"), log.Named("store.sessions")),
		log.Named("collab"),
		collab.Options{
			MinRounds:  cfg.Collab.MinRounds,
			MaxRounds:  cfg.Collab.MaxRounds,
			StaleAfter: cfg.Collab.StaleAfter,
		},
	)
	delegations := delegation.NewWorkflow(
		dir,
		store.New(filepath.Join(cfg.DataDir, "delegations"), log.Named("store.delegations")),
		log.Named("delegation"),
	)

	registry := hierarchy.NewRegistry()
	broadcaster := hierarchy.NewBroadcaster()
	projector := hierarchy.NewProjector(registry, sessions, broadcaster, cfg.DefaultAgent)
	sessions.SetOnChange(func() { projector.Rebuild() })

	s := &Server{
		cfg:         cfg,
		log:         log,
		sessions:    sessions,
		polls:       collab.NewPollManager(),
		reviews:     collab.NewReviewManager(),
		delegations: delegations,
		directory:   dir,
		registry:    registry,
		broadcaster: broadcaster,
		projector:   projector,
		guard:       identity.NewGuard(identity.ContextResolver{}),
		handler:     jsonrpc.NewHandler(),
		startTime:   time.Now().UTC(),
		runs:        make(map[string]string),
	}
	s.stopWatch = projector.Watch()
	s.RegisterHandlers()
	return s
}

func (s *Server) RegisterHandlers() {
	s.handler.Register("collab.session.init", s.handleSessionInit)
	s.handler.Register("collab.proposal.publish", s.handleProposalPublish)
	s.handler.Register("collab.proposal.challenge", s.handleProposalChallenge)
	s.handler.Register("collab.proposal.agree", s.handleProposalAgree)
	s.handler.Register("collab.proposal.vote", s.handleProposalVote)
	s.handler.Register("collab.decision.finalize", s.handleDecisionFinalize)
	s.handler.Register("collab.moderator.intervene", s.handleModeratorIntervene)
	s.handler.Register("collab.session.get", s.handleSessionGet)
	s.handler.Register("collab.thread.get", s.handleThreadGet)
	s.handler.Register("collab.session.list", s.handleSessionList)
	s.handler.Register("collab.convergence.get", s.handleConvergenceGet)
	s.handler.Register("collab.directory.list", s.handleDirectoryList)
	s.handler.Register("collab.poll.create", s.handlePollCreate)
	s.handler.Register("collab.poll.vote", s.handlePollVote)
	s.handler.Register("collab.poll.get", s.handlePollGet)
	s.handler.Register("collab.review.submit", s.handleReviewSubmit)
	s.handler.Register("collab.review.respond", s.handleReviewRespond)
	s.handler.Register("collab.review.get", s.handleReviewGet)
	s.handler.Register("collab.standup", s.handleStandup)
	s.handler.Register("delegation.assign", s.handleDelegationAssign)
	s.handler.Register("delegation.review", s.handleDelegationReview)
	s.handler.Register("delegation.complete", s.handleDelegationComplete)
	s.handler.Register("delegation.get", s.handleDelegationGet)
	s.handler.Register("delegation.list", s.handleDelegationList)
	s.handler.Register("hierarchy.get", s.handleHierarchyGet)
	s.handler.Register("hub/status", s.handleHubStatus)
}

func (s *Server) Handler() *jsonrpc.Handler { return s.handler }

func (s *Server) Broadcaster() *hierarchy.Broadcaster { return s.broadcaster }

func (s *Server) Directory() *directory.Directory { return s.directory }

func (s *Server) Delegations() *delegation.Workflow { return s.delegations }

func (s *Server) Config() Config { return s.cfg }

// LoadState restores persisted sessions and delegations and rebuilds the
// hierarchy snapshot.
func (s *Server) LoadState() error {
	if err := s.EnsureDataDir(); err != nil {
		return err
	}
	s.sessions.Load()
	s.delegations.Load()
	s.projector.Rebuild()
	return nil
}

// Shutdown stops the projector feed, flushes pending writes and closes the
// broadcast channels.
func (s *Server) Shutdown() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.sessions.Flush()
	s.delegations.Flush()
	s.broadcaster.Close()
}

// trackDelegationRun mirrors delegation lifecycle into the run registry so
// assigned work shows up in the hierarchy view.
func (s *Server) trackDelegationRun(record *delegation.Record) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	runID, tracked := s.runs[record.ID]

	switch record.State {
	case delegation.StateAssigned:
		if tracked {
			return
		}
		run := s.registry.Spawn(hierarchy.SpawnParams{
			AgentID:      record.ToAgentID,
			Label:        record.Task,
			Task:         record.Task,
			DelegationID: record.ID,
		})
		s.registry.Start(run.RunID)
		s.runs[record.ID] = run.RunID
	case delegation.StateCompleted:
		if tracked {
			s.registry.End(runID, record.Result.Summary)
		}
	case delegation.StateFailed:
		if tracked {
			s.registry.Fail(runID, record.Result.Summary)
		}
	}
}

func (s *Server) EnsureDataDir() error {
	if s.cfg.DataDir == "" {
		return errors.New("data dir required")
	}
	return os.MkdirAll(s.cfg.DataDir, 0o755)
}

func (s *Server) PidFile() string {
	return filepath.Join(s.cfg.DataDir, "hub.pid")
}

func (s *Server) WritePid() error {
	if err := s.EnsureDataDir(); err != nil {
		return err
	}
	return os.WriteFile(s.PidFile(), []byte(fmt.Sprintf("%d", os.Getpid())), 0o644)
}

func (s *Server) RemovePid() {
	_ = os.Remove(s.PidFile())
}
