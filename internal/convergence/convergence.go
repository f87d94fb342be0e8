// Package convergence scores debate activity to decide when a decision thread
// is ready to be finalized. Analyze is a pure function over the ordered debate
// log; it holds no state and never touches a session.
package convergence

import (
	"fmt"
	"math"
)

type Action string

const (
	ActionPropose   Action = "propose"
	ActionChallenge Action = "challenge"
	ActionAgree     Action = "agree"
	ActionFinalize  Action = "finalize"
)

// Entry is one qualifying debate action, in log order.
type Entry struct {
	AgentID string `json:"agentId"`
	Action  Action `json:"action"`
	Round   int    `json:"round"`
	Content string `json:"content,omitempty"`
}

type Recommendation string

const (
	Continue        Recommendation = "continue"
	ReadyToFinalize Recommendation = "ready_to_finalize"
	Stalled         Recommendation = "stalled"
)

const (
	// ConvergenceThreshold is the score above which a debate is considered
	// ready to finalize.
	ConvergenceThreshold = 75
	// StallRounds is how many rounds without a challenge, combined with low
	// agreement, flag a stalled debate.
	StallRounds = 5
	// MinRounds is the minimum deliberation depth before convergence is
	// possible at all.
	MinRounds = 3
)

type Metrics struct {
	AgreementRatio           float64        `json:"agreementRatio"`
	ChallengeRatio           float64        `json:"challengeRatio"`
	RoundsSinceLastChallenge int            `json:"roundsSinceLastChallenge"`
	TotalRounds              int            `json:"totalRounds"`
	Score                    int            `json:"convergenceScore"`
	Recommendation           Recommendation `json:"recommendation"`
	Reason                   string         `json:"reason"`
}

// Analyze computes convergence metrics for the given debate log.
//
// Score is built from four weighted signals: overall agreement (40), absence
// of challenges in the last two rounds (30), rounds elapsed since the last
// challenge (20), and minimum deliberation depth (10).
func Analyze(entries []Entry) Metrics {
	if len(entries) == 0 {
		return Metrics{Recommendation: Continue, Reason: "no debate entries yet"}
	}

	agents := map[string]struct{}{}
	agreed := map[string]struct{}{}
	maxRound := 0
	proposals := 0
	challenges := 0
	lastChallengeRound := 0
	recentChallenges := 0

	for _, e := range entries {
		agents[e.AgentID] = struct{}{}
		if e.Round > maxRound {
			maxRound = e.Round
		}
	}
	for _, e := range entries {
		switch e.Action {
		case ActionPropose:
			proposals++
		case ActionChallenge:
			challenges++
			if e.Round > lastChallengeRound {
				lastChallengeRound = e.Round
			}
			if e.Round >= maxRound-2 {
				recentChallenges++
			}
		case ActionAgree:
			agreed[e.AgentID] = struct{}{}
		}
	}

	agreementRatio := 0.0
	if len(agents) > 0 {
		agreementRatio = float64(len(agreed)) / float64(len(agents))
	}
	challengeRatio := 0.0
	recentChallengeRate := 0.0
	if proposals > 0 {
		challengeRatio = float64(challenges) / float64(proposals)
		recentChallengeRate = float64(recentChallenges) / float64(proposals)
	}
	roundsSinceLastChallenge := maxRound - lastChallengeRound

	score := agreementRatio * 40
	score += (1 - recentChallengeRate) * 30
	score += math.Min(float64(roundsSinceLastChallenge)/3, 1) * 20
	if maxRound >= MinRounds {
		score += 10
	}
	rounded := int(math.Round(score))

	m := Metrics{
		AgreementRatio:           agreementRatio,
		ChallengeRatio:           challengeRatio,
		RoundsSinceLastChallenge: roundsSinceLastChallenge,
		TotalRounds:              maxRound,
		Score:                    rounded,
	}

	switch {
	case score >= ConvergenceThreshold && maxRound >= MinRounds:
		m.Recommendation = ReadyToFinalize
		m.Reason = fmt.Sprintf("convergence score %d/100 exceeds threshold %d: %d/%d agents agreed, %d rounds without challenges",
			rounded, ConvergenceThreshold, len(agreed), len(agents), roundsSinceLastChallenge)
	case roundsSinceLastChallenge >= StallRounds && agreementRatio < 0.5:
		m.Recommendation = Stalled
		m.Reason = fmt.Sprintf("debate appears stalled: %d+ rounds without challenges and only %d%% agreement",
			StallRounds, int(math.Round(agreementRatio*100)))
	default:
		m.Recommendation = Continue
		m.Reason = fmt.Sprintf("convergence score %d/100 below threshold %d, continue debate", rounded, ConvergenceThreshold)
	}
	return m
}

// ShouldAutoFinalize reports whether the debate has converged enough to be
// finalized without further rounds.
func ShouldAutoFinalize(entries []Entry) bool {
	return Analyze(entries).Recommendation == ReadyToFinalize
}
