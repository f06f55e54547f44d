// Package judge defines the comparative judging collaborator: given two
// artifacts it returns head-to-head scores and a winner. The production
// implementation calls an external AI scoring API; the service treats any
// failure as a signal to fall back to the originally submitted scores.
package judge

import (
	"context"
)

// Winner values returned by a judge.
const (
	WinnerTie    = 0
	WinnerFirst  = 1
	WinnerSecond = 2
)

// Verdict is the judge's head-to-head result. Except for genuine ties the
// judge guarantees a minimum margin between ScoreA and ScoreB, so the
// comparative path cannot produce accidental ties.
type Verdict struct {
	Winner        int     `json:"winner"` // 1 = first artifact, 2 = second, 0 = tie
	ScoreA        float64 `json:"scoreA"`
	ScoreB        float64 `json:"scoreB"`
	Commentary    string  `json:"commentary"`
	WinningFactor string  `json:"winningFactor"`
	Margin        float64 `json:"margin"`
	VerdictA      string  `json:"verdictA"`
	VerdictB      string  `json:"verdictB"`
}

type Judge interface {
	Compare(ctx context.Context, artifactA, artifactB, mode string) (*Verdict, error)
}
