package models

import (
	"time"
)

type BattleStatus string

const (
	BattleStatusCreated   BattleStatus = "created"
	BattleStatusJoined    BattleStatus = "joined"
	BattleStatusJudging   BattleStatus = "judging"
	BattleStatusCompleted BattleStatus = "completed"
	BattleStatusExpired   BattleStatus = "expired"
	BattleStatusCancelled BattleStatus = "cancelled"

	// BattleStatusWaiting is the pre-v2 name for "created". Old records still
	// carry it; Normalize rewrites it once at the store boundary.
	BattleStatusWaiting BattleStatus = "waiting"
)

type BattleWinner string

const (
	WinnerCreator  BattleWinner = "creator"
	WinnerOpponent BattleWinner = "opponent"
	WinnerTie      BattleWinner = "tie"
)

// ForfeitResponderID is the synthetic responder bound to battles that
// auto-complete because nobody responded within the forfeit window.
const ForfeitResponderID = "forfeited"

type Battle struct {
	BattleID    string `json:"battleId" bson:"battleId"`
	CreatorID   string `json:"creatorId" bson:"creatorId"`
	ResponderID string `json:"responderId,omitempty" bson:"responderId"`

	// Scores as independently submitted by each party.
	CreatorScore   float64 `json:"creatorScore" bson:"creatorScore"`
	ResponderScore float64 `json:"responderScore" bson:"responderScore"`

	// Head-to-head scores from the comparative judge; nil when the judge
	// never ran or failed and the original scores decided the battle.
	ComparativeCreatorScore   *float64 `json:"comparativeCreatorScore,omitempty" bson:"comparativeCreatorScore,omitempty"`
	ComparativeResponderScore *float64 `json:"comparativeResponderScore,omitempty" bson:"comparativeResponderScore,omitempty"`

	CreatorThumbnail   string `json:"creatorThumbnail,omitempty" bson:"creatorThumbnail,omitempty"`
	ResponderThumbnail string `json:"responderThumbnail,omitempty" bson:"responderThumbnail,omitempty"`

	Mode   string       `json:"mode" bson:"mode"`
	Status BattleStatus `json:"status" bson:"status"`
	Winner BattleWinner `json:"winner,omitempty" bson:"winner,omitempty"`

	Commentary         string   `json:"commentary,omitempty" bson:"commentary,omitempty"`
	WinningFactor      string   `json:"winningFactor,omitempty" bson:"winningFactor,omitempty"`
	MarginOfVictory    *float64 `json:"marginOfVictory,omitempty" bson:"marginOfVictory,omitempty"`
	VerdictCreator     string   `json:"verdictCreator,omitempty" bson:"verdictCreator,omitempty"`
	VerdictResponder   string   `json:"verdictResponder,omitempty" bson:"verdictResponder,omitempty"`
	ScoresRecalculated bool     `json:"scoresRecalculated" bson:"scoresRecalculated"`

	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	JoinedAt    *time.Time `json:"joinedAt,omitempty" bson:"joinedAt,omitempty"`
	RespondedAt *time.Time `json:"respondedAt,omitempty" bson:"respondedAt,omitempty"`

	// ExpiresAt is both the logical visibility boundary and the physical TTL
	// hint handed to the store. ForfeitAt triggers auto-win for the creator.
	ExpiresAt time.Time `json:"expiresAt" bson:"expiresAt"`
	ForfeitAt time.Time `json:"forfeitAt" bson:"forfeitAt"`
}

// Normalize rewrites legacy field values to their canonical form. Store
// implementations call it once after decoding so business logic only ever
// sees canonical statuses.
func (b *Battle) Normalize() {
	if b.Status == BattleStatusWaiting {
		b.Status = BattleStatusCreated
	}
}

// StatusSynonyms returns every stored spelling of a canonical status. Store
// implementations expand status filters through it so conditional writes
// also match legacy records.
func StatusSynonyms(status BattleStatus) []BattleStatus {
	if status == BattleStatusCreated {
		return []BattleStatus{BattleStatusCreated, BattleStatusWaiting}
	}
	return []BattleStatus{status}
}

// PreTerminal reports whether the battle can still advance through the
// normal join/respond path.
func (b *Battle) PreTerminal() bool {
	return b.Status == BattleStatusCreated || b.Status == BattleStatusJoined
}

// Expired reports whether the battle is past its logical visibility boundary.
func (b *Battle) Expired(now time.Time) bool {
	return now.After(b.ExpiresAt) || b.Status == BattleStatusExpired
}

// ForfeitDue reports whether the battle should auto-complete in the
// creator's favor: still pre-terminal with the forfeit window elapsed.
func (b *Battle) ForfeitDue(now time.Time) bool {
	return b.PreTerminal() && now.After(b.ForfeitAt)
}

// EffectiveScores returns the pair of scores that decide (or decided) the
// battle: comparative scores when the judge ran, original scores otherwise.
func (b *Battle) EffectiveScores() (creator, responder float64) {
	if b.ComparativeCreatorScore != nil && b.ComparativeResponderScore != nil {
		return *b.ComparativeCreatorScore, *b.ComparativeResponderScore
	}
	return b.CreatorScore, b.ResponderScore
}

// ComputedWinner derives the winner from the effective scores. Used for
// completed records persisted before the winner field existed.
func (b *Battle) ComputedWinner() BattleWinner {
	creator, responder := b.EffectiveScores()
	switch {
	case creator > responder:
		return WinnerCreator
	case responder > creator:
		return WinnerOpponent
	default:
		return WinnerTie
	}
}

// View is the public projection returned by every battle endpoint.
type View struct {
	BattleID    string `json:"battleId"`
	CreatorID   string `json:"creatorId"`
	ResponderID string `json:"responderId,omitempty"`

	CreatorScore              float64  `json:"creatorScore"`
	ResponderScore            float64  `json:"responderScore"`
	ComparativeCreatorScore   *float64 `json:"comparativeCreatorScore,omitempty"`
	ComparativeResponderScore *float64 `json:"comparativeResponderScore,omitempty"`

	CreatorThumbnail   string `json:"creatorThumbnail,omitempty"`
	ResponderThumbnail string `json:"responderThumbnail,omitempty"`

	Mode   string       `json:"mode"`
	Status BattleStatus `json:"status"`
	Winner BattleWinner `json:"winner,omitempty"`

	Commentary         string   `json:"commentary,omitempty"`
	WinningFactor      string   `json:"winningFactor,omitempty"`
	MarginOfVictory    *float64 `json:"marginOfVictory,omitempty"`
	VerdictCreator     string   `json:"verdictCreator,omitempty"`
	VerdictResponder   string   `json:"verdictResponder,omitempty"`
	ScoresRecalculated bool     `json:"scoresRecalculated"`

	CreatedAt   time.Time  `json:"createdAt"`
	JoinedAt    *time.Time `json:"joinedAt,omitempty"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	ForfeitAt   time.Time  `json:"forfeitAt"`
}

// View builds the public projection, filling in a computed winner for
// completed records that never had one persisted.
func (b *Battle) View() *View {
	winner := b.Winner
	if winner == "" && b.Status == BattleStatusCompleted {
		winner = b.ComputedWinner()
	}
	return &View{
		BattleID:                  b.BattleID,
		CreatorID:                 b.CreatorID,
		ResponderID:               b.ResponderID,
		CreatorScore:              b.CreatorScore,
		ResponderScore:            b.ResponderScore,
		ComparativeCreatorScore:   b.ComparativeCreatorScore,
		ComparativeResponderScore: b.ComparativeResponderScore,
		CreatorThumbnail:          b.CreatorThumbnail,
		ResponderThumbnail:        b.ResponderThumbnail,
		Mode:                      b.Mode,
		Status:                    b.Status,
		Winner:                    winner,
		Commentary:                b.Commentary,
		WinningFactor:             b.WinningFactor,
		MarginOfVictory:           b.MarginOfVictory,
		VerdictCreator:            b.VerdictCreator,
		VerdictResponder:          b.VerdictResponder,
		ScoresRecalculated:        b.ScoresRecalculated,
		CreatedAt:                 b.CreatedAt,
		JoinedAt:                  b.JoinedAt,
		RespondedAt:               b.RespondedAt,
		ExpiresAt:                 b.ExpiresAt,
		ForfeitAt:                 b.ForfeitAt,
	}
}
