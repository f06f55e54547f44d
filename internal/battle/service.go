// Package battle implements the battle state machine: create, join, respond,
// get with lazy forfeiture, and delete. All mutations on a single battle are
// funneled through conditional store writes so concurrent requests cannot
// double-bind a responder or double-apply a forfeit.
package battle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/agenticaihome/fitrate-backend-sub001/internal/judge"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/models"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/notify"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/store"
)

const (
	// Lifetime windows. A battle lives 24h, forfeits after 6h without a
	// response, and keeps completed artifacts around for at most 1h.
	battleTTL     = 24 * time.Hour
	forfeitWindow = 6 * time.Hour
	completedTTL  = time.Hour

	// Deletion TTLs: a cancelled battle stops being joinable within
	// minutes; any other deletion just fast-expires the record.
	cancelledTTL  = 5 * time.Minute
	fastExpireTTL = time.Minute

	defaultMode = "standard"

	forfeitCommentary = "Your opponent never responded, so this one goes to you by forfeit."
)

// DeleteWarning is returned with every successful delete.
const DeleteWarning = "Deletion is permanent. Any photos stored for this battle cannot be recovered."

var preTerminalStatuses = []models.BattleStatus{
	models.BattleStatusCreated,
	models.BattleStatusJoined,
}

type Service struct {
	store    store.Store
	judge    judge.Judge
	notifier notify.Dispatcher
}

func NewService(st store.Store, j judge.Judge, n notify.Dispatcher) *Service {
	return &Service{store: st, judge: j, notifier: n}
}

type CreateInput struct {
	Score     *float64
	CreatorID string
	Mode      string
	Thumbnail string
}

type RespondInput struct {
	Score       *float64
	ResponderID string
	Thumbnail   string
}

// DeleteResult reports the outcome of a delete request.
type DeleteResult struct {
	BattleID string `json:"battleId"`
	Deleted  bool   `json:"deleted"`
	Warning  string `json:"warning"`
}

func validScore(score *float64) bool {
	return score != nil && !math.IsNaN(*score) && !math.IsInf(*score, 0) &&
		*score >= 0 && *score <= 100
}

// Create opens a new battle for the caller. One store write with the 24h TTL
// hint; no notification is sent.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.View, error) {
	if !validScore(in.Score) {
		return nil, ErrInvalidScore
	}
	if in.CreatorID == "" {
		return nil, ErrMissingCreatorID
	}

	mode := in.Mode
	if mode == "" {
		mode = defaultMode
	}

	now := time.Now()
	battle := &models.Battle{
		BattleID:         NewBattleID(),
		CreatorID:        in.CreatorID,
		CreatorScore:     *in.Score,
		CreatorThumbnail: in.Thumbnail,
		Mode:             mode,
		Status:           models.BattleStatusCreated,
		CreatedAt:        now,
		ExpiresAt:        now.Add(battleTTL),
		ForfeitAt:        now.Add(forfeitWindow),
	}

	if err := s.store.Insert(ctx, battle); err != nil {
		return nil, fmt.Errorf("failed to create battle: %w", err)
	}

	return battle.View(), nil
}

// Join binds the caller as the battle's opponent. Re-joins by either bound
// party are idempotent; only one opponent ever wins the bind.
func (s *Service) Join(ctx context.Context, battleID, userID string) (*models.View, error) {
	if userID == "" {
		return nil, ErrMissingResponderID
	}

	b, err := s.store.Find(ctx, battleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if b.Status == models.BattleStatusCancelled {
		return nil, ErrNotFound
	}
	if b.Expired(time.Now()) {
		return nil, ErrExpired
	}

	// Idempotent views: the creator checking in, a battle already past the
	// join stage, or the bound opponent re-joining.
	if userID == b.CreatorID {
		return b.View(), nil
	}
	if b.Status == models.BattleStatusCompleted || b.Status == models.BattleStatusJudging {
		return b.View(), nil
	}
	if b.ResponderID == userID {
		return b.View(), nil
	}
	if b.ResponderID != "" {
		return nil, ErrOpponentBound
	}

	now := time.Now()
	joined, err := s.store.UpdateIf(ctx, battleID,
		store.Condition{
			StatusIn:    []models.BattleStatus{models.BattleStatusCreated},
			ResponderIn: []string{""},
		},
		store.Fields{
			"responderId": userID,
			"status":      models.BattleStatusJoined,
			"joinedAt":    now,
		},
	)
	if errors.Is(err, store.ErrConditionFailed) {
		// Lost a race; reload and classify.
		return s.classifyJoinRace(ctx, battleID, userID)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.notify(b.CreatorID, notify.Event{
		Type:     notify.EventBattleJoined,
		BattleID: battleID,
		Message:  "Someone opened your battle. A response may be coming.",
	})

	return joined.View(), nil
}

func (s *Service) classifyJoinRace(ctx context.Context, battleID, userID string) (*models.View, error) {
	b, err := s.store.Find(ctx, battleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	switch {
	case b.ResponderID == userID:
		return b.View(), nil
	case b.Status == models.BattleStatusCompleted || b.Status == models.BattleStatusJudging:
		return b.View(), nil
	case b.Status == models.BattleStatusCancelled:
		return nil, ErrNotFound
	default:
		return nil, ErrOpponentBound
	}
}

// Respond submits the second score, runs the comparative judge, and
// completes the battle. Retries by the bound responder are idempotent.
func (s *Service) Respond(ctx context.Context, battleID string, in RespondInput) (*models.View, error) {
	if !validScore(in.Score) {
		return nil, ErrInvalidScore
	}
	if in.ResponderID == "" {
		return nil, ErrMissingResponderID
	}

	// Load even expired records so the caller gets "expired", not
	// "not found".
	b, err := s.store.Find(ctx, battleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if b.Status == models.BattleStatusCancelled {
		return nil, ErrNotFound
	}

	now := time.Now()
	if b.Expired(now) {
		return nil, ErrExpired
	}

	if b.Status == models.BattleStatusCompleted || b.Status == models.BattleStatusJudging {
		if b.ResponderID == in.ResponderID {
			// Safe retry: hand back the one true result.
			return b.View(), nil
		}
		return nil, ErrAlreadyCompleted
	}
	if b.ResponderID != "" && b.ResponderID != in.ResponderID {
		return nil, ErrOpponentBound
	}
	if in.ResponderID == b.CreatorID {
		return nil, ErrSelfBattle
	}

	// Bind the responder with a single conditional write. Two concurrent
	// responders both reaching this point is the race this closes: only
	// one write matches, the other reloads and gets a definitive error.
	bindFields := store.Fields{
		"status":         models.BattleStatusJudging,
		"responderId":    in.ResponderID,
		"responderScore": *in.Score,
		"respondedAt":    now,
	}
	if in.Thumbnail != "" {
		bindFields["responderThumbnail"] = in.Thumbnail
	}

	bound, err := s.store.UpdateIf(ctx, battleID,
		store.Condition{
			StatusIn:    preTerminalStatuses,
			ResponderIn: []string{"", in.ResponderID},
		},
		bindFields,
	)
	if errors.Is(err, store.ErrConditionFailed) {
		return s.classifyRespondRace(ctx, battleID, in.ResponderID)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	final, err := s.completeBattle(ctx, bound, now)
	if err != nil {
		return nil, err
	}

	s.notify(final.CreatorID, notify.Event{
		Type:     notify.EventBattleCompleted,
		BattleID: battleID,
		Winner:   string(final.Winner),
		Message:  "Your battle has been decided.",
	})

	return final.View(), nil
}

func (s *Service) classifyRespondRace(ctx context.Context, battleID, responderID string) (*models.View, error) {
	b, err := s.store.Find(ctx, battleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	switch {
	case b.Status == models.BattleStatusCancelled:
		return nil, ErrNotFound
	case b.ResponderID == responderID:
		return b.View(), nil
	case b.ResponderID != "":
		// The race loser: someone else won the bind.
		return nil, ErrOpponentBound
	case b.Status == models.BattleStatusCompleted || b.Status == models.BattleStatusJudging:
		return nil, ErrAlreadyCompleted
	default:
		return nil, ErrOpponentBound
	}
}

// completeBattle runs the judge (when both artifacts exist), falls back to
// the submitted scores otherwise, and persists the terminal state. Only the
// bound responder ever reaches this stage, so these writes need no guard.
func (s *Service) completeBattle(ctx context.Context, b *models.Battle, now time.Time) (*models.Battle, error) {
	fields := store.Fields{
		"status": models.BattleStatusCompleted,
	}

	var verdict *judge.Verdict
	if s.judge != nil && b.CreatorThumbnail != "" && b.ResponderThumbnail != "" {
		v, err := s.judge.Compare(ctx, b.CreatorThumbnail, b.ResponderThumbnail, b.Mode)
		if err != nil {
			// Availability over judging fidelity: the battle still
			// completes on the submitted scores.
			log.Printf("Comparative judge failed for battle %s, falling back to submitted scores: %v", b.BattleID, err)
		} else {
			verdict = v
		}
	}

	if verdict != nil {
		fields["comparativeCreatorScore"] = verdict.ScoreA
		fields["comparativeResponderScore"] = verdict.ScoreB
		fields["commentary"] = verdict.Commentary
		fields["winningFactor"] = verdict.WinningFactor
		fields["marginOfVictory"] = verdict.Margin
		fields["verdictCreator"] = verdict.VerdictA
		fields["verdictResponder"] = verdict.VerdictB
		fields["scoresRecalculated"] = true

		switch verdict.Winner {
		case judge.WinnerFirst:
			fields["winner"] = models.WinnerCreator
		case judge.WinnerSecond:
			fields["winner"] = models.WinnerOpponent
		default:
			fields["winner"] = models.WinnerTie
		}
	} else {
		fields["scoresRecalculated"] = false
		switch {
		case b.CreatorScore > b.ResponderScore:
			fields["winner"] = models.WinnerCreator
		case b.ResponderScore > b.CreatorScore:
			fields["winner"] = models.WinnerOpponent
		default:
			fields["winner"] = models.WinnerTie
		}
	}

	// Completed battles only ever shrink their expiry.
	if expiry := now.Add(completedTTL); expiry.Before(b.ExpiresAt) {
		fields["expiresAt"] = expiry
	}

	final, err := s.store.Update(ctx, b.BattleID, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to complete battle %s: %w", b.BattleID, err)
	}
	return final, nil
}

// Get returns the battle projection, advancing overdue battles to their
// forfeited terminal state first. The forfeit transition is a conditional
// write, so concurrent reads apply it at most once.
func (s *Service) Get(ctx context.Context, battleID string, includeExpired bool) (*models.View, error) {
	b, err := s.store.Find(ctx, battleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if b.ForfeitDue(now) {
		forfeited, err := Forfeit(ctx, s.store, b, now)
		if err == nil {
			b = forfeited
			s.notify(b.CreatorID, notify.Event{
				Type:     notify.EventBattleForfeited,
				BattleID: battleID,
				Winner:   string(models.WinnerCreator),
				Message:  forfeitCommentary,
			})
		} else if errors.Is(err, store.ErrConditionFailed) {
			// A concurrent read or the sweeper got there first.
			if reloaded, findErr := s.store.Find(ctx, battleID); findErr == nil {
				b = reloaded
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	if !includeExpired {
		if b.Status == models.BattleStatusCancelled || b.Expired(now) {
			return nil, ErrNotFound
		}
	}

	return b.View(), nil
}

// Forfeit applies the forfeited terminal state to an overdue battle:
// creator wins, responder scores zero. Shared by the read path and the
// background sweeper; the status condition guarantees a single application.
func Forfeit(ctx context.Context, st store.Store, b *models.Battle, now time.Time) (*models.Battle, error) {
	fields := store.Fields{
		"status":             models.BattleStatusCompleted,
		"winner":             models.WinnerCreator,
		"responderScore":     float64(0),
		"commentary":         forfeitCommentary,
		"scoresRecalculated": false,
	}
	if b.ResponderID == "" {
		fields["responderId"] = models.ForfeitResponderID
	}
	if expiry := now.Add(completedTTL); expiry.Before(b.ExpiresAt) {
		fields["expiresAt"] = expiry
	}

	return st.UpdateIf(ctx, b.BattleID,
		store.Condition{StatusIn: preTerminalStatuses},
		fields,
	)
}

// Delete removes a battle on behalf of a participant. Deleting a missing
// battle succeeds (idempotent); anyone else gets ErrUnauthorized. The record
// is fast-expired rather than removed outright so in-flight readers see a
// consistent terminal state until the TTL fires.
func (s *Service) Delete(ctx context.Context, battleID, callerID string) (*DeleteResult, error) {
	b, err := s.store.Find(ctx, battleID)
	if errors.Is(err, store.ErrNotFound) {
		return &DeleteResult{BattleID: battleID, Deleted: true, Warning: DeleteWarning}, nil
	}
	if err != nil {
		return nil, err
	}

	if callerID == "" || (callerID != b.CreatorID && callerID != b.ResponderID) {
		return nil, ErrUnauthorized
	}

	now := time.Now()
	fields := store.Fields{}
	expiry := now.Add(fastExpireTTL)
	if b.PreTerminal() && callerID == b.CreatorID {
		// Creator withdrawing an open battle: mark it cancelled so it
		// stops being joinable right away, then let the TTL reap it.
		fields["status"] = models.BattleStatusCancelled
		expiry = now.Add(cancelledTTL)
	}
	// Expiry only ever shrinks; a record already closer to lapsing keeps
	// its earlier deadline.
	if expiry.Before(b.ExpiresAt) {
		fields["expiresAt"] = expiry
	}
	if len(fields) == 0 {
		return &DeleteResult{BattleID: battleID, Deleted: true, Warning: DeleteWarning}, nil
	}

	if _, err := s.store.Update(ctx, battleID, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &DeleteResult{BattleID: battleID, Deleted: true, Warning: DeleteWarning}, nil
		}
		return nil, fmt.Errorf("failed to delete battle %s: %w", battleID, err)
	}

	return &DeleteResult{BattleID: battleID, Deleted: true, Warning: DeleteWarning}, nil
}

// notify dispatches fire-and-forget; a nil dispatcher disables push.
func (s *Service) notify(userID string, event notify.Event) {
	if s.notifier == nil || userID == "" {
		return
	}
	s.notifier.Notify(userID, event)
}
