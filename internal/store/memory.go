package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agenticaihome/fitrate-backend-sub001/internal/models"
)

// purgeGrace keeps expired records findable for a short while so the service
// can still answer "battle has expired" instead of "not found", matching the
// lag of a TTL-index sweep.
const purgeGrace = 5 * time.Minute

// MemoryStore is the single-process fallback: a mutex-guarded map with a
// janitor goroutine standing in for store-level TTL. Conditional updates hold
// the lock across check and write, which is what makes UpdateIf atomic here.
type MemoryStore struct {
	mu      sync.RWMutex
	battles map[string]*models.Battle
	locks   map[string]memoryLock
	janitor *time.Ticker
	done    chan struct{}
}

type memoryLock struct {
	owner string
	until time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		battles: make(map[string]*models.Battle),
		locks:   make(map[string]memoryLock),
		janitor: time.NewTicker(time.Minute),
		done:    make(chan struct{}),
	}

	go func() {
		for {
			select {
			case <-s.janitor.C:
				s.purgeExpired()
			case <-s.done:
				return
			}
		}
	}()

	return s
}

func (s *MemoryStore) purgeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-purgeGrace)
	for id, b := range s.battles {
		if b.ExpiresAt.Before(cutoff) {
			delete(s.battles, id)
		}
	}
}

func (s *MemoryStore) Insert(ctx context.Context, battle *models.Battle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.battles[battle.BattleID]; exists {
		return ErrDuplicateID
	}
	clone := *battle
	clone.Normalize()
	s.battles[battle.BattleID] = &clone
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, battleID string) (*models.Battle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.battles[battleID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *b
	return &clone, nil
}

func (s *MemoryStore) Update(ctx context.Context, battleID string, fields Fields) (*models.Battle, error) {
	return s.UpdateIf(ctx, battleID, Condition{}, fields)
}

func (s *MemoryStore) UpdateIf(ctx context.Context, battleID string, cond Condition, fields Fields) (*models.Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.battles[battleID]
	if !ok {
		return nil, ErrNotFound
	}
	if !matches(b, cond) {
		return nil, ErrConditionFailed
	}
	if err := apply(b, fields); err != nil {
		return nil, err
	}
	clone := *b
	return &clone, nil
}

func matches(b *models.Battle, cond Condition) bool {
	if len(cond.StatusIn) > 0 {
		ok := false
		for _, st := range cond.StatusIn {
			if b.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if cond.ResponderIn != nil {
		ok := false
		for _, id := range cond.ResponderIn {
			if b.ResponderID == id {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// apply mirrors a Mongo $set over the known battle fields.
func apply(b *models.Battle, fields Fields) error {
	for key, value := range fields {
		switch key {
		case "status":
			b.Status = value.(models.BattleStatus)
		case "winner":
			b.Winner = value.(models.BattleWinner)
		case "responderId":
			b.ResponderID = value.(string)
		case "responderScore":
			b.ResponderScore = value.(float64)
		case "responderThumbnail":
			b.ResponderThumbnail = value.(string)
		case "comparativeCreatorScore":
			v := value.(float64)
			b.ComparativeCreatorScore = &v
		case "comparativeResponderScore":
			v := value.(float64)
			b.ComparativeResponderScore = &v
		case "commentary":
			b.Commentary = value.(string)
		case "winningFactor":
			b.WinningFactor = value.(string)
		case "marginOfVictory":
			v := value.(float64)
			b.MarginOfVictory = &v
		case "verdictCreator":
			b.VerdictCreator = value.(string)
		case "verdictResponder":
			b.VerdictResponder = value.(string)
		case "scoresRecalculated":
			b.ScoresRecalculated = value.(bool)
		case "joinedAt":
			v := value.(time.Time)
			b.JoinedAt = &v
		case "respondedAt":
			v := value.(time.Time)
			b.RespondedAt = &v
		case "expiresAt":
			b.ExpiresAt = value.(time.Time)
		default:
			return fmt.Errorf("unknown battle field %q", key)
		}
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, battleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.battles, battleID)
	return nil
}

func (s *MemoryStore) FindForfeitDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Battle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []models.Battle
	for _, b := range s.battles {
		if b.PreTerminal() && b.ForfeitAt.Before(cutoff) {
			due = append(due, *b)
			if len(due) >= limit {
				break
			}
		}
	}
	return due, nil
}

func (s *MemoryStore) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if held, ok := s.locks[name]; ok && held.until.After(now) && held.owner != owner {
		return false, nil
	}
	s.locks[name] = memoryLock{owner: owner, until: now.Add(ttl)}
	return true, nil
}

func (s *MemoryStore) ReleaseLock(ctx context.Context, name, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held, ok := s.locks[name]; ok && held.owner == owner {
		delete(s.locks, name)
	}
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	s.janitor.Stop()
	close(s.done)
	return nil
}
