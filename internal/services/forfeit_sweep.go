package services

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/agenticaihome/fitrate-backend-sub001/internal/battle"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/models"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/notify"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/store"
)

const (
	sweepLockName = "forfeit_sweep"
	sweepLockTTL  = 5 * time.Minute
	sweepBatch    = 100
)

// ForfeitSweeper periodically completes battles whose forfeit window elapsed
// without a response. The read path applies the same transition lazily; the
// sweeper is the backstop for battles nobody ever reads again, so they still
// resolve (and notify the creator) before the TTL reaps them.
type ForfeitSweeper struct {
	store    store.Store
	notifier notify.Dispatcher
	stopCh   chan struct{}
	interval time.Duration
}

func NewForfeitSweeper(st store.Store, notifier notify.Dispatcher) *ForfeitSweeper {
	return &ForfeitSweeper{
		store:    st,
		notifier: notifier,
		stopCh:   make(chan struct{}),
		interval: 1 * time.Minute,
	}
}

// Start begins the periodic sweep loop in a background goroutine.
func (s *ForfeitSweeper) Start() {
	go s.runSweepLoop()
	log.Println("Forfeit sweeper started (interval: 1m)")
}

// Stop signals the sweep loop to exit.
func (s *ForfeitSweeper) Stop() {
	close(s.stopCh)
	log.Println("Forfeit sweeper stopped")
}

func (s *ForfeitSweeper) runSweepLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunSweepPass()
		}
	}
}

// RunSweepPass executes one sweep. Exported so startup can run an immediate
// pass that catches battles which timed out during downtime.
func (s *ForfeitSweeper) RunSweepPass() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	owner, err := os.Hostname()
	if err != nil {
		owner = "unknown"
	}

	acquired, err := s.store.AcquireLock(ctx, sweepLockName, owner, sweepLockTTL)
	if err != nil {
		log.Printf("Forfeit sweep: failed to acquire lock: %v", err)
		return
	}
	if !acquired {
		return // Another replica is sweeping
	}
	defer func() {
		if err := s.store.ReleaseLock(ctx, sweepLockName, owner); err != nil {
			log.Printf("Forfeit sweep: failed to release lock: %v", err)
		}
	}()

	now := time.Now()
	battles, err := s.store.FindForfeitDue(ctx, now, sweepBatch)
	if err != nil {
		log.Printf("Forfeit sweep: failed to query overdue battles: %v", err)
		return
	}

	if len(battles) == 0 {
		return
	}

	log.Printf("Forfeit sweep: found %d overdue battle(s)", len(battles))

	for i := range battles {
		s.forfeitOne(ctx, &battles[i], now)
	}
}

func (s *ForfeitSweeper) forfeitOne(ctx context.Context, b *models.Battle, now time.Time) {
	forfeited, err := battle.Forfeit(ctx, s.store, b, now)
	if err != nil {
		// Condition failures mean a read or another replica already
		// completed it; anything else is worth logging.
		if !errors.Is(err, store.ErrConditionFailed) && !errors.Is(err, store.ErrNotFound) {
			log.Printf("Forfeit sweep: failed to forfeit battle %s: %v", b.BattleID, err)
		}
		return
	}

	if s.notifier != nil {
		s.notifier.Notify(forfeited.CreatorID, notify.Event{
			Type:     notify.EventBattleForfeited,
			BattleID: forfeited.BattleID,
			Winner:   string(models.WinnerCreator),
			Message:  "Your opponent never responded. You win by forfeit.",
		})
	}

	log.Printf("Forfeit sweep: completed battle %s (winner: creator, reason: forfeit)", b.BattleID)
}
