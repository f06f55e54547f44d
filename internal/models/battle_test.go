package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRewritesLegacyStatus(t *testing.T) {
	b := &Battle{Status: BattleStatusWaiting}
	b.Normalize()
	assert.Equal(t, BattleStatusCreated, b.Status)

	b = &Battle{Status: BattleStatusJoined}
	b.Normalize()
	assert.Equal(t, BattleStatusJoined, b.Status)
}

func TestStatusSynonyms(t *testing.T) {
	assert.ElementsMatch(t,
		[]BattleStatus{BattleStatusCreated, BattleStatusWaiting},
		StatusSynonyms(BattleStatusCreated))
	assert.Equal(t,
		[]BattleStatus{BattleStatusCompleted},
		StatusSynonyms(BattleStatusCompleted))
}

func TestPreTerminal(t *testing.T) {
	assert.True(t, (&Battle{Status: BattleStatusCreated}).PreTerminal())
	assert.True(t, (&Battle{Status: BattleStatusJoined}).PreTerminal())
	assert.False(t, (&Battle{Status: BattleStatusJudging}).PreTerminal())
	assert.False(t, (&Battle{Status: BattleStatusCompleted}).PreTerminal())
	assert.False(t, (&Battle{Status: BattleStatusCancelled}).PreTerminal())
}

func TestExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&Battle{ExpiresAt: now.Add(time.Hour)}).Expired(now))
	assert.True(t, (&Battle{ExpiresAt: now.Add(-time.Second)}).Expired(now))
	assert.True(t, (&Battle{Status: BattleStatusExpired, ExpiresAt: now.Add(time.Hour)}).Expired(now))
}

func TestForfeitDue(t *testing.T) {
	now := time.Now()
	overdue := &Battle{Status: BattleStatusCreated, ForfeitAt: now.Add(-time.Minute)}
	assert.True(t, overdue.ForfeitDue(now))

	fresh := &Battle{Status: BattleStatusCreated, ForfeitAt: now.Add(time.Hour)}
	assert.False(t, fresh.ForfeitDue(now))

	// Terminal battles never forfeit, no matter how old.
	done := &Battle{Status: BattleStatusCompleted, ForfeitAt: now.Add(-time.Hour)}
	assert.False(t, done.ForfeitDue(now))
}

func TestEffectiveScores(t *testing.T) {
	b := &Battle{CreatorScore: 72.3, ResponderScore: 68}
	creator, responder := b.EffectiveScores()
	assert.Equal(t, 72.3, creator)
	assert.Equal(t, 68.0, responder)

	cmpA, cmpB := 61.0, 74.0
	b.ComparativeCreatorScore = &cmpA
	b.ComparativeResponderScore = &cmpB
	creator, responder = b.EffectiveScores()
	assert.Equal(t, 61.0, creator)
	assert.Equal(t, 74.0, responder)
}

func TestComputedWinner(t *testing.T) {
	assert.Equal(t, WinnerCreator, (&Battle{CreatorScore: 80, ResponderScore: 60}).ComputedWinner())
	assert.Equal(t, WinnerOpponent, (&Battle{CreatorScore: 60, ResponderScore: 80}).ComputedWinner())
	assert.Equal(t, WinnerTie, (&Battle{CreatorScore: 70, ResponderScore: 70}).ComputedWinner())

	// Comparative scores decide when present.
	cmpA, cmpB := 40.0, 90.0
	b := &Battle{CreatorScore: 95, ResponderScore: 10, ComparativeCreatorScore: &cmpA, ComparativeResponderScore: &cmpB}
	assert.Equal(t, WinnerOpponent, b.ComputedWinner())
}

func TestViewComputesWinnerForLegacyCompletedRecords(t *testing.T) {
	b := &Battle{
		BattleID:       "btl1_x",
		Status:         BattleStatusCompleted,
		CreatorScore:   80,
		ResponderScore: 60,
	}
	view := b.View()
	assert.Equal(t, WinnerCreator, view.Winner)

	// A persisted winner is never second-guessed.
	b.Winner = WinnerTie
	assert.Equal(t, WinnerTie, b.View().Winner)

	// Open battles have no winner to compute.
	open := &Battle{Status: BattleStatusCreated, CreatorScore: 80}
	assert.Empty(t, open.View().Winner)
}
