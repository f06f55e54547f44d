// Package store abstracts battle persistence behind a small key-value-style
// interface with conditional writes. Two implementations exist: MongoDB for
// shared deployments and a mutex-guarded in-process map for single-node and
// test use, selected at startup.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/agenticaihome/fitrate-backend-sub001/internal/models"
)

var (
	ErrNotFound        = errors.New("battle not found")
	ErrDuplicateID     = errors.New("battle id already exists")
	ErrConditionFailed = errors.New("conditional update did not match")
)

// Fields maps stored field names to new values for a partial update.
type Fields map[string]interface{}

// Condition guards a conditional update. A zero Condition matches any record
// with the given battle id.
type Condition struct {
	// StatusIn requires the stored status to be one of these canonical
	// statuses. Implementations expand legacy synonyms.
	StatusIn []models.BattleStatus
	// ResponderIn, when non-nil, requires the stored responderId to be one
	// of these values. Include "" to match records with no responder bound.
	ResponderIn []string
}

// Store is the battle persistence interface. Find returns records regardless
// of logical expiry; visibility filtering is the service's job so it can
// produce accurate "expired" errors.
type Store interface {
	Insert(ctx context.Context, battle *models.Battle) error
	Find(ctx context.Context, battleID string) (*models.Battle, error)
	Update(ctx context.Context, battleID string, fields Fields) (*models.Battle, error)

	// UpdateIf applies fields only when cond matches, as a single atomic
	// operation. Returns ErrConditionFailed when the record exists but the
	// condition does not hold.
	UpdateIf(ctx context.Context, battleID string, cond Condition, fields Fields) (*models.Battle, error)

	Delete(ctx context.Context, battleID string) error

	// FindForfeitDue returns pre-terminal battles whose forfeit window
	// elapsed before cutoff, for the background sweep.
	FindForfeitDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Battle, error)

	// AcquireLock takes a named lease so only one replica runs a given
	// background job at a time. Returns false when another owner holds it.
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error

	Close(ctx context.Context) error
}
