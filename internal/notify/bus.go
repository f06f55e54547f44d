package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// busEvent is the document stored in the notify_events collection.
type busEvent struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	OriginMachineID string             `bson:"originMachineId"`
	UserID          string             `bson:"userId"`
	Message         []byte             `bson:"message"`
	CreatedAt       time.Time          `bson:"createdAt"`
}

// Bus publishes notification events to MongoDB and watches for events from
// other replicas via Change Streams, so a push reaches a user no matter
// which replica their WebSocket is attached to.
type Bus struct {
	machineID  string
	collection *mongo.Collection
	hub        *Hub
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	running    bool
	mu         sync.Mutex
}

func generateMachineID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// NewBus creates a Bus. If collection is nil, the Bus runs in local-only mode
// (Publish is a no-op, no watcher runs).
func NewBus(collection *mongo.Collection, hub *Hub) *Bus {
	return &Bus{
		machineID:  generateMachineID(),
		collection: collection,
		hub:        hub,
	}
}

// EnsureIndexes creates the TTL index on notify_events.createdAt.
// Idempotent — safe to call on every startup.
func (b *Bus) EnsureIndexes(ctx context.Context) error {
	if b.collection == nil {
		return nil
	}
	_, err := b.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: 1}},
		Options: options.Index().
			SetExpireAfterSeconds(60).
			SetName("ttl_createdAt_60s"),
	})
	return err
}

// Start begins the Change Stream watcher in a background goroutine.
func (b *Bus) Start() {
	if b.collection == nil {
		log.Println("[NotifyBus] No collection configured, running in local-only mode")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancelFunc = cancel
	b.running = true
	b.wg.Add(1)

	go b.watchLoop(ctx)
	log.Printf("[NotifyBus] Started (machineId=%s)", b.machineID)
}

// Stop cancels the Change Stream watcher and waits for it to exit.
func (b *Bus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	if b.cancelFunc != nil {
		b.cancelFunc()
	}
	b.wg.Wait()
	log.Println("[NotifyBus] Stopped")
}

// Publish inserts a notification event. Errors are logged, never returned
// (fire-and-forget).
func (b *Bus) Publish(userID string, message []byte) {
	if b.collection == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	doc := busEvent{
		OriginMachineID: b.machineID,
		UserID:          userID,
		Message:         message,
		CreatedAt:       time.Now(),
	}
	if _, err := b.collection.InsertOne(ctx, doc); err != nil {
		log.Printf("[NotifyBus] Failed to publish event: %v", err)
	}
}

// watchLoop runs the Change Stream in a reconnecting loop.
func (b *Bus) watchLoop(ctx context.Context) {
	defer b.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}
		err := b.watch(ctx)
		if ctx.Err() != nil {
			return // normal shutdown
		}
		log.Printf("[NotifyBus] Change stream error (reconnecting in 2s): %v", err)
		time.Sleep(2 * time.Second)
	}
}

func (b *Bus) watch(ctx context.Context) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: "insert"},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	cs, err := b.collection.Watch(ctx, pipeline, opts)
	if err != nil {
		return err
	}
	defer cs.Close(ctx)

	for cs.Next(ctx) {
		var changeDoc struct {
			FullDocument busEvent `bson:"fullDocument"`
		}
		if err := cs.Decode(&changeDoc); err != nil {
			log.Printf("[NotifyBus] Failed to decode change event: %v", err)
			continue
		}

		event := changeDoc.FullDocument

		// Skip events from this machine (already delivered locally)
		if event.OriginMachineID == b.machineID {
			continue
		}

		b.hub.Send(event.UserID, event.Message)
	}

	return cs.Err()
}
