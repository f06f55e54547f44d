package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/agenticaihome/fitrate-backend-sub001/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// Load config
	cfg, err := config.Load(config.GetEnv())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDB.URI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Disconnect(ctx)
	}()

	db := client.Database(cfg.MongoDB.Database)

	for _, name := range []string{"battles", "sweep_locks", "notify_events"} {
		result, err := db.Collection(name).DeleteMany(context.Background(), bson.M{})
		if err != nil {
			log.Fatalf("Failed to clear %s: %v", name, err)
		}
		fmt.Printf("Deleted %d documents from %s\n", result.DeletedCount, name)
	}

	fmt.Println("Database cleared successfully")
}
