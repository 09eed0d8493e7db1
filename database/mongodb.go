package database

import (
	"context"
	"log"
	"time"

	"github.com/vastrakart/vastrakart-backend-go/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var DB *mongo.Database

var client *mongo.Client

func ConnectDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoURI := config.GetEnv("MONGODB_URI", "mongodb://localhost:27017")
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return err
	}

	// Ping the database
	err = c.Ping(ctx, nil)
	if err != nil {
		return err
	}

	client = c
	DB = c.Database(config.GetEnv("MONGODB_DATABASE", "vastrakart"))
	log.Println("🗄️ Connected to MongoDB!")
	return nil
}

func Disconnect(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}
