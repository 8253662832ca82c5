// mongodb.go - MongoDB persistence for extraction results

package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pakorn/invoice_extract_ai/configs"
	"github.com/pakorn/invoice_extract_ai/internal/invoice"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var mongoClient *mongo.Client
var mongoDB *mongo.Database

const extractionsCollection = "extractions"

// InitMongoDB initializes the MongoDB connection.
func InitMongoDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(configs.MONGO_URI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	mongoClient = client
	mongoDB = client.Database(configs.MONGO_DB_NAME)

	log.Println("✓ Connected to MongoDB")
	return nil
}

// CloseMongoDB closes the MongoDB connection.
func CloseMongoDB() {
	if mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
		log.Println("MongoDB connection closed")
	}
}

// ExtractionDocument is the persisted form of one successful extraction.
type ExtractionDocument struct {
	RequestID   string         `bson:"request_id"`
	PayloadHash string         `bson:"payload_hash"`
	Record      invoice.Record `bson:"record"`
	DurationMS  int64          `bson:"duration_ms"`
	CreatedAt   time.Time      `bson:"created_at"`
}

// SaveExtraction stores a completed extraction. Persistence is
// best-effort: callers log the error and keep going, the pipeline result
// is never failed because of it.
func SaveExtraction(ctx context.Context, doc ExtractionDocument) error {
	if mongoDB == nil {
		return fmt.Errorf("mongodb not initialized")
	}
	doc.CreatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := mongoDB.Collection(extractionsCollection).InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("inserting extraction: %w", err)
	}
	return nil
}

// RecentExtractions returns the latest stored extractions, newest first.
func RecentExtractions(ctx context.Context, limit int64) ([]ExtractionDocument, error) {
	if mongoDB == nil {
		return nil, fmt.Errorf("mongodb not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cursor, err := mongoDB.Collection(extractionsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying extractions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []ExtractionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding extractions: %w", err)
	}
	return docs, nil
}
