package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AI2HU/gsnweb/internal/db"
	"github.com/AI2HU/gsnweb/internal/models"
)

// DefaultURI is used when the database options carry no uri
const DefaultURI = "mongodb://localhost:27017"

const collSessions = "sessions"

// MongoDB implements the Database interface for MongoDB
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	config   *models.DatabaseConfig
}

// New creates a new MongoDB database instance
func New(config *models.DatabaseConfig) (*MongoDB, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("mongodb database name is empty")
	}
	return &MongoDB{
		config: config,
	}, nil
}

// URI returns the connection URI
func (m *MongoDB) URI() string {
	if m.config.URI != "" {
		return m.config.URI
	}
	if uri := m.config.Options["uri"]; uri != "" {
		return uri
	}
	return DefaultURI
}

// Connect establishes connection to MongoDB
func (m *MongoDB) Connect(ctx context.Context) error {
	clientOptions := options.Client().ApplyURI(m.URI())

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m.client = client
	m.database = client.Database(m.config.Name)

	if err := m.createIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// Disconnect closes the MongoDB connection
func (m *MongoDB) Disconnect(ctx context.Context) error {
	if m.client != nil {
		return m.client.Disconnect(ctx)
	}
	return nil
}

// Ping checks the database connection
func (m *MongoDB) Ping(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("not connected to database")
	}
	return m.client.Ping(ctx, nil)
}

// sessionIndexes supports the expiry purge. Sessions are removed by DeleteExpiredSessions
// on the configured retention, not by a TTL index.
func sessionIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("sessions_expires_at"),
		},
	}
}

func (m *MongoDB) createIndexes(ctx context.Context) error {
	_, err := m.database.Collection(collSessions).Indexes().CreateMany(ctx, sessionIndexes())
	if err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}

	return nil
}

// SaveSession inserts or replaces a session
func (m *MongoDB) SaveSession(ctx context.Context, session *models.Session) error {
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	doc := bson.M{
		"_id":           session.ID,
		"access_token":  session.AccessToken,
		"refresh_token": session.RefreshToken,
		"token_type":    session.TokenType,
		"scope":         session.Scope,
		"created_at":    session.CreatedAt,
		"updated_at":    session.UpdatedAt,
	}
	if !session.ExpiresAt.IsZero() {
		doc["expires_at"] = session.ExpiresAt.UTC()
	}

	_, err := m.database.Collection(collSessions).ReplaceOne(ctx,
		bson.M{"_id": session.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID
func (m *MongoDB) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := m.database.Collection(collSessions).FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// DeleteSession deletes a session by ID
func (m *MongoDB) DeleteSession(ctx context.Context, id string) error {
	result, err := m.database.Collection(collSessions).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	return nil
}

// DeleteExpiredSessions deletes sessions that expired before the given time
func (m *MongoDB) DeleteExpiredSessions(ctx context.Context, before time.Time) (int, error) {
	result, err := m.database.Collection(collSessions).DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lt": before.UTC()},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return int(result.DeletedCount), nil
}

var _ db.Database = (*MongoDB)(nil)
