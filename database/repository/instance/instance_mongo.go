package instanceRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agendo/database"
	"agendo/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no instance matches the lookup.
var ErrNotFound = errors.New("instance not found")

// MongoInstanceRepo implements InstanceRepository using MongoDB.
type MongoInstanceRepo struct {
	coll *mongo.Collection
}

// NewMongoInstanceRepo creates a new InstanceRepository using MongoDB.
func NewMongoInstanceRepo() InstanceRepository {
	coll := database.MongoClient.Database("agendo").Collection("instances")
	repo := &MongoInstanceRepo{coll: coll}

	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create instance indexes: %v\n", err)
	}
	return repo
}

func newContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func (r *MongoInstanceRepo) ensureIndexes() error {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoInstanceRepo) GetByID(ctx context.Context, id string) (*models.Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var inst models.Instance
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&inst)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instance %s: %w", id, err)
	}
	return &inst, nil
}

func (r *MongoInstanceRepo) GetByName(ctx context.Context, name string) (*models.Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var inst models.Instance
	err := r.coll.FindOne(ctx, bson.M{"name": name}).Decode(&inst)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instance %s: %w", name, err)
	}
	return &inst, nil
}

func (r *MongoInstanceRepo) List(ctx context.Context) ([]models.Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer cursor.Close(ctx)

	var instances []models.Instance
	if err := cursor.All(ctx, &instances); err != nil {
		return nil, fmt.Errorf("failed to decode instances: %w", err)
	}
	return instances, nil
}

func (r *MongoInstanceRepo) Upsert(ctx context.Context, inst *models.Instance) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = now
	}
	inst.UpdatedAt = now

	filter := bson.M{"id": inst.ID}
	update := bson.M{"$set": inst}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert instance %s: %w", inst.ID, err)
	}
	return nil
}

func (r *MongoInstanceRepo) UpdateStatus(ctx context.Context, id, status string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{"status": status, "updatedAt": at}
	if status == models.InstanceStatusConnected {
		set["connectedAt"] = at
	}
	result, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update status for instance %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoInstanceRepo) SetQRCode(ctx context.Context, id, qr string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"qrCode": qr, "updatedAt": time.Now()}}
	result, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to store QR code for instance %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoInstanceRepo) UpdateAgentConfig(ctx context.Context, id string, cfg models.AgentConfig) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"agentConfig": cfg, "updatedAt": time.Now()}}
	result, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update agent config for instance %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
