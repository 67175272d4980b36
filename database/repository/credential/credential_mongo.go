package credentialRepo

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

// ErrNotFound is returned when an instance has no stored credential.
var ErrNotFound = errors.New("credential not found")

// MongoCredentialRepo implements CredentialRepository using MongoDB.
type MongoCredentialRepo struct {
	coll *mongo.Collection
}

// NewMongoCredentialRepo creates a new CredentialRepository using MongoDB.
func NewMongoCredentialRepo() CredentialRepository {
	coll := database.MongoClient.Database("agendo").Collection("credentials")
	repo := &MongoCredentialRepo{coll: coll}

	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create credential indexes: %v\n", err)
	}
	return repo
}

func (r *MongoCredentialRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "instanceId", Value: 1}}, Options: options.Index().SetUnique(true)},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoCredentialRepo) Get(ctx context.Context, instanceID string) (*models.Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var cred models.Credential
	err := r.coll.FindOne(ctx, bson.M{"instanceId": instanceID}).Decode(&cred)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credential for instance %s: %w", instanceID, err)
	}
	return &cred, nil
}

func (r *MongoCredentialRepo) Upsert(ctx context.Context, cred *models.Credential) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cred.UpdatedAt = time.Now()
	filter := bson.M{"instanceId": cred.InstanceID}
	update := bson.M{"$set": cred}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert credential for instance %s: %w", cred.InstanceID, err)
	}
	return nil
}

func (r *MongoCredentialRepo) Delete(ctx context.Context, instanceID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.coll.DeleteOne(ctx, bson.M{"instanceId": instanceID})
	if err != nil {
		return fmt.Errorf("failed to delete credential for instance %s: %w", instanceID, err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
