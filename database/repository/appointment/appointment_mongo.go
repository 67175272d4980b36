package appointmentRepo

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

// ErrNotFound is returned when no appointment matches the lookup.
var ErrNotFound = errors.New("appointment not found")

// ErrSlotTaken is returned by Insert when a confirmed appointment for
// the same instance and start already exists. The unique partial index
// makes this a write-time guarantee: two racing inserts of the same
// slot cannot both land, no matter how their re-validations interleave.
var ErrSlotTaken = errors.New("slot already has a confirmed appointment")

// MongoAppointmentRepo implements AppointmentRepository using MongoDB.
type MongoAppointmentRepo struct {
	coll *mongo.Collection
}

// NewMongoAppointmentRepo creates a new AppointmentRepository using MongoDB.
func NewMongoAppointmentRepo() AppointmentRepository {
	coll := database.MongoClient.Database("agendo").Collection("appointments")
	repo := &MongoAppointmentRepo{coll: coll}

	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create appointment indexes: %v\n", err)
	}
	return repo
}

func (r *MongoAppointmentRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			// One confirmed appointment per (instance, start); cancelled
			// records fall outside the partial filter and never block.
			Keys: bson.D{{Key: "instanceId", Value: 1}, {Key: "start", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": models.AppointmentStatusConfirmed}),
		},
		{Keys: bson.D{{Key: "calendarEventId", Value: 1}}, Options: options.Index().SetSparse(true)},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoAppointmentRepo) Insert(ctx context.Context, appt *models.Appointment) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, appt)
	if mongo.IsDuplicateKeyError(err) {
		return ErrSlotTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	return nil
}

func (r *MongoAppointmentRepo) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var appt models.Appointment
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&appt)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch appointment %s: %w", id, err)
	}
	return &appt, nil
}

// FindConfirmedOverlapping uses the half-open predicate: an appointment
// overlaps [start, end) iff its start is before end and its end is
// after start.
func (r *MongoAppointmentRepo) FindConfirmedOverlapping(ctx context.Context, instanceID string, start, end time.Time) ([]models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"instanceId": instanceID,
		"status":     models.AppointmentStatusConfirmed,
		"start":      bson.M{"$lt": end},
		"end":        bson.M{"$gt": start},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "id", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var appts []models.Appointment
	if err := cursor.All(ctx, &appts); err != nil {
		return nil, fmt.Errorf("failed to decode overlapping appointments: %w", err)
	}
	return appts, nil
}

func (r *MongoAppointmentRepo) SetStatus(ctx context.Context, id, status string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}}
	result, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to set status for appointment %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoAppointmentRepo) SetCalendarEventID(ctx context.Context, id, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"calendarEventId": eventID, "updatedAt": time.Now()}}
	result, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to set calendar event id for appointment %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoAppointmentRepo) ListByInstance(ctx context.Context, instanceID string, from, to time.Time) ([]models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"instanceId": instanceID,
		"start":      bson.M{"$gte": from, "$lt": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments for instance %s: %w", instanceID, err)
	}
	defer cursor.Close(ctx)

	var appts []models.Appointment
	if err := cursor.All(ctx, &appts); err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}
	return appts, nil
}
