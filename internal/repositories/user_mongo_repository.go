package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"exercisetracker/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

type userDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Exercises []exerciseDocument `bson:"exercises"`
}

type exerciseDocument struct {
	Description string    `bson:"description"`
	Duration    int       `bson:"duration"`
	Date        time.Time `bson:"date"`
}

type logDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Username  string             `bson:"username"`
	Exercises []exerciseDocument `bson:"exercises"`
	Count     int                `bson:"count"`
}

// ConnectMongo opens a client for uri and verifies it with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// MongoUserRepository is a MongoDB implementation of UserRepository. Each
// user is one document with its exercises embedded as an array.
type MongoUserRepository struct {
	collection *mongo.Collection
	log        *logrus.Logger
}

// NewMongoUserRepository creates a MongoUserRepository over db and makes sure
// the unique username index exists.
func NewMongoUserRepository(ctx context.Context, db *mongo.Database, log *logrus.Logger) *MongoUserRepository {
	collection := db.Collection(usersCollection)

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		// Existing collections may already hold duplicates; find-before-create
		// still applies without the index.
		log.WithError(err).Warn("failed to create unique index on username")
	}

	return &MongoUserRepository{
		collection: collection,
		log:        log,
	}
}

// Create inserts a new user document with an empty exercise list.
func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	doc := userDocument{
		ID:        primitive.NewObjectID(),
		Username:  user.Username,
		Exercises: []exerciseDocument{},
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = doc.ID.Hex()
	user.Exercises = []models.Exercise{}
	return nil
}

// GetByUsername retrieves a user by exact username.
func (r *MongoUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var doc userDocument
	if err := r.collection.FindOne(ctx, bson.M{"username": username}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	return doc.toModel(), nil
}

// GetAll retrieves every user in natural order.
func (r *MongoUserRepository) GetAll(ctx context.Context) ([]models.User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to get all users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	users := make([]models.User, 0, len(docs))
	for i := range docs {
		users = append(users, *docs[i].toModel())
	}
	return users, nil
}

// DeleteByUsernamePrefix deletes every user whose username starts with prefix.
func (r *MongoUserRepository) DeleteByUsernamePrefix(ctx context.Context, prefix string) (int64, error) {
	filter := bson.M{"username": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}}
	res, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete users with prefix %s: %w", prefix, err)
	}
	r.log.WithFields(logrus.Fields{"prefix": prefix, "deleted": res.DeletedCount}).Debug("deleted users by prefix")
	return res.DeletedCount, nil
}

// AppendExercise pushes exercise onto the user's exercises array.
func (r *MongoUserRepository) AppendExercise(ctx context.Context, userID string, exercise models.Exercise) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	update := bson.M{
		"$push": bson.M{"exercises": exerciseDocument{
			Description: exercise.Description,
			Duration:    exercise.Duration,
			Date:        exercise.Date.UTC(),
		}},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"username": 1})

	var doc userDocument
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to append exercise for user %s: %w", userID, err)
	}
	return &models.User{ID: doc.ID.Hex(), Username: doc.Username}, nil
}

// GetLog runs the log query as a single aggregation.
func (r *MongoUserRepository) GetLog(ctx context.Context, userID string, query models.LogQuery) (*models.Log, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	cursor, err := r.collection.Aggregate(ctx, logPipeline(oid, query))
	if err != nil {
		return nil, fmt.Errorf("failed to query log for user %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, fmt.Errorf("failed to query log for user %s: %w", userID, err)
		}
		return nil, ErrUserNotFound
	}

	var doc logDocument
	if err := cursor.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode log for user %s: %w", userID, err)
	}

	log := &models.Log{
		UserID:    doc.ID.Hex(),
		Username:  doc.Username,
		Count:     doc.Count,
		Exercises: make([]models.Exercise, 0, len(doc.Exercises)),
	}
	for _, e := range doc.Exercises {
		log.Exercises = append(log.Exercises, e.toModel())
	}
	return log, nil
}

// logPipeline matches one user, keeps exercises dated in [from, to), slices
// the first limit of them and counts what is left.
func logPipeline(id primitive.ObjectID, query models.LogQuery) bson.A {
	from, to := MinLogDate, MaxLogDate
	if query.From != nil {
		from = query.From.UTC()
	}
	if query.To != nil {
		to = query.To.UTC()
	}

	filtered := bson.M{
		"$filter": bson.M{
			"input": bson.M{"$ifNull": bson.A{"$exercises", bson.A{}}},
			"as":    "exercise",
			"cond": bson.M{
				"$and": bson.A{
					bson.M{"$gte": bson.A{"$$exercise.date", from}},
					bson.M{"$lt": bson.A{"$$exercise.date", to}},
				},
			},
		},
	}

	return bson.A{
		bson.M{"$match": bson.M{"_id": id}},
		bson.M{"$project": bson.M{
			"username":  1,
			"exercises": bson.M{"$slice": bson.A{filtered, effectiveLimit(query.Limit)}},
		}},
		bson.M{"$addFields": bson.M{"count": bson.M{"$size": "$exercises"}}},
	}
}

func (d *userDocument) toModel() *models.User {
	user := &models.User{
		ID:        d.ID.Hex(),
		Username:  d.Username,
		Exercises: make([]models.Exercise, 0, len(d.Exercises)),
	}
	for _, e := range d.Exercises {
		user.Exercises = append(user.Exercises, e.toModel())
	}
	return user
}

func (d exerciseDocument) toModel() models.Exercise {
	return models.Exercise{
		Description: d.Description,
		Duration:    d.Duration,
		Date:        d.Date.UTC(),
	}
}
