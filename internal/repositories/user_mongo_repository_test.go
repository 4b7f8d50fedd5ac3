package repositories

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"exercisetracker/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestLogPipeline_Defaults(t *testing.T) {
	id := primitive.NewObjectID()
	pipeline := logPipeline(id, models.LogQuery{})
	require.Len(t, pipeline, 3)

	match := pipeline[0].(bson.M)["$match"].(bson.M)
	assert.Equal(t, id, match["_id"])

	project := pipeline[1].(bson.M)["$project"].(bson.M)
	assert.Equal(t, 1, project["username"])

	slice := project["exercises"].(bson.M)["$slice"].(bson.A)
	assert.Equal(t, MaxLogLimit, slice[1])

	cond := slice[0].(bson.M)["$filter"].(bson.M)["cond"].(bson.M)["$and"].(bson.A)
	gte := cond[0].(bson.M)["$gte"].(bson.A)
	lt := cond[1].(bson.M)["$lt"].(bson.A)
	assert.Equal(t, "$$exercise.date", gte[0])
	assert.Equal(t, MinLogDate, gte[1])
	assert.Equal(t, MaxLogDate, lt[1])

	count := pipeline[2].(bson.M)["$addFields"].(bson.M)["count"].(bson.M)
	assert.Equal(t, "$exercises", count["$size"])
}

func TestLogPipeline_BoundsAndLimit(t *testing.T) {
	from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2020, 12, 31, 0, 0, 0, 0, time.FixedZone("EST", -5*3600))

	pipeline := logPipeline(primitive.NewObjectID(), models.LogQuery{From: &from, To: &to, Limit: 7})

	slice := pipeline[1].(bson.M)["$project"].(bson.M)["exercises"].(bson.M)["$slice"].(bson.A)
	assert.Equal(t, 7, slice[1])

	cond := slice[0].(bson.M)["$filter"].(bson.M)["cond"].(bson.M)["$and"].(bson.A)
	assert.True(t, from.Equal(cond[0].(bson.M)["$gte"].(bson.A)[1].(time.Time)))
	assert.True(t, to.Equal(cond[1].(bson.M)["$lt"].(bson.A)[1].(time.Time)))
}

func TestEffectiveLimit(t *testing.T) {
	assert.Equal(t, MaxLogLimit, effectiveLimit(0))
	assert.Equal(t, MaxLogLimit, effectiveLimit(-1))
	assert.Equal(t, 1, effectiveLimit(1))
	assert.Equal(t, 999, effectiveLimit(999))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `fcc\_test`, escapeLike("fcc_test"))
	assert.Equal(t, `100\%\\`, escapeLike(`100%\`))
}

// newMongoTestRepository connects to MONGODB_TEST_URI and uses a throwaway
// database, or skips the test when the variable is unset.
func newMongoTestRepository(t *testing.T) *MongoUserRepository {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := ConnectMongo(ctx, uri)
	require.NoError(t, err)

	db := client.Database("exercisetracker_test_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewMongoUserRepository(ctx, db, log)
}

func TestMongoUserRepository_Lifecycle(t *testing.T) {
	repo := newMongoTestRepository(t)
	ctx := context.Background()

	alice := &models.User{Username: "alice"}
	require.NoError(t, repo.Create(ctx, alice))
	assert.ErrorIs(t, repo.Create(ctx, &models.User{Username: "alice"}), ErrDuplicateUsername)

	found, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, found.ID)

	for _, d := range []string{"2020-01-01", "2020-06-01", "2021-01-01"} {
		date, _ := time.Parse("2006-01-02", d)
		owner, err := repo.AppendExercise(ctx, alice.ID, models.Exercise{Description: d, Duration: 30, Date: date})
		require.NoError(t, err)
		assert.Equal(t, "alice", owner.Username)
	}

	from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)
	log, err := repo.GetLog(ctx, alice.ID, models.LogQuery{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 2, log.Count)
	require.Len(t, log.Exercises, 2)
	assert.Equal(t, "2020-01-01", log.Exercises[0].Description)

	log, err = repo.GetLog(ctx, alice.ID, models.LogQuery{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, log.Count)

	_, err = repo.GetLog(ctx, "not-an-object-id", models.LogQuery{})
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.AppendExercise(ctx, primitive.NewObjectID().Hex(), models.Exercise{Description: "x"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, repo.Create(ctx, &models.User{Username: "fcc_test_x"}))
	require.NoError(t, repo.Create(ctx, &models.User{Username: "fcc_test_y"}))
	n, err := repo.DeleteByUsernamePrefix(ctx, "fcc_test")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	users, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
	assert.Len(t, users[0].Exercises, 3)
}
