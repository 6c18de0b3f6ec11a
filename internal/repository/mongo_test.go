package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestMongoObjectIDRoundTrip(t *testing.T) {
	oid := bson.NewObjectID()
	created := time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)

	doc := fromBSON(bson.M{
		"_id":          oid,
		FieldCreatedAt: bson.NewDateTimeFromTime(created),
		"employeeId":   "U1",
		"rent":         int32(3500),
	})

	assert.Equal(t, oid.Hex(), doc.ID)
	assert.Equal(t, created, doc.CreatedAt)
	assert.Equal(t, map[string]any{"employeeId": "U1", "rent": 3500.0}, doc.Fields)

	filter := idFilter(doc.ID)
	in, ok := filter["_id"].(bson.M)
	require.True(t, ok, "hex ids match ObjectID or string")
	assert.Equal(t, bson.A{oid, oid.Hex()}, in["$in"])
}

func TestMongoStringIDs(t *testing.T) {
	doc := fromBSON(bson.M{"_id": "5b0f1c1e-0000-5000-8000-000000000001"})
	assert.Equal(t, "5b0f1c1e-0000-5000-8000-000000000001", doc.ID)
	assert.Equal(t, bson.M{"_id": doc.ID}, idFilter(doc.ID))
}
