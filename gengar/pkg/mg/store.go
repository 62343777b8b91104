package mg

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cgmev/gengar/defs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	GlucoseCollection = "glucose"
	EventsCollection  = "events"
)

type GlucoseStore interface {
	WriteGlucose(ctx context.Context, r *defs.Reading) (*mongo.UpdateResult, error)
	ReadGlucose(ctx context.Context, patient string, start, end time.Time) ([]defs.Reading, error)
	Patients(ctx context.Context) ([]string, error)
}

type EventStore interface {
	ReplaceEvents(ctx context.Context, patient string, start, end time.Time, evs []defs.Event) error
	ReadEvents(ctx context.Context, patient string, start, end time.Time) ([]defs.Event, error)
}

type MongoStore struct {
	Client *mongo.Client
	Logger *zap.Logger

	DBName string
}

func New(ctx context.Context, cfg defs.MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}

	mongoClient, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to mongo: %w", err)
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = defs.DefaultDB
	}

	return &MongoStore{
		Client: mongoClient,
		Logger: logger,
		DBName: dbName,
	}, nil
}

func (ms *MongoStore) InsertIfNew(ctx context.Context, collection string, filter bson.M, doc interface{}) (*mongo.UpdateResult, error) {
	ms.Logger.Debug(
		"inserting document",
		zap.String("collection", collection),
		zap.Any("filter", filter),
	)

	res, err := ms.Client.
		Database(ms.DBName).
		Collection(collection).
		UpdateOne(ctx, filter,
			bson.M{"$setOnInsert": doc},
			options.Update().SetUpsert(true),
		)
	if err != nil {
		return nil, fmt.Errorf("unable to insert if new: %w", err)
	}

	return res, nil
}

func (ms *MongoStore) getPatientBetween(ctx context.Context, collection, patient string, start, end time.Time, slicePtr interface{}) error {
	ms.Logger.Debug(
		"reading documents",
		zap.String("collection", collection),
		zap.String("patient", patient),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	findOptions := options.Find()
	findOptions.SetSort(bson.D{primitive.E{Key: "time", Value: 1}})

	cur, err := ms.Client.
		Database(ms.DBName).
		Collection(collection).
		Find(ctx, bson.M{
			"patient": patient,
			"time": bson.M{
				"$gte": primitive.NewDateTimeFromTime(start),
				"$lte": primitive.NewDateTimeFromTime(end),
			},
		}, findOptions)
	if err != nil {
		ms.Logger.Debug(
			"unable to read documents",
			zap.String("collection", collection),
			zap.String("patient", patient),
			zap.Error(err),
		)
		return fmt.Errorf("unable to read documents: %w", err)
	}

	return cur.All(ctx, slicePtr)
}

func (ms *MongoStore) WriteGlucose(ctx context.Context, r *defs.Reading) (*mongo.UpdateResult, error) {
	filter := bson.M{"patient": r.Patient, "time": r.Time}
	return ms.InsertIfNew(ctx, GlucoseCollection, filter, r)
}

func (ms *MongoStore) ReadGlucose(ctx context.Context, patient string, start, end time.Time) ([]defs.Reading, error) {
	var rs []defs.Reading
	if err := ms.getPatientBetween(ctx, GlucoseCollection, patient, start, end, &rs); err != nil {
		return nil, fmt.Errorf("unable to read glucose: %w", err)
	}
	return rs, nil
}

// Patients lists every patient with at least one reading, sorted.
func (ms *MongoStore) Patients(ctx context.Context) ([]string, error) {
	vals, err := ms.Client.
		Database(ms.DBName).
		Collection(GlucoseCollection).
		Distinct(ctx, "patient", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("unable to list patients: %w", err)
	}

	patients := make([]string, 0, len(vals))
	for _, v := range vals {
		if p, ok := v.(string); ok {
			patients = append(patients, p)
		}
	}
	sort.Strings(patients)
	return patients, nil
}

// ReplaceEvents drops the patient's stored events timestamped within
// [start, end] and stores evs in their place. Detection results depend on
// the analysed range, so a new run supersedes the old one wholesale.
func (ms *MongoStore) ReplaceEvents(ctx context.Context, patient string, start, end time.Time, evs []defs.Event) error {
	coll := ms.Client.Database(ms.DBName).Collection(EventsCollection)

	res, err := coll.DeleteMany(ctx, bson.M{
		"patient": patient,
		"time": bson.M{
			"$gte": primitive.NewDateTimeFromTime(start),
			"$lte": primitive.NewDateTimeFromTime(end),
		},
	})
	if err != nil {
		return fmt.Errorf("unable to clear events: %w", err)
	}

	ms.Logger.Debug("replacing events",
		zap.String("patient", patient),
		zap.Int64("deleted", res.DeletedCount),
		zap.Int("inserted", len(evs)),
	)

	if len(evs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(evs))
	for i := range evs {
		docs[i] = &evs[i]
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("unable to insert events: %w", err)
	}
	return nil
}

func (ms *MongoStore) ReadEvents(ctx context.Context, patient string, start, end time.Time) ([]defs.Event, error) {
	var evs []defs.Event
	if err := ms.getPatientBetween(ctx, EventsCollection, patient, start, end, &evs); err != nil {
		return nil, fmt.Errorf("unable to read events: %w", err)
	}
	return evs, nil
}
