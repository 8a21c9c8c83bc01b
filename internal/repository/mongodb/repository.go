package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/stationledger/internal/domain/models"
	"github.com/mamadbah2/stationledger/internal/ledger"
	"github.com/mamadbah2/stationledger/internal/repository"
)

// recordDocument is the BSON shape of a daily record. Quantities and prices are
// stored as Decimal128 so sums stay exact on the server side too.
type recordDocument struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty"`
	Date            time.Time            `bson:"date"`
	MaterialType    string               `bson:"material_type"`
	InputQuantity   primitive.Decimal128 `bson:"input_quantity"`
	OutputQuantity  primitive.Decimal128 `bson:"output_quantity"`
	UnitPriceInput  primitive.Decimal128 `bson:"unit_price_input"`
	UnitPriceOutput primitive.Decimal128 `bson:"unit_price_output"`
	Note            string               `bson:"note"`
	CreatedAt       time.Time            `bson:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at"`
}

func (d recordDocument) toModel() (models.DailyMaterialRecord, error) {
	values := make([]decimal.Decimal, 4)
	for i, raw := range []primitive.Decimal128{d.InputQuantity, d.OutputQuantity, d.UnitPriceInput, d.UnitPriceOutput} {
		v, err := fromDecimal128(raw)
		if err != nil {
			return models.DailyMaterialRecord{}, err
		}
		values[i] = v
	}

	return models.DailyMaterialRecord{
		Date:            ledger.Day(d.Date),
		MaterialType:    models.MaterialType(d.MaterialType),
		InputQuantity:   values[0],
		OutputQuantity:  values[1],
		UnitPriceInput:  values[2],
		UnitPriceOutput: values[3],
		Note:            d.Note,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	// A zero-valued Decimal128 is what missing fields decode to.
	if v == (primitive.Decimal128{}) {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode decimal %s: %w", v, err)
	}
	return d, nil
}

// Repository implements repository.RecordStore for MongoDB.
type Repository struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
	now        func() time.Time
}

// Verify interface compliance
var _ repository.RecordStore = (*Repository)(nil)

// NewMongoDBRepository connects, pings and ensures the unique (material_type, date) index.
func NewMongoDBRepository(ctx context.Context, uri, dbName, collName string, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	collection := client.Database(dbName).Collection(collName)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "material_type", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("material_date_unique"),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ensure record index: %w", err)
	}

	logger.Info("mongodb record store ready", zap.String("db", dbName), zap.String("collection", collName))
	return &Repository{client: client, collection: collection, logger: logger, now: time.Now}, nil
}

// GetRecord returns the record of one material for one day.
func (r *Repository) GetRecord(ctx context.Context, date time.Time, material models.MaterialType) (models.DailyMaterialRecord, error) {
	filter := bson.M{"material_type": string(material), "date": ledger.Day(date)}

	var doc recordDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.DailyMaterialRecord{}, repository.ErrRecordNotFound
		}
		return models.DailyMaterialRecord{}, fmt.Errorf("failed to find record: %w", err)
	}
	return doc.toModel()
}

// UpsertRecord sets the patched fields and initializes the others on first insert.
func (r *Repository) UpsertRecord(ctx context.Context, date time.Time, material models.MaterialType, patch models.RecordPatch) (models.DailyMaterialRecord, error) {
	day := ledger.Day(date)
	now := r.now().UTC()

	set := bson.M{"updated_at": now}
	setOnInsert := bson.M{"created_at": now}

	decimals := []struct {
		field string
		value *decimal.Decimal
	}{
		{"input_quantity", patch.Input},
		{"output_quantity", patch.Output},
		{"unit_price_input", patch.UnitPriceInput},
		{"unit_price_output", patch.UnitPriceOutput},
	}
	for _, f := range decimals {
		target, value := setOnInsert, decimal.Zero
		if f.value != nil {
			target, value = set, *f.value
		}
		encoded, err := toDecimal128(value)
		if err != nil {
			return models.DailyMaterialRecord{}, err
		}
		target[f.field] = encoded
	}

	if patch.Note != nil {
		set["note"] = *patch.Note
	} else {
		setOnInsert["note"] = ""
	}

	filter := bson.M{"material_type": string(material), "date": day}
	update := bson.M{"$set": set, "$setOnInsert": setOnInsert}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc recordDocument
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return models.DailyMaterialRecord{}, fmt.Errorf("failed to upsert record: %w", err)
	}

	r.logger.Debug("record upserted", zap.String("material", string(material)), zap.Time("date", day))
	return doc.toModel()
}

// QueryRange fetches the material's records within [start, end] with one sorted find.
func (r *Repository) QueryRange(ctx context.Context, material models.MaterialType, start, end time.Time) ([]models.DailyMaterialRecord, error) {
	filter := bson.M{
		"material_type": string(material),
		"date":          bson.M{"$gte": ledger.Day(start), "$lte": ledger.Day(end)},
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []recordDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}

	records := make([]models.DailyMaterialRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close closes the MongoDB connection.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
