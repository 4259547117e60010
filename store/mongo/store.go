// Package mongo implements store.Store on MongoDB through the official
// v2 driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/rebill"
	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
	rebillstore "github.com/xraph/rebill/store"
)

// Collection name constants.
const (
	colItems    = "rebill_items"
	colInvoices = "rebill_invoices"
)

// compile-time interface check
var _ rebillstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	db *mongo.Database
}

// Open connects to uri and uses the database named dbName.
func Open(uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("rebill/mongo: connect: %w", err)
	}
	return New(client.Database(dbName)), nil
}

// New wraps an existing database handle.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

// Migrate creates indexes for all rebill collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%w: rebill/mongo: migrate %s indexes: %w", rebill.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.db.Client().Disconnect(ctx)
}

// ==================== History Store ====================

// AppendItems checks for stored IDs before inserting. Standalone servers
// have no multi-document transactions, so a concurrent writer racing on the
// same IDs can still leave a partial batch.
func (s *Store) AppendItems(ctx context.Context, items []item.Item) error {
	if err := rebillstore.CheckItems(items); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, len(items))
	docs := make([]*itemModel, len(items))
	for i, it := range items {
		ids[i] = it.ID.String()
		docs[i] = toItemModel(it)
	}

	coll := s.db.Collection(colItems)
	n, err := coll.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return fmt.Errorf("rebill/mongo: append items: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %d of %d items already stored", rebill.ErrAlreadyExists, n, len(items))
	}

	if _, err := coll.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %w", rebill.ErrAlreadyExists, err)
		}
		return fmt.Errorf("rebill/mongo: append items: %w", err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, itemID id.ItemID) (*item.Item, error) {
	var m itemModel
	err := s.db.Collection(colItems).
		FindOne(ctx, bson.M{"_id": itemID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, rebill.ErrItemNotFound
		}
		return nil, fmt.Errorf("rebill/mongo: get item: %w", err)
	}
	it, err := fromItemModel(&m)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *Store) ListItems(ctx context.Context, subID id.SubscriptionID) ([]item.Item, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.db.Collection(colItems).Find(ctx, bson.M{"subscription_id": subID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("rebill/mongo: list items: %w", err)
	}

	var models []itemModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("rebill/mongo: list items: %w", err)
	}

	result := make([]item.Item, 0, len(models))
	for i := range models {
		it, err := fromItemModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	return result, nil
}

func (s *Store) ListSubscriptions(ctx context.Context) ([]id.SubscriptionID, error) {
	var raw []string
	err := s.db.Collection(colItems).Distinct(ctx, "subscription_id", bson.M{}).Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("rebill/mongo: list subscriptions: %w", err)
	}

	result := make([]id.SubscriptionID, 0, len(raw))
	for _, r := range raw {
		subID, err := id.ParseSubscriptionID(r)
		if err != nil {
			return nil, err
		}
		result = append(result, subID)
	}
	return result, nil
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	_, err := s.db.Collection(colInvoices).InsertOne(ctx, toInvoiceModel(inv))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: invoice %s", rebill.ErrAlreadyExists, inv.ID)
		}
		return fmt.Errorf("rebill/mongo: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var m invoiceModel
	err := s.db.Collection(colInvoices).
		FindOne(ctx, bson.M{"_id": invID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, rebill.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("rebill/mongo: get invoice: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) ListInvoices(ctx context.Context, subID id.SubscriptionID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	filter := bson.M{"subscription_id": subID.String()}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colInvoices).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("rebill/mongo: list invoices: %w", err)
	}

	var models []invoiceModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("rebill/mongo: list invoices: %w", err)
	}

	result := make([]*invoice.Invoice, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inv
	}
	return result, nil
}

func (s *Store) VoidInvoice(ctx context.Context, invID id.InvoiceID, reason string) error {
	coll := s.db.Collection(colInvoices)
	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": invID.String(), "status": bson.M{"$ne": string(invoice.StatusVoided)}},
		bson.M{"$set": bson.M{
			"status":      string(invoice.StatusVoided),
			"voided_at":   time.Now().UTC(),
			"void_reason": reason,
		}},
	)
	if err != nil {
		return fmt.Errorf("rebill/mongo: void invoice: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := coll.CountDocuments(ctx, bson.M{"_id": invID.String()})
	if err != nil {
		return fmt.Errorf("rebill/mongo: void invoice: %w", err)
	}
	if n == 0 {
		return rebill.ErrInvoiceNotFound
	}
	return rebill.ErrInvoiceVoided
}

// ==================== Helpers ====================

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all rebill collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colItems: {
			{Keys: bson.D{{Key: "subscription_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "target_id", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		colInvoices: {
			{Keys: bson.D{{Key: "subscription_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "subscription_id", Value: 1}, {Key: "status", Value: 1}}},
		},
	}
}
