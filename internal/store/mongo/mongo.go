package mongo

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

const (
	colMerchants    = "merchants"
	colUsers        = "users"
	colOutlets      = "outlets"
	colProducts     = "products"
	colSuppliers    = "suppliers"
	colAdjustments  = "stock_adjustments"
	colSettings     = "settings"
	colTransactions = "transactions"
	colAuditLogs    = "audit_logs"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects, pings and makes sure indexes exist.
func New(ctx context.Context, uri string, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping")
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "merchant_id", Value: 1}, {Key: "role", Value: 1}}},
		},
		colOutlets: {
			{Keys: bson.D{{Key: "merchant_id", Value: 1}}},
		},
		colProducts: {
			{Keys: bson.D{{Key: "merchant_id", Value: 1}, {Key: "sku", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colSuppliers: {
			{Keys: bson.D{{Key: "merchant_id", Value: 1}}},
		},
		colAdjustments: {
			{Keys: bson.D{{Key: "merchant_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "merchant_id", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "outlet_id", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "kasir_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		colAuditLogs: {
			{Keys: bson.D{{Key: "merchant_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.col(name).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "create %s indexes", name)
		}
	}
	return nil
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrConflict
	default:
		return err
	}
}

func insert[T any](ctx context.Context, c *mongo.Collection, doc T) (*T, error) {
	if _, err := c.InsertOne(ctx, doc); err != nil {
		return nil, mapErr(err)
	}
	return &doc, nil
}

func findOne[T any](ctx context.Context, c *mongo.Collection, filter bson.M) (*T, error) {
	var out T
	if err := c.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]T, error) {
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]T, 0)
	for cur.Next(ctx) {
		var item T
		if err := cur.Decode(&item); err != nil {
			return nil, errors.Wrap(err, "decode")
		}
		out = append(out, item)
	}
	return out, cur.Err()
}

func replace[T any](ctx context.Context, c *mongo.Collection, id string, doc T) (*T, error) {
	res, err := c.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return nil, mapErr(err)
	}
	if res.MatchedCount == 0 {
		return nil, store.ErrNotFound
	}
	return &doc, nil
}

func byName() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
}

func newest(field string, limit int) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: field, Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

func (s *Store) CreateMerchant(ctx context.Context, merchant domain.Merchant) (*domain.Merchant, error) {
	return insert(ctx, s.col(colMerchants), merchant)
}

func (s *Store) GetMerchant(ctx context.Context, id string) (*domain.Merchant, error) {
	return findOne[domain.Merchant](ctx, s.col(colMerchants), bson.M{"_id": id})
}

func (s *Store) ListMerchants(ctx context.Context) ([]domain.Merchant, error) {
	return findAll[domain.Merchant](ctx, s.col(colMerchants), bson.M{}, byName())
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return insert(ctx, s.col(colUsers), user)
}

func (s *Store) GetUser(ctx context.Context, uid string) (*domain.UserAccount, error) {
	return findOne[domain.UserAccount](ctx, s.col(colUsers), bson.M{"_id": uid})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	return findOne[domain.UserAccount](ctx, s.col(colUsers), bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (s *Store) ListUsers(ctx context.Context, merchantID string, role string) ([]domain.UserAccount, error) {
	filter := bson.M{"merchant_id": merchantID}
	if role != "" {
		filter["role"] = role
	}
	return findAll[domain.UserAccount](ctx, s.col(colUsers), filter,
		options.Find().SetSort(bson.D{{Key: "display_name", Value: 1}}))
}

func (s *Store) CreateOutlet(ctx context.Context, outlet domain.Outlet) (*domain.Outlet, error) {
	return insert(ctx, s.col(colOutlets), outlet)
}

func (s *Store) GetOutlet(ctx context.Context, id string) (*domain.Outlet, error) {
	return findOne[domain.Outlet](ctx, s.col(colOutlets), bson.M{"_id": id})
}

func (s *Store) UpdateOutlet(ctx context.Context, outlet domain.Outlet) (*domain.Outlet, error) {
	return replace(ctx, s.col(colOutlets), outlet.ID, outlet)
}

func (s *Store) ListOutlets(ctx context.Context, merchantID string) ([]domain.Outlet, error) {
	return findAll[domain.Outlet](ctx, s.col(colOutlets), bson.M{"merchant_id": merchantID}, byName())
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	return insert(ctx, s.col(colProducts), product)
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return findOne[domain.Product](ctx, s.col(colProducts), bson.M{"_id": id})
}

// UpdateProduct rewrites the catalogue fields. Stock is left alone.
func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	update := bson.M{"$set": bson.M{
		"sku":        product.SKU,
		"name":       product.Name,
		"category":   product.Category,
		"price":      product.Price,
		"active":     product.Active,
		"updated_at": product.UpdatedAt,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var out domain.Product
	if err := s.col(colProducts).FindOneAndUpdate(ctx, bson.M{"_id": product.ID}, update, opts).Decode(&out); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func (s *Store) ListProducts(ctx context.Context, merchantID string) ([]domain.Product, error) {
	return findAll[domain.Product](ctx, s.col(colProducts), bson.M{"merchant_id": merchantID}, byName())
}

func (s *Store) AdjustStock(ctx context.Context, productID string, delta int) (*domain.Product, error) {
	filter := bson.M{"_id": productID}
	if delta < 0 {
		filter["stock"] = bson.M{"$gte": -delta}
	}
	update := bson.M{
		"$inc": bson.M{"stock": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var out domain.Product
	err := s.col(colProducts).FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := s.GetProduct(ctx, productID); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrInsufficientStock
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	return insert(ctx, s.col(colSuppliers), supplier)
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	return findOne[domain.Supplier](ctx, s.col(colSuppliers), bson.M{"_id": id})
}

func (s *Store) ListSuppliers(ctx context.Context, merchantID string) ([]domain.Supplier, error) {
	return findAll[domain.Supplier](ctx, s.col(colSuppliers), bson.M{"merchant_id": merchantID}, byName())
}

func (s *Store) CreateStockAdjustment(ctx context.Context, adj domain.StockAdjustment) error {
	_, err := s.col(colAdjustments).InsertOne(ctx, adj)
	return mapErr(err)
}

func (s *Store) ListStockAdjustments(ctx context.Context, merchantID string, limit int) ([]domain.StockAdjustment, error) {
	return findAll[domain.StockAdjustment](ctx, s.col(colAdjustments), bson.M{"merchant_id": merchantID}, newest("created_at", limit))
}

func (s *Store) GetSettings(ctx context.Context, merchantID string) (*domain.Settings, error) {
	return findOne[domain.Settings](ctx, s.col(colSettings), bson.M{"_id": merchantID})
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	_, err := s.col(colSettings).ReplaceOne(ctx, bson.M{"_id": settings.MerchantID}, settings, options.Replace().SetUpsert(true))
	return mapErr(err)
}

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	return insert(ctx, s.col(colTransactions), tx)
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return findOne[domain.Transaction](ctx, s.col(colTransactions), bson.M{"_id": id})
}

func (s *Store) ListTransactions(ctx context.Context, q domain.TransactionQuery) ([]domain.Transaction, error) {
	filter := bson.M{}
	if q.MerchantID != "" {
		filter["merchant_id"] = q.MerchantID
	}
	if q.OutletID != "" {
		filter["outlet_id"] = q.OutletID
	}
	if q.KasirID != "" {
		filter["kasir_id"] = q.KasirID
	}
	return findAll[domain.Transaction](ctx, s.col(colTransactions), filter, newest("timestamp", q.Limit))
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.col(colAuditLogs).InsertOne(ctx, entry)
	return mapErr(err)
}

func (s *Store) ListAuditLogs(ctx context.Context, merchantID string, limit int) ([]domain.AuditLog, error) {
	return findAll[domain.AuditLog](ctx, s.col(colAuditLogs), bson.M{"merchant_id": merchantID}, newest("created_at", limit))
}

var _ store.Repository = (*Store)(nil)
