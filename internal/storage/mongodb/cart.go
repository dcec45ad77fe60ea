package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/bytebuy/internal/domain/cart"
)

const cartsCollection = "carts"

var _ cart.Repository = (*CartRepository)(nil)

type cartDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Items     []lineItemDocument `bson:"items"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

type lineItemDocument struct {
	ProductID string               `bson:"product_id"`
	Name      string               `bson:"name"`
	Image     string               `bson:"image"`
	Price     primitive.Decimal128 `bson:"price"`
	Quantity  int                  `bson:"quantity"`
}

// CartRepository implements cart.Repository on a MongoDB collection.
type CartRepository struct {
	collection *mongo.Collection
}

// NewCartRepository returns a CartRepository using the carts collection of db.
func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{collection: db.Collection(cartsCollection)}
}

// CreateIndexes enforces one cart document per user.
func (r *CartRepository) CreateIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Wrap(err, "create cart indexes")
	}
	return nil
}

// Get returns the cart for userID or cart.ErrCartNotFound.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	var doc cartDocument
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cart.ErrCartNotFound
		}
		return nil, fmt.Errorf("finding cart for user %q: %w", userID, err)
	}
	return mapCart(doc)
}

// Save replaces the line items of the user's cart document, inserting it on
// first write.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	items := make([]lineItemDocument, len(c.Items))
	for i, item := range c.Items {
		price, err := primitive.ParseDecimal128(item.Price.String())
		if err != nil {
			return fmt.Errorf("encoding price of %q: %w", item.ProductID, err)
		}
		items[i] = lineItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			Price:     price,
			Quantity:  item.Quantity,
		}
	}

	update := bson.M{
		"$set": bson.M{
			"items":      items,
			"updated_at": c.UpdatedAt,
		},
		"$setOnInsert": bson.M{"created_at": c.UpdatedAt},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"user_id": c.UserID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving cart for user %q: %w", c.UserID, err)
	}
	return nil
}

func mapCart(doc cartDocument) (*cart.Cart, error) {
	c := &cart.Cart{
		UserID:    doc.UserID,
		Items:     make([]cart.LineItem, len(doc.Items)),
		UpdatedAt: doc.UpdatedAt,
	}
	for i, item := range doc.Items {
		price, err := decimal.NewFromString(item.Price.String())
		if err != nil {
			return nil, fmt.Errorf("decoding price of %q: %w", item.ProductID, err)
		}
		c.Items[i] = cart.LineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			Price:     price,
			Quantity:  item.Quantity,
		}
	}
	return c, nil
}
