package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/redisx"
	"github.com/shopspring/decimal"
)

const envelopeVersion = 1

// MaxLineQuantity caps the units of one product in a cart.
const MaxLineQuantity = 999

var (
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrQuantityTooLarge = fmt.Errorf("quantity must not exceed %d per item", MaxLineQuantity)
	ErrItemNotInCart    = errors.New("item not in cart")
)

type kv interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(userID string) string
}

// ProductLookup supplies the name and price snapshot for added items.
type ProductLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type envelope struct {
	Version int               `json:"version"`
	Items   []models.CartItem `json:"items"`
}

// Service keeps one cart per user in redis.
type Service struct {
	store    kv
	products ProductLookup
	ttl      time.Duration
}

func NewService(store kv, products ProductLookup, ttl time.Duration) *Service {
	return &Service{store: store, products: products, ttl: ttl}
}

func (s *Service) Get(ctx context.Context, session auth.Session) (*models.Cart, error) {
	items, err := s.load(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return newCart(session.UserID, items), nil
}

// AddItem adds quantity units of productID. An existing line for the same
// product is merged and its snapshot refreshed from the catalog. Out of
// stock products are refused.
func (s *Service) AddItem(ctx context.Context, session auth.Session, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity > MaxLineQuantity {
		return nil, ErrQuantityTooLarge
	}
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Quantity <= 0 {
		return nil, fmt.Errorf("%w: %s is out of stock", database.ErrInsufficientStock, product.Name)
	}

	items, err := s.load(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	merged := false
	for i := range items {
		if items[i].ProductID == productID {
			if items[i].Quantity > MaxLineQuantity-quantity {
				return nil, ErrQuantityTooLarge
			}
			items[i].Quantity += quantity
			items[i].Name = product.Name
			items[i].Price = product.Price
			items[i].ImageURL = product.ImageURL
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, models.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  quantity,
			ImageURL:  product.ImageURL,
		})
	}

	if err := s.save(ctx, session.UserID, items); err != nil {
		return nil, err
	}
	return newCart(session.UserID, items), nil
}

// SetQuantity replaces the quantity of a line. Zero removes it.
func (s *Service) SetQuantity(ctx context.Context, session auth.Session, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity > MaxLineQuantity {
		return nil, ErrQuantityTooLarge
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, session, productID)
	}

	items, err := s.load(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = quantity
			found = true
			break
		}
	}
	if !found {
		return nil, ErrItemNotInCart
	}

	if err := s.save(ctx, session.UserID, items); err != nil {
		return nil, err
	}
	return newCart(session.UserID, items), nil
}

func (s *Service) RemoveItem(ctx context.Context, session auth.Session, productID uuid.UUID) (*models.Cart, error) {
	items, err := s.load(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	kept := items[:0]
	for _, item := range items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	if err := s.save(ctx, session.UserID, kept); err != nil {
		return nil, err
	}
	return newCart(session.UserID, kept), nil
}

func (s *Service) Clear(ctx context.Context, session auth.Session) error {
	if err := s.store.Del(ctx, s.store.CartKey(session.UserID.String())); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// load returns an empty cart for missing keys, undecodable values and
// unknown envelope versions.
func (s *Service) load(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	raw, err := s.store.Get(ctx, s.store.CartKey(userID.String()))
	if err != nil {
		if errors.Is(err, redisx.ErrNotFound) {
			return []models.CartItem{}, nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Version != envelopeVersion {
		return []models.CartItem{}, nil
	}

	items := make([]models.CartItem, 0, len(env.Items))
	for _, item := range env.Items {
		if item.Quantity > 0 && item.Quantity <= MaxLineQuantity {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *Service) save(ctx context.Context, userID uuid.UUID, items []models.CartItem) error {
	key := s.store.CartKey(userID.String())
	if len(items) == 0 {
		if err := s.store.Del(ctx, key); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(envelope{Version: envelopeVersion, Items: items})
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.store.Set(ctx, key, string(data), s.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func newCart(userID uuid.UUID, items []models.CartItem) *models.Cart {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if items == nil {
		items = []models.CartItem{}
	}
	return &models.Cart{UserID: userID, Items: items, Total: total}
}
