package cart

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/redisx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryKV struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redisx.ErrNotFound
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryKV) CartKey(userID string) string { return "cart:" + userID }

type catalog map[uuid.UUID]*models.Product

func (c catalog) Get(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := c[id]
	if !ok {
		return nil, database.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func setup(t *testing.T) (*Service, *memoryKV, catalog, auth.Session) {
	t.Helper()
	store := newMemoryKV()
	products := catalog{}
	session := auth.Session{UserID: uuid.New(), Role: models.RoleCustomer}
	return NewService(store, products, 24*time.Hour), store, products, session
}

func addProduct(c catalog, name string, price string) *models.Product {
	p := &models.Product{ID: uuid.New(), Name: name, Price: decimal.RequireFromString(price), Quantity: 10}
	c[p.ID] = p
	return p
}

func TestAddItemMergesQuantities(t *testing.T) {
	ctx := context.Background()
	svc, store, products, session := setup(t)
	shirt := addProduct(products, "Shirt", "199.50")

	_, err := svc.AddItem(ctx, session, shirt.ID, 1)
	require.NoError(t, err)
	c, err := svc.AddItem(ctx, session, shirt.ID, 2)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("598.50").Equal(c.Total))
	assert.Equal(t, 24*time.Hour, store.ttls[store.CartKey(session.UserID.String())])
}

func TestAddItemRefreshesSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, _, products, session := setup(t)
	mug := addProduct(products, "Mug", "50")

	_, err := svc.AddItem(ctx, session, mug.ID, 1)
	require.NoError(t, err)

	products[mug.ID].Price = decimal.NewFromInt(60)
	c, err := svc.AddItem(ctx, session, mug.ID, 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(120).Equal(c.Total))
}

func TestAddItemRejectsUnknownProductAndBadQuantity(t *testing.T) {
	ctx := context.Background()
	svc, _, _, session := setup(t)

	_, err := svc.AddItem(ctx, session, uuid.New(), 1)
	assert.ErrorIs(t, err, database.ErrProductNotFound)

	_, err = svc.AddItem(ctx, session, uuid.New(), 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAddItemRejectsOutOfStockProduct(t *testing.T) {
	ctx := context.Background()
	svc, store, products, session := setup(t)
	soldOut := addProduct(products, "Sold out", "10")
	soldOut.Quantity = 0

	_, err := svc.AddItem(ctx, session, soldOut.ID, 3)
	assert.ErrorIs(t, err, database.ErrInsufficientStock)
	assert.Empty(t, store.data)

	c, err := svc.Get(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestLineQuantityIsCapped(t *testing.T) {
	ctx := context.Background()
	svc, _, products, session := setup(t)
	a := addProduct(products, "A", "2")

	_, err := svc.AddItem(ctx, session, a.ID, MaxLineQuantity+1)
	assert.ErrorIs(t, err, ErrQuantityTooLarge)

	_, err = svc.AddItem(ctx, session, a.ID, math.MaxInt)
	assert.ErrorIs(t, err, ErrQuantityTooLarge)

	c, err := svc.AddItem(ctx, session, a.ID, MaxLineQuantity-1)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)

	_, err = svc.AddItem(ctx, session, a.ID, 2)
	assert.ErrorIs(t, err, ErrQuantityTooLarge)

	c, err = svc.AddItem(ctx, session, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, MaxLineQuantity, c.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(2*MaxLineQuantity).Equal(c.Total))

	_, err = svc.SetQuantity(ctx, session, a.ID, MaxLineQuantity+1)
	assert.ErrorIs(t, err, ErrQuantityTooLarge)

	c, err = svc.Get(ctx, session)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, MaxLineQuantity, c.Items[0].Quantity)
}

func TestSetQuantityAndRemove(t *testing.T) {
	ctx := context.Background()
	svc, _, products, session := setup(t)
	a := addProduct(products, "A", "10")
	b := addProduct(products, "B", "5")

	_, err := svc.AddItem(ctx, session, a.ID, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, session, b.ID, 1)
	require.NoError(t, err)

	c, err := svc.SetQuantity(ctx, session, a.ID, 4)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(45).Equal(c.Total))

	c, err = svc.SetQuantity(ctx, session, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, b.ID, c.Items[0].ProductID)

	_, err = svc.SetQuantity(ctx, session, a.ID, 2)
	assert.ErrorIs(t, err, ErrItemNotInCart)

	c, err = svc.RemoveItem(ctx, session, b.ID)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestClearAndUnknownVersion(t *testing.T) {
	ctx := context.Background()
	svc, store, products, session := setup(t)
	a := addProduct(products, "A", "10")

	_, err := svc.AddItem(ctx, session, a.ID, 1)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, session))

	c, err := svc.Get(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	store.data[store.CartKey(session.UserID.String())] = `{"version":2,"items":[{"id":"` + a.ID.String() + `","quantity":3}]}`
	c, err = svc.Get(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.True(t, decimal.Zero.Equal(c.Total))
}
