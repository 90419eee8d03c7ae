package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        string    `json:"phone"`
	Address      string    `json:"address"`
	EmployeeID   string    `json:"employee_id,omitempty"`
	Department   string    `json:"department,omitempty"`
	Position     string    `json:"position,omitempty"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

// DisplayName is "first last", falling back to the email when no name is set.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Email
	}
	return name
}

// MaxStockQuantity bounds a product's stock level and any single stock
// movement.
const MaxStockQuantity = 1_000_000

type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	ImageURL    string          `json:"image_url"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

// ShippingInfo is the recipient block copied onto orders and picking records.
type ShippingInfo struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

func (s ShippingInfo) Complete() bool {
	return strings.TrimSpace(s.FullName) != "" &&
		strings.TrimSpace(s.Phone) != "" &&
		strings.TrimSpace(s.Address) != ""
}

type Order struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Items          []OrderItem     `json:"items"`
	Total          decimal.Decimal `json:"total"`
	Shipping       ShippingInfo    `json:"shipping"`
	Status         OrderStatus     `json:"status"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	AssignedTo     *uuid.UUID      `json:"assigned_to,omitempty"`
	AssignedAt     *time.Time      `json:"assigned_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int             `json:"version"`
}

// OrderItem is a snapshot of a product line at checkout time.
type OrderItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url,omitempty"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

type PickingRecord struct {
	ID             uuid.UUID       `json:"id"`
	OrderID        uuid.UUID       `json:"order_id"`
	StaffID        uuid.UUID       `json:"staff_id"`
	StaffName      string          `json:"staff_name"`
	Items          []OrderItem     `json:"items"`
	Total          decimal.Decimal `json:"total"`
	Customer       ShippingInfo    `json:"customer"`
	Status         PickingStatus   `json:"status"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	ShippingNotes  string          `json:"shipping_notes,omitempty"`
	PickedAt       time.Time       `json:"picked_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int             `json:"version"`
}

// StockTransaction is an append-only stock movement. Quantity is signed.
type StockTransaction struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"product_id"`
	ProductName    string     `json:"product_name"`
	Quantity       int        `json:"quantity"`
	Remaining      int        `json:"remaining"`
	Reason         string     `json:"reason"`
	OrderID        *uuid.UUID `json:"order_id,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type CartItem struct {
	ProductID uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url,omitempty"`
}

type Cart struct {
	UserID uuid.UUID       `json:"user_id"`
	Items  []CartItem      `json:"items"`
	Total  decimal.Decimal `json:"total"`
}
