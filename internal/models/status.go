package models

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// OrDefault falls back to customer for unknown or empty roles.
func (r Role) OrDefault() Role {
	if r.IsValid() {
		return r
	}
	return RoleCustomer
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusShipping  OrderStatus = "shipping"
	OrderStatusDelivered OrderStatus = "delivered"
)

var orderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:   {OrderStatusPreparing: true},
	OrderStatusPreparing: {OrderStatusShipping: true},
	OrderStatusShipping:  {OrderStatusDelivered: true},
	OrderStatusDelivered: {},
}

var orderLabels = map[OrderStatus]string{
	OrderStatusPending:   "รอดำเนินการ",
	OrderStatusPreparing: "กำลังเตรียมสินค้า",
	OrderStatusShipping:  "กำลังจัดส่ง",
	OrderStatusDelivered: "จัดส่งสำเร็จ",
}

func (s OrderStatus) IsValid() bool {
	_, ok := orderNext[s]
	return ok
}

func (s OrderStatus) CanTransition(to OrderStatus) bool {
	return orderNext[s][to]
}

// Label is the Thai display text shown in the storefront.
func (s OrderStatus) Label() string {
	return orderLabels[s]
}

type PickingStatus string

const (
	PickingStatusRequested PickingStatus = "requested"
	PickingStatusShipped   PickingStatus = "shipped"
	PickingStatusDelivered PickingStatus = "delivered"
)

var pickingNext = map[PickingStatus]map[PickingStatus]bool{
	PickingStatusRequested: {PickingStatusShipped: true},
	PickingStatusShipped:   {PickingStatusDelivered: true},
	PickingStatusDelivered: {},
}

var pickingLabels = map[PickingStatus]string{
	PickingStatusRequested: "แจ้งเบิก",
	PickingStatusShipped:   "จัดส่งแล้ว",
	PickingStatusDelivered: "จัดส่งสำเร็จ",
}

func (s PickingStatus) IsValid() bool {
	_, ok := pickingNext[s]
	return ok
}

func (s PickingStatus) CanTransition(to PickingStatus) bool {
	return pickingNext[s][to]
}

func (s PickingStatus) Label() string {
	return pickingLabels[s]
}
