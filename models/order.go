package models

import (
	"time"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipping   OrderStatus = "shipping"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// Transitions 订单状态机，终态无出边
var Transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipping, StatusCancelled},
	StatusShipping:   {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func (s OrderStatus) Valid() bool {
	_, ok := Transitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range Transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) AllowedNext() []OrderStatus {
	return Transitions[s]
}

type Order struct {
	ID              int         `json:"id"`
	UserID          int         `json:"user_id"`
	TotalPrice      float64     `json:"total_price"`
	Status          OrderStatus `json:"status"`
	ShippingAddress string      `json:"shipping_address"`
	PaymentMethod   string      `json:"payment_method"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Lines           []OrderLine `json:"lines,omitempty"`
}

// OrderLine 下单时按购物车行生成，创建后不可变
type OrderLine struct {
	ID            int     `json:"id"`
	OrderID       int     `json:"order_id"`
	ProductID     int     `json:"product_id"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
}
