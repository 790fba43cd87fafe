package models

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type EmptyCartError struct {
	UserID int
}

func (e *EmptyCartError) Error() string {
	return "cart is empty"
}

type NotFoundError struct {
	Entity string
	ID     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// InsufficientStockError 下单校验或事务内条件扣减失败时返回
type InsufficientStockError struct {
	ProductID   int
	ProductName string
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s. Available: %d", e.ProductName, e.Available)
}

type InvalidTransitionError struct {
	From    OrderStatus
	To      OrderStatus
	Allowed []OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("invalid transition from '%s' to '%s'. Allowed: %s",
		e.From, e.To, strings.Join(allowed, ", "))
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
