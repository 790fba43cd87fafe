package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"ecommerce-backend/models"
)

// OrderStore 订单工作流依赖的持久化接口，由 stores 包的 MySQL 实现提供。
// PlaceOrder 与 SetOrderStatus 必须在单个事务内完成各自的全部写入。
type OrderStore interface {
	CartLines(ctx context.Context, userID int) ([]models.CartLine, error)
	PlaceOrder(ctx context.Context, order *models.Order, lines []models.OrderLine) error
	OrderByID(ctx context.Context, orderID int) (*models.Order, error)
	OrdersByUser(ctx context.Context, userID int) ([]models.Order, error)
	SetOrderStatus(ctx context.Context, orderID int, status models.OrderStatus, restock []models.OrderLine) error
	SoftDeleteOrder(ctx context.Context, orderID int) error
}

// EventPublisher 事务提交后发布订单事件，rabbitmq.RabbitMQ 实现该接口
type EventPublisher interface {
	PublishOrderEvent(orderID int, priority int, eventType string) error
	PublishDelayedEvent(orderID int, delay time.Duration, eventType string) error
}

type OrderService struct {
	store            OrderStore
	events           EventPublisher
	paymentCheckWait time.Duration
}

func NewOrderService(store OrderStore, events EventPublisher, paymentCheckWait time.Duration) *OrderService {
	if paymentCheckWait <= 0 {
		paymentCheckWait = 15 * time.Minute
	}
	return &OrderService{store: store, events: events, paymentCheckWait: paymentCheckWait}
}

type PlaceOrderResult struct {
	OrderID       int    `json:"order_id"`
	TransactionID string `json:"transaction_id"`
}

// PlaceOrder 校验购物车与库存后，在单个事务内创建订单、订单行、扣减库存并清空购物车。
// 库存校验按购物车行顺序，遇到第一个缺货即返回。
func (s *OrderService) PlaceOrder(ctx context.Context, userID int, shippingAddress, paymentMethod string) (*PlaceOrderResult, error) {
	if userID <= 0 || shippingAddress == "" || paymentMethod == "" {
		return nil, &models.ValidationError{Message: "All fields are required"}
	}

	cart, err := s.store.CartLines(ctx, userID)
	if err != nil {
		return nil, &models.PersistenceError{Op: "load cart", Err: err}
	}
	if len(cart) == 0 {
		return nil, &models.EmptyCartError{UserID: userID}
	}

	var totalPrice float64
	for _, item := range cart {
		if item.Quantity > item.Available {
			return nil, &models.InsufficientStockError{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Available:   item.Available,
			}
		}
		totalPrice += float64(item.Quantity) * item.UnitPrice
	}

	transactionID := fmt.Sprintf("TXN%d", time.Now().UnixNano())

	order := &models.Order{
		UserID:          userID,
		TotalPrice:      totalPrice,
		Status:          models.StatusPending,
		ShippingAddress: shippingAddress,
		PaymentMethod:   paymentMethod,
	}

	lines := make([]models.OrderLine, 0, len(cart))
	for _, item := range cart {
		lines = append(lines, models.OrderLine{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			Price:         item.UnitPrice,
			TransactionID: transactionID,
			Amount:        float64(item.Quantity) * item.UnitPrice,
			PaymentMethod: paymentMethod,
		})
	}

	if err := s.store.PlaceOrder(ctx, order, lines); err != nil {
		return nil, err
	}

	// 事务提交成功后发送事件
	if s.events != nil {
		priority := 5
		if totalPrice > 1000 { // 大额订单高优先级
			priority = 9
		}
		if err := s.events.PublishOrderEvent(order.ID, priority, "created"); err != nil {
			log.Printf("Failed to publish order created event: %v", err)
		}
		// 延迟检查支付状态
		if err := s.events.PublishDelayedEvent(order.ID, s.paymentCheckWait, "payment_check"); err != nil {
			log.Printf("Failed to publish delayed payment check event: %v", err)
		}
	}

	return &PlaceOrderResult{OrderID: order.ID, TransactionID: transactionID}, nil
}

// UpdateStatus 按状态机推进订单状态。转入 cancelled 时逐行回补库存,
// 回补与状态写入在同一事务内提交。
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, &models.ValidationError{Message: "Invalid order status"}
	}

	order, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(status) {
		return nil, &models.InvalidTransitionError{
			From:    order.Status,
			To:      status,
			Allowed: order.Status.AllowedNext(),
		}
	}

	var restock []models.OrderLine
	if status == models.StatusCancelled {
		restock = order.Lines
	}

	if err := s.store.SetOrderStatus(ctx, orderID, status, restock); err != nil {
		return nil, err
	}
	order.Status = status

	if s.events != nil {
		priority := 5
		if status == models.StatusCancelled { // 取消订单高优先级
			priority = 8
		}
		if err := s.events.PublishOrderEvent(orderID, priority, "status_updated"); err != nil {
			log.Printf("Failed to publish order updated event: %v", err)
		}
	}

	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID int) (*models.Order, error) {
	return s.store.OrderByID(ctx, orderID)
}

func (s *OrderService) UserOrders(ctx context.Context, userID int) ([]models.Order, error) {
	orders, err := s.store.OrdersByUser(ctx, userID)
	if err != nil {
		return nil, &models.PersistenceError{Op: "list orders", Err: err}
	}
	return orders, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, orderID int) error {
	return s.store.SoftDeleteOrder(ctx, orderID)
}

// CancelIfUnpaid 延迟支付检查：仍处于 pending 的订单自动取消并回补库存
func (s *OrderService) CancelIfUnpaid(ctx context.Context, orderID int) error {
	order, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.StatusPending {
		return nil
	}
	_, err = s.UpdateStatus(ctx, orderID, models.StatusCancelled)
	return err
}
