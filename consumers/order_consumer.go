package consumers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"ecommerce-backend/config"
	"ecommerce-backend/models"
	"ecommerce-backend/services"

	amqp "github.com/rabbitmq/amqp091-go"
)

type OrderConsumer struct {
	orders *services.OrderService
}

func StartOrderConsumer(ch *amqp.Channel, cfg *config.Config, orders *services.OrderService) {
	consumer := &OrderConsumer{orders: orders}

	// 消费主订单队列
	msgs, err := ch.Consume(
		cfg.OrderQueue,
		"ecommerce-backend", // consumer tag
		false,               // auto-ack
		false,               // exclusive
		false,               // no-local
		false,               // no-wait
		nil,
	)
	if err != nil {
		log.Fatalf("Failed to register consumer: %v", err)
	}

	go func() {
		for msg := range msgs {
			consumer.processOrderMessage(msg)
		}
	}()

	// 消费死信队列
	dlqMsgs, err := ch.Consume(
		cfg.DeadLetterQueue,
		"ecommerce-backend-dlq", // consumer tag
		false,                   // auto-ack
		false,                   // exclusive
		false,                   // no-local
		false,                   // no-wait
		nil,
	)
	if err != nil {
		log.Printf("Failed to register DLQ consumer: %v", err)
		return
	}

	go func() {
		for msg := range dlqMsgs {
			processDeadLetterMessage(msg)
		}
	}()
}

func (c *OrderConsumer) processOrderMessage(msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in message processing: %v", r)
		}
	}()

	parts := strings.Split(string(msg.Body), "|")
	if len(parts) < 2 {
		log.Printf("Invalid message format: %s", msg.Body)
		_ = msg.Nack(false, false) // 拒绝消息，不重新入队
		return
	}

	orderID, err := strconv.Atoi(parts[0])
	if err != nil {
		log.Printf("Invalid order ID: %s", parts[0])
		_ = msg.Nack(false, false)
		return
	}

	eventType := parts[1]
	log.Printf("Processing order event: ID=%d, Type=%s", orderID, eventType)

	switch eventType {
	case "created":
		c.handleOrderCreated(orderID)
	case "status_updated":
		c.handleStatusUpdated(orderID)
	case "payment_check":
		c.handlePaymentCheck(orderID)
	default:
		log.Printf("Unknown event type: %s", eventType)
	}

	if err := msg.Ack(false); err != nil {
		log.Printf("Failed to ack message: %v", err)
	}
}

func processDeadLetterMessage(msg amqp.Delivery) {
	log.Printf("Received dead letter: %s", msg.Body)
	if err := msg.Ack(false); err != nil {
		log.Printf("Failed to ack dead letter: %v", err)
	}
}

func (c *OrderConsumer) handleOrderCreated(orderID int) {
	// 实际业务逻辑：通知其他服务、更新缓存等
	log.Printf("Handling order created: %d", orderID)
}

func (c *OrderConsumer) handleStatusUpdated(orderID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	order, err := c.orders.GetOrder(ctx, orderID)
	if err != nil {
		log.Printf("Failed to get order %d: %v", orderID, err)
		return
	}

	switch order.Status {
	case models.StatusShipping:
		// 发送发货通知
	case models.StatusCancelled:
		// 取消逻辑已在状态机内完成库存回补
	}
	log.Printf("Handling status update for order %d: %s", orderID, order.Status)
}

// handlePaymentCheck 延迟事件：仍未支付的订单经状态机取消并回补库存
func (c *OrderConsumer) handlePaymentCheck(orderID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.orders.CancelIfUnpaid(ctx, orderID); err != nil {
		var notFound *models.NotFoundError
		if errors.As(err, &notFound) {
			return
		}
		log.Printf("Failed to auto-cancel order %d: %v", orderID, err)
		return
	}
	log.Printf("Payment check completed for order %d", orderID)
}
