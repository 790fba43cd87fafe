package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"ecommerce-backend/middlewares"
	"ecommerce-backend/models"
	"ecommerce-backend/services"

	"github.com/gin-gonic/gin"
)

type OrderController struct {
	orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// statusCodeFor 错误分类到 HTTP 状态码的统一映射
func statusCodeFor(err error) int {
	var validation *models.ValidationError
	var emptyCart *models.EmptyCartError
	var stock *models.InsufficientStockError
	var transition *models.InvalidTransitionError
	var notFound *models.NotFoundError

	switch {
	case errors.As(err, &validation), errors.As(err, &emptyCart),
		errors.As(err, &stock), errors.As(err, &transition):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type placeOrderRequest struct {
	ShippingAddress string `json:"shipping_address" binding:"required"`
	PaymentMethod   string `json:"payment_method" binding:"required"`
}

func (oc *OrderController) CreateOrder(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("create", status)
	}()
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := oc.orders.PlaceOrder(c.Request.Context(), userID.(int), req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_id":       result.OrderID,
		"transaction_id": result.TransactionID,
	})
}

func (oc *OrderController) GetUserOrders(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("list", status)
	}()
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	orders, err := oc.orders.UserOrders(c.Request.Context(), userID.(int))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

func (oc *OrderController) GetOrderDetails(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("details", status)
	}()

	orderID, err := strconv.Atoi(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := oc.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("update_status", status)
	}()

	orderID, err := strconv.Atoi(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := oc.orders.UpdateStatus(c.Request.Context(), orderID, models.OrderStatus(req.Status))
	if err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "order": order})
}

func (oc *OrderController) DeleteOrder(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("delete", status)
	}()

	orderID, err := strconv.Atoi(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	if err := oc.orders.DeleteOrder(c.Request.Context(), orderID); err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order deleted", "order_id": orderID})
}

// HandleDeadLetter 死信队列处理函数
func HandleDeadLetter(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("dead_letter", status)
	}()

	var deadLetter struct {
		OrderID int    `json:"order_id"`
		Reason  string `json:"reason"`
	}

	if err := c.ShouldBindJSON(&deadLetter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 实际处理逻辑：记录、通知管理员等
	c.JSON(http.StatusOK, gin.H{"message": "Dead letter processed"})
}
