package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"ecommerce-backend/models"
	"ecommerce-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	mu       sync.Mutex
	products map[int]*models.Product
	carts    map[int][]models.CartItem
	orders   map[int]*models.Order
	nextID   int
}

func newStubStore() *stubStore {
	return &stubStore{
		products: make(map[int]*models.Product),
		carts:    make(map[int][]models.CartItem),
		orders:   make(map[int]*models.Order),
		nextID:   1,
	}
}

func (s *stubStore) CartLines(ctx context.Context, userID int) ([]models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lines []models.CartLine
	for _, item := range s.carts[userID] {
		product := s.products[item.ProductID]
		lines = append(lines, models.CartLine{
			ProductID:   item.ProductID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			Available:   product.Quantity,
			UnitPrice:   product.Price(),
			Subtotal:    product.Price() * float64(item.Quantity),
		})
	}
	return lines, nil
}

func (s *stubStore) PlaceOrder(ctx context.Context, order *models.Order, lines []models.OrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range lines {
		if s.products[line.ProductID].Quantity < line.Quantity {
			return &models.InsufficientStockError{
				ProductID:   line.ProductID,
				ProductName: s.products[line.ProductID].Name,
				Available:   s.products[line.ProductID].Quantity,
			}
		}
	}
	order.ID = s.nextID
	s.nextID++
	for i := range lines {
		lines[i].OrderID = order.ID
		s.products[lines[i].ProductID].Quantity -= lines[i].Quantity
	}
	stored := *order
	stored.Lines = lines
	s.orders[order.ID] = &stored
	delete(s.carts, order.UserID)
	return nil
}

func (s *stubStore) OrderByID(ctx context.Context, orderID int) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, &models.NotFoundError{Entity: "order", ID: orderID}
	}
	copied := *order
	return &copied, nil
}

func (s *stubStore) OrdersByUser(ctx context.Context, userID int) ([]models.Order, error) {
	return nil, nil
}

func (s *stubStore) SetOrderStatus(ctx context.Context, orderID int, status models.OrderStatus, restock []models.OrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return &models.NotFoundError{Entity: "order", ID: orderID}
	}
	for _, line := range restock {
		s.products[line.ProductID].Quantity += line.Quantity
	}
	order.Status = status
	return nil
}

func (s *stubStore) SoftDeleteOrder(ctx context.Context, orderID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[orderID]; !ok {
		return &models.NotFoundError{Entity: "order", ID: orderID}
	}
	delete(s.orders, orderID)
	return nil
}

func setupRouter(store *stubStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	svc := services.NewOrderService(store, nil, 0)
	oc := NewOrderController(svc)

	r := gin.New()
	// 测试里直接注入 userID,跳过 JWT
	r.Use(func(c *gin.Context) {
		c.Set("userID", 7)
	})
	r.POST("/order", oc.CreateOrder)
	r.PUT("/order/:orderId/status", oc.UpdateOrderStatus)
	r.GET("/orders/:orderId", oc.GetOrderDetails)
	return r
}

func TestCreateOrderEndpoint(t *testing.T) {
	store := newStubStore()
	store.products[1] = &models.Product{ID: 1, Name: "Widget", Quantity: 5, OriginalPrice: 10.00}
	store.carts[7] = []models.CartItem{{UserID: 7, ProductID: 1, Quantity: 3}}

	router := setupRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/order",
		strings.NewReader(`{"shipping_address":"12 Main St","payment_method":"card"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		OrderID       int    `json:"order_id"`
		TransactionID string `json:"transaction_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotZero(t, resp.OrderID)
	assert.True(t, strings.HasPrefix(resp.TransactionID, "TXN"))
}

func TestCreateOrderEndpointInsufficientStock(t *testing.T) {
	store := newStubStore()
	store.products[1] = &models.Product{ID: 1, Name: "Widget", Quantity: 2, OriginalPrice: 10.00}
	store.carts[7] = []models.CartItem{{UserID: 7, ProductID: 1, Quantity: 3}}

	router := setupRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/order",
		strings.NewReader(`{"shipping_address":"12 Main St","payment_method":"card"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Available: 2")
}

func TestCreateOrderEndpointEmptyCart(t *testing.T) {
	store := newStubStore()
	router := setupRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/order",
		strings.NewReader(`{"shipping_address":"12 Main St","payment_method":"card"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateOrderStatusEndpoint(t *testing.T) {
	store := newStubStore()
	store.products[1] = &models.Product{ID: 1, Name: "Widget", Quantity: 5, OriginalPrice: 10.00}
	store.orders[1] = &models.Order{ID: 1, UserID: 7, Status: models.StatusPending}
	store.nextID = 2

	router := setupRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/order/1/status",
		strings.NewReader(`{"status":"processing"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"processing"`)
}

func TestUpdateOrderStatusEndpointInvalidTransition(t *testing.T) {
	store := newStubStore()
	store.orders[1] = &models.Order{ID: 1, UserID: 7, Status: models.StatusShipping}
	store.nextID = 2

	router := setupRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/order/1/status",
		strings.NewReader(`{"status":"pending"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid transition")
}

func TestUpdateOrderStatusEndpointNotFound(t *testing.T) {
	store := newStubStore()
	router := setupRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/order/42/status",
		strings.NewReader(`{"status":"processing"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOrderDetailsEndpoint(t *testing.T) {
	store := newStubStore()
	store.orders[1] = &models.Order{ID: 1, UserID: 7, Status: models.StatusPending, TotalPrice: 30}
	store.nextID = 2

	router := setupRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/orders/99", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
