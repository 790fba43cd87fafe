package controllers

import (
	"context"
	"net/http"
	"strconv"

	"ecommerce-backend/models"

	"github.com/gin-gonic/gin"
)

// CartStore 购物车控制器依赖的最小存储接口
type CartStore interface {
	AddToCart(ctx context.Context, userID, productID, quantity int) error
	RemoveFromCart(ctx context.Context, userID, productID int) error
	CartLines(ctx context.Context, userID int) ([]models.CartLine, error)
}

type CartController struct {
	store CartStore
}

func NewCartController(store CartStore) *CartController {
	return &CartController{store: store}
}

type addToCartRequest struct {
	ProductID int `json:"product_id" binding:"required"`
	Quantity  int `json:"quantity" binding:"required,min=1"`
}

func (cc *CartController) AddToCart(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := cc.store.AddToCart(c.Request.Context(), userID.(int), req.ProductID, req.Quantity); err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Item added to cart"})
}

func (cc *CartController) GetCart(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	lines, err := cc.store.CartLines(c.Request.Context(), userID.(int))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if lines == nil {
		lines = []models.CartLine{}
	}

	var total float64
	for _, line := range lines {
		total += line.Subtotal
	}

	c.JSON(http.StatusOK, gin.H{"items": lines, "total": total})
}

func (cc *CartController) RemoveFromCart(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	productID, err := strconv.Atoi(c.Param("productId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	if err := cc.store.RemoveFromCart(c.Request.Context(), userID.(int), productID); err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}
