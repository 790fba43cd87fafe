package controllers

import (
	"net/http"
	"strconv"

	"ecommerce-backend/models"
	"ecommerce-backend/services"

	"github.com/gin-gonic/gin"
)

type DealController struct {
	deals *services.DealService
}

func NewDealController(deals *services.DealService) *DealController {
	return &DealController{deals: deals}
}

func (dc *DealController) CreateDeal(c *gin.Context) {
	var deal models.Deal
	if err := c.ShouldBindJSON(&deal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := dc.deals.CreateDeal(c.Request.Context(), &deal)
	if err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Deal created successfully", "deal": created})
}

func (dc *DealController) GetDealsOfTheDay(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	deals, total, err := dc.deals.DealsOfTheDay(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching deals"})
		return
	}

	totalPages := (total + limit - 1) / limit
	c.JSON(http.StatusOK, gin.H{
		"total_deals":  total,
		"total_pages":  totalPages,
		"current_page": page,
		"deals":        deals,
	})
}

func (dc *DealController) GetDealByID(c *gin.Context) {
	dealID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid deal ID"})
		return
	}

	deal, err := dc.deals.GetDeal(c.Request.Context(), dealID)
	if err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, deal)
}

func (dc *DealController) UpdateDeal(c *gin.Context) {
	dealID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid deal ID"})
		return
	}

	var deal models.Deal
	if err := c.ShouldBindJSON(&deal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	deal.ID = dealID

	updated, err := dc.deals.UpdateDeal(c.Request.Context(), &deal)
	if err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Deal updated successfully", "deal": updated})
}

func (dc *DealController) DeleteDeal(c *gin.Context) {
	dealID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid deal ID"})
		return
	}

	if err := dc.deals.DeleteDeal(c.Request.Context(), dealID); err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Deal deleted successfully"})
}
