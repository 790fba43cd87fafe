package services

import (
	"context"
	"log"
	"time"

	"ecommerce-backend/models"
)

// DealStore 优惠活动及其商品标记位的持久化接口
type DealStore interface {
	ProductByID(ctx context.Context, productID int) (*models.Product, error)
	SetProductDealFlags(ctx context.Context, productID int, dealOfTheDay bool, discount float64) error
	CreateDeal(ctx context.Context, deal *models.Deal) error
	UpdateDeal(ctx context.Context, deal *models.Deal) error
	DeleteDeal(ctx context.Context, dealID int) error
	DealByID(ctx context.Context, dealID int) (*models.Deal, error)
	DealsOfTheDay(ctx context.Context, limit, offset int) ([]models.Deal, int, error)
	ExpiredDeals(ctx context.Context, now time.Time) ([]models.Deal, error)
}

type DealService struct {
	store DealStore
}

func NewDealService(store DealStore) *DealService {
	return &DealService{store: store}
}

// syncProductDeal 活动创建/更新/删除/过期统一经由此处回写商品标记位
func (s *DealService) syncProductDeal(ctx context.Context, productID int, deal *models.Deal) error {
	if deal != nil && deal.IsDealOfTheDay {
		return s.store.SetProductDealFlags(ctx, productID, true, deal.DiscountPercentage)
	}
	return s.store.SetProductDealFlags(ctx, productID, false, 0)
}

func validateDeal(deal *models.Deal) error {
	if deal.ProductID <= 0 || deal.StartDate.IsZero() || deal.EndDate.IsZero() || deal.DiscountPercentage == 0 {
		return &models.ValidationError{Message: "Missing required fields"}
	}
	if deal.DiscountPercentage < 0 || deal.DiscountPercentage > 100 {
		return &models.ValidationError{Message: "Discount percentage must be between 0 and 100"}
	}
	return nil
}

func (s *DealService) CreateDeal(ctx context.Context, deal *models.Deal) (*models.Deal, error) {
	if err := validateDeal(deal); err != nil {
		return nil, err
	}

	if _, err := s.store.ProductByID(ctx, deal.ProductID); err != nil {
		return nil, err
	}

	if err := s.store.CreateDeal(ctx, deal); err != nil {
		return nil, &models.PersistenceError{Op: "create deal", Err: err}
	}

	if err := s.syncProductDeal(ctx, deal.ProductID, deal); err != nil {
		return nil, &models.PersistenceError{Op: "sync product deal flags", Err: err}
	}
	return deal, nil
}

func (s *DealService) UpdateDeal(ctx context.Context, deal *models.Deal) (*models.Deal, error) {
	existing, err := s.store.DealByID(ctx, deal.ID)
	if err != nil {
		return nil, err
	}

	if deal.ProductID == 0 {
		deal.ProductID = existing.ProductID
	}
	if deal.StartDate.IsZero() {
		deal.StartDate = existing.StartDate
	}
	if deal.EndDate.IsZero() {
		deal.EndDate = existing.EndDate
	}
	if deal.DiscountPercentage == 0 {
		deal.DiscountPercentage = existing.DiscountPercentage
	}
	if deal.SpecialOfferDetails == "" {
		deal.SpecialOfferDetails = existing.SpecialOfferDetails
	}
	if err := validateDeal(deal); err != nil {
		return nil, err
	}

	if err := s.store.UpdateDeal(ctx, deal); err != nil {
		return nil, &models.PersistenceError{Op: "update deal", Err: err}
	}

	if err := s.syncProductDeal(ctx, deal.ProductID, deal); err != nil {
		return nil, &models.PersistenceError{Op: "sync product deal flags", Err: err}
	}
	return deal, nil
}

func (s *DealService) DeleteDeal(ctx context.Context, dealID int) error {
	deal, err := s.store.DealByID(ctx, dealID)
	if err != nil {
		return err
	}

	// 删除前复位商品标记
	if err := s.syncProductDeal(ctx, deal.ProductID, nil); err != nil {
		return &models.PersistenceError{Op: "sync product deal flags", Err: err}
	}

	if err := s.store.DeleteDeal(ctx, dealID); err != nil {
		return &models.PersistenceError{Op: "delete deal", Err: err}
	}
	return nil
}

func (s *DealService) GetDeal(ctx context.Context, dealID int) (*models.Deal, error) {
	return s.store.DealByID(ctx, dealID)
}

func (s *DealService) DealsOfTheDay(ctx context.Context, limit, offset int) ([]models.Deal, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.DealsOfTheDay(ctx, limit, offset)
}

// ExpireDue 处理所有已过期活动：复位商品标记并删除活动记录。
// 单条失败只记日志不中断，返回成功处理的条数。幂等。
func (s *DealService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.store.ExpiredDeals(ctx, now)
	if err != nil {
		return 0, &models.PersistenceError{Op: "query expired deals", Err: err}
	}

	processed := 0
	for _, deal := range expired {
		if err := s.syncProductDeal(ctx, deal.ProductID, nil); err != nil {
			log.Printf("Failed to reset deal flags for product %d: %v", deal.ProductID, err)
			continue
		}
		if err := s.store.DeleteDeal(ctx, deal.ID); err != nil {
			log.Printf("Failed to delete expired deal %d: %v", deal.ID, err)
			continue
		}
		processed++
	}
	return processed, nil
}
