package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ecommerce-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDealStore struct {
	mu         sync.Mutex
	products   map[int]*models.Product
	deals      map[int]*models.Deal
	nextDealID int

	flagErrFor   map[int]error // productID -> 注入错误
	deleteErrFor map[int]error // dealID -> 注入错误
}

func newFakeDealStore() *fakeDealStore {
	return &fakeDealStore{
		products:     make(map[int]*models.Product),
		deals:        make(map[int]*models.Deal),
		nextDealID:   1,
		flagErrFor:   make(map[int]error),
		deleteErrFor: make(map[int]error),
	}
}

func (f *fakeDealStore) ProductByID(ctx context.Context, productID int) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	product, ok := f.products[productID]
	if !ok {
		return nil, &models.NotFoundError{Entity: "product", ID: productID}
	}
	copied := *product
	return &copied, nil
}

func (f *fakeDealStore) SetProductDealFlags(ctx context.Context, productID int, dealOfTheDay bool, discount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.flagErrFor[productID]; err != nil {
		return err
	}
	// 缺行容忍，与 SQL UPDATE 零命中一致
	if product, ok := f.products[productID]; ok {
		product.DealOfTheDay = dealOfTheDay
		product.DealDiscountPercentage = discount
	}
	return nil
}

func (f *fakeDealStore) CreateDeal(ctx context.Context, deal *models.Deal) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	deal.ID = f.nextDealID
	f.nextDealID++
	copied := *deal
	f.deals[deal.ID] = &copied
	return nil
}

func (f *fakeDealStore) UpdateDeal(ctx context.Context, deal *models.Deal) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := *deal
	f.deals[deal.ID] = &copied
	return nil
}

func (f *fakeDealStore) DeleteDeal(ctx context.Context, dealID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.deleteErrFor[dealID]; err != nil {
		return err
	}
	delete(f.deals, dealID)
	return nil
}

func (f *fakeDealStore) DealByID(ctx context.Context, dealID int) (*models.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	deal, ok := f.deals[dealID]
	if !ok {
		return nil, &models.NotFoundError{Entity: "deal", ID: dealID}
	}
	copied := *deal
	return &copied, nil
}

func (f *fakeDealStore) DealsOfTheDay(ctx context.Context, limit, offset int) ([]models.Deal, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var all []models.Deal
	for _, deal := range f.deals {
		if deal.IsDealOfTheDay {
			all = append(all, *deal)
		}
	}
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (f *fakeDealStore) ExpiredDeals(ctx context.Context, now time.Time) ([]models.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var expired []models.Deal
	for _, deal := range f.deals {
		if deal.EndDate.Before(now) {
			expired = append(expired, *deal)
		}
	}
	return expired, nil
}

func (f *fakeDealStore) product(productID int) models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.products[productID]
}

func (f *fakeDealStore) dealCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deals)
}

func TestCreateDealSyncsProductFlags(t *testing.T) {
	store := newFakeDealStore()
	store.products[1] = &models.Product{ID: 1, Name: "Widget", OriginalPrice: 100}

	svc := NewDealService(store)
	deal, err := svc.CreateDeal(context.Background(), &models.Deal{
		ProductID:          1,
		StartDate:          time.Now(),
		EndDate:            time.Now().Add(24 * time.Hour),
		DiscountPercentage: 15,
		IsDealOfTheDay:     true,
	})
	require.NoError(t, err)
	assert.NotZero(t, deal.ID)

	product := store.product(1)
	assert.True(t, product.DealOfTheDay)
	assert.Equal(t, 15.0, product.DealDiscountPercentage)
}

func TestCreateDealProductNotFound(t *testing.T) {
	store := newFakeDealStore()
	svc := NewDealService(store)

	_, err := svc.CreateDeal(context.Background(), &models.Deal{
		ProductID:          99,
		StartDate:          time.Now(),
		EndDate:            time.Now().Add(time.Hour),
		DiscountPercentage: 10,
	})
	var notFound *models.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestCreateDealValidation(t *testing.T) {
	store := newFakeDealStore()
	store.products[1] = &models.Product{ID: 1, Name: "Widget"}
	svc := NewDealService(store)

	var validationErr *models.ValidationError

	_, err := svc.CreateDeal(context.Background(), &models.Deal{ProductID: 1})
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.CreateDeal(context.Background(), &models.Deal{
		ProductID:          1,
		StartDate:          time.Now(),
		EndDate:            time.Now().Add(time.Hour),
		DiscountPercentage: 120,
	})
	assert.ErrorAs(t, err, &validationErr)
}

func TestUpdateDealRevokesDealOfTheDay(t *testing.T) {
	store := newFakeDealStore()
	store.products[1] = &models.Product{ID: 1, Name: "Widget", DealOfTheDay: true, DealDiscountPercentage: 20}
	store.deals[5] = &models.Deal{
		ID: 5, ProductID: 1,
		StartDate:          time.Now(),
		EndDate:            time.Now().Add(time.Hour),
		DiscountPercentage: 20,
		IsDealOfTheDay:     true,
	}

	svc := NewDealService(store)
	_, err := svc.UpdateDeal(context.Background(), &models.Deal{ID: 5, IsDealOfTheDay: false})
	require.NoError(t, err)

	product := store.product(1)
	assert.False(t, product.DealOfTheDay)
	assert.Zero(t, product.DealDiscountPercentage)
}

func TestDeleteDealResetsProductFlags(t *testing.T) {
	store := newFakeDealStore()
	store.products[1] = &models.Product{ID: 1, Name: "Widget", DealOfTheDay: true, DealDiscountPercentage: 20}
	store.deals[5] = &models.Deal{ID: 5, ProductID: 1, IsDealOfTheDay: true}

	svc := NewDealService(store)
	require.NoError(t, svc.DeleteDeal(context.Background(), 5))

	product := store.product(1)
	assert.False(t, product.DealOfTheDay)
	assert.Zero(t, product.DealDiscountPercentage)
	assert.Zero(t, store.dealCount())
}

func TestExpireDueResetsFlagsAndDeletes(t *testing.T) {
	store := newFakeDealStore()
	store.products[1] = &models.Product{ID: 1, Name: "Widget", DealOfTheDay: true, DealDiscountPercentage: 10}
	store.deals[1] = &models.Deal{
		ID: 1, ProductID: 1,
		EndDate:        time.Now().Add(-24 * time.Hour), // 昨天到期
		IsDealOfTheDay: true,
	}

	svc := NewDealService(store)
	processed, err := svc.ExpireDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	product := store.product(1)
	assert.False(t, product.DealOfTheDay)
	assert.Zero(t, product.DealDiscountPercentage)
	assert.Zero(t, store.dealCount())
}

func TestExpireDueSkipsActiveDeals(t *testing.T) {
	store := newFakeDealStore()
	store.products[1] = &models.Product{ID: 1, Name: "Widget", DealOfTheDay: true, DealDiscountPercentage: 10}
	store.deals[1] = &models.Deal{
		ID: 1, ProductID: 1,
		EndDate:        time.Now().Add(24 * time.Hour),
		IsDealOfTheDay: true,
	}

	svc := NewDealService(store)
	processed, err := svc.ExpireDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, processed)

	product := store.product(1)
	assert.True(t, product.DealOfTheDay)
	assert.Equal(t, 1, store.dealCount())
}

func TestExpireDueIdempotent(t *testing.T) {
	store := newFakeDealStore()
	store.products[1] = &models.Product{ID: 1, Name: "Widget", DealOfTheDay: true, DealDiscountPercentage: 10}
	store.deals[1] = &models.Deal{ID: 1, ProductID: 1, EndDate: time.Now().Add(-time.Hour)}

	svc := NewDealService(store)
	processed, err := svc.ExpireDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	// 第二轮无新过期，什么都不变
	processed, err = svc.ExpireDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Zero(t, store.dealCount())
}

func TestExpireDueToleratesMissingProduct(t *testing.T) {
	store := newFakeDealStore()
	store.deals[1] = &models.Deal{ID: 1, ProductID: 404, EndDate: time.Now().Add(-time.Hour)}

	svc := NewDealService(store)
	processed, err := svc.ExpireDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Zero(t, store.dealCount())
}

func TestExpireDueContinuesAfterRowFailure(t *testing.T) {
	store := newFakeDealStore()
	store.products[1] = &models.Product{ID: 1, Name: "Bad", DealOfTheDay: true}
	store.products[2] = &models.Product{ID: 2, Name: "Good", DealOfTheDay: true, DealDiscountPercentage: 5}
	store.deals[1] = &models.Deal{ID: 1, ProductID: 1, EndDate: time.Now().Add(-time.Hour)}
	store.deals[2] = &models.Deal{ID: 2, ProductID: 2, EndDate: time.Now().Add(-time.Hour)}
	store.flagErrFor[1] = errors.New("row locked")

	svc := NewDealService(store)
	processed, err := svc.ExpireDue(context.Background(), time.Now())
	require.NoError(t, err)

	// 坏行跳过，好行照常处理
	assert.Equal(t, 1, processed)
	good := store.product(2)
	assert.False(t, good.DealOfTheDay)
	assert.Equal(t, 1, store.dealCount())
}

func TestSweeperRunsOnInterval(t *testing.T) {
	store := newFakeDealStore()
	store.products[1] = &models.Product{ID: 1, Name: "Widget", DealOfTheDay: true, DealDiscountPercentage: 10}
	store.deals[1] = &models.Deal{ID: 1, ProductID: 1, EndDate: time.Now().Add(-time.Hour)}

	svc := NewDealService(store)
	sweeper := NewDealSweeper(svc, 10*time.Millisecond)

	swept := make(chan int, 16)
	sweeper.OnSweep(func(processed int, err error) {
		swept <- processed
	})

	sweeper.Start()
	defer sweeper.Stop()

	select {
	case processed := <-swept:
		assert.Equal(t, 1, processed)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not run")
	}

	assert.Zero(t, store.dealCount())
}

func TestSweeperStopHaltsTicks(t *testing.T) {
	store := newFakeDealStore()
	svc := NewDealService(store)
	sweeper := NewDealSweeper(svc, 5*time.Millisecond)

	sweeper.Start()
	time.Sleep(20 * time.Millisecond)
	sweeper.Stop()

	// Stop 返回后不再有清理执行
	countAfterStop := store.dealCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, countAfterStop, store.dealCount())
}
