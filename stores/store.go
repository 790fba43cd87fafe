// Package stores 基于 database/sql 的 MySQL 持久化层。
// 多行写入一律走显式事务，库存扣减用条件更新保证不为负。
package stores

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ecommerce-backend/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CartLines 按购物车行顺序联查商品，售价在读取时计算
func (s *Store) CartLines(ctx context.Context, userID int) ([]models.CartLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.product_id, c.quantity,
		       p.name, p.quantity,
		       p.original_price, p.discount_percentage, p.deal_of_the_day, p.deal_discount_percentage
		FROM carts c
		JOIN products p ON c.product_id = p.id
		WHERE c.user_id = ?
		ORDER BY c.id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		var line models.CartLine
		var product models.Product
		if err := rows.Scan(
			&line.ProductID, &line.Quantity,
			&product.Name, &product.Quantity,
			&product.OriginalPrice, &product.DiscountPercentage,
			&product.DealOfTheDay, &product.DealDiscountPercentage,
		); err != nil {
			return nil, err
		}
		line.ProductName = product.Name
		line.Available = product.Quantity
		line.UnitPrice = product.Price()
		line.Subtotal = line.UnitPrice * float64(line.Quantity)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// PlaceOrder 单事务落单：订单行、条件扣减库存、清空购物车，任一步失败整体回滚。
// 条件更新未命中说明并发下库存不足，以 InsufficientStockError 中止。
func (s *Store) PlaceOrder(ctx context.Context, order *models.Order, lines []models.OrderLine) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &models.PersistenceError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	now := time.Now()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO orders (user_id, total_price, status, shipping_address, payment_method, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, order.UserID, order.TotalPrice, order.Status, order.ShippingAddress, order.PaymentMethod, now, now)
	if err != nil {
		return &models.PersistenceError{Op: "create order", Err: err}
	}

	orderID, err := result.LastInsertId()
	if err != nil {
		return &models.PersistenceError{Op: "get order ID", Err: err}
	}

	for i := range lines {
		line := &lines[i]
		line.OrderID = int(orderID)

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_transactions (order_id, product_id, quantity, price, transaction_id, amount, payment_method, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, line.OrderID, line.ProductID, line.Quantity, line.Price, line.TransactionID, line.Amount, line.PaymentMethod, now); err != nil {
			return &models.PersistenceError{Op: "create order line", Err: err}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE products SET quantity = quantity - ?, updated_at = ?
			WHERE id = ? AND quantity >= ?
		`, line.Quantity, now, line.ProductID, line.Quantity)
		if err != nil {
			return &models.PersistenceError{Op: "decrement stock", Err: err}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return &models.PersistenceError{Op: "decrement stock", Err: err}
		}
		if affected == 0 {
			var name string
			var available int
			if err := tx.QueryRowContext(ctx,
				"SELECT name, quantity FROM products WHERE id = ?", line.ProductID,
			).Scan(&name, &available); err != nil {
				return &models.PersistenceError{Op: "decrement stock", Err: err}
			}
			return &models.InsufficientStockError{
				ProductID:   line.ProductID,
				ProductName: name,
				Available:   available,
			}
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM carts WHERE user_id = ?", order.UserID); err != nil {
		return &models.PersistenceError{Op: "clear cart", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &models.PersistenceError{Op: "commit order", Err: err}
	}
	order.ID = int(orderID)
	order.CreatedAt = now
	order.UpdatedAt = now
	order.Lines = lines
	return nil
}

func (s *Store) OrderByID(ctx context.Context, orderID int) (*models.Order, error) {
	var order models.Order
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, total_price, status, shipping_address, payment_method, created_at, updated_at
		FROM orders
		WHERE id = ? AND deleted_at IS NULL
	`, orderID).Scan(
		&order.ID, &order.UserID, &order.TotalPrice, &order.Status,
		&order.ShippingAddress, &order.PaymentMethod, &order.CreatedAt, &order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "order", ID: orderID}
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "load order", Err: err}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price, transaction_id, amount, payment_method
		FROM order_transactions
		WHERE order_id = ?
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, &models.PersistenceError{Op: "load order lines", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var line models.OrderLine
		if err := rows.Scan(
			&line.ID, &line.OrderID, &line.ProductID, &line.Quantity,
			&line.Price, &line.TransactionID, &line.Amount, &line.PaymentMethod,
		); err != nil {
			return nil, &models.PersistenceError{Op: "scan order line", Err: err}
		}
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.PersistenceError{Op: "load order lines", Err: err}
	}
	return &order, nil
}

func (s *Store) OrdersByUser(ctx context.Context, userID int) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.user_id, o.total_price, o.status, o.shipping_address, o.payment_method, o.created_at, o.updated_at,
		       t.id, t.product_id, t.quantity, t.price, t.transaction_id, t.amount, t.payment_method
		FROM orders o
		JOIN order_transactions t ON o.id = t.order_id
		WHERE o.user_id = ? AND o.deleted_at IS NULL
		ORDER BY o.created_at DESC, t.id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ordersMap := make(map[int]*models.Order)
	var orderIDs []int
	for rows.Next() {
		var order models.Order
		var line models.OrderLine
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.TotalPrice, &order.Status,
			&order.ShippingAddress, &order.PaymentMethod, &order.CreatedAt, &order.UpdatedAt,
			&line.ID, &line.ProductID, &line.Quantity, &line.Price,
			&line.TransactionID, &line.Amount, &line.PaymentMethod,
		); err != nil {
			return nil, err
		}
		line.OrderID = order.ID

		existing, ok := ordersMap[order.ID]
		if !ok {
			ordersMap[order.ID] = &order
			orderIDs = append(orderIDs, order.ID)
			existing = &order
		}
		existing.Lines = append(existing.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *ordersMap[id])
	}
	return orders, nil
}

// SetOrderStatus 状态写入与取消时的库存回补同一事务提交
func (s *Store) SetOrderStatus(ctx context.Context, orderID int, status models.OrderStatus, restock []models.OrderLine) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &models.PersistenceError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, status, time.Now(), orderID)
	if err != nil {
		return &models.PersistenceError{Op: "update order status", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &models.PersistenceError{Op: "update order status", Err: err}
	}
	if affected == 0 {
		return &models.NotFoundError{Entity: "order", ID: orderID}
	}

	for _, line := range restock {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET quantity = quantity + ?, updated_at = ?
			WHERE id = ?
		`, line.Quantity, time.Now(), line.ProductID); err != nil {
			return &models.PersistenceError{Op: "restore stock", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &models.PersistenceError{Op: "commit status update", Err: err}
	}
	return nil
}

func (s *Store) SoftDeleteOrder(ctx context.Context, orderID int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, time.Now(), orderID)
	if err != nil {
		return &models.PersistenceError{Op: "delete order", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &models.PersistenceError{Op: "delete order", Err: err}
	}
	if affected == 0 {
		return &models.NotFoundError{Entity: "order", ID: orderID}
	}
	return nil
}

func (s *Store) ProductByID(ctx context.Context, productID int) (*models.Product, error) {
	var p models.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, quantity, original_price, discount_percentage, deal_of_the_day, deal_discount_percentage, created_at, updated_at
		FROM products
		WHERE id = ?
	`, productID).Scan(
		&p.ID, &p.Name, &p.Quantity, &p.OriginalPrice, &p.DiscountPercentage,
		&p.DealOfTheDay, &p.DealDiscountPercentage, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "product", ID: productID}
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "load product", Err: err}
	}
	return &p, nil
}

// SetProductDealFlags 商品已不存在时不报错，清理流程对缺行容忍
func (s *Store) SetProductDealFlags(ctx context.Context, productID int, dealOfTheDay bool, discount float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE products SET deal_of_the_day = ?, deal_discount_percentage = ?, updated_at = ?
		WHERE id = ?
	`, dealOfTheDay, discount, time.Now(), productID)
	return err
}

func (s *Store) CreateDeal(ctx context.Context, deal *models.Deal) error {
	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO deals (product_id, start_date, end_date, discount_percentage, special_offer_details, is_deal_of_the_day, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, deal.ProductID, deal.StartDate, deal.EndDate, deal.DiscountPercentage,
		deal.SpecialOfferDetails, deal.IsDealOfTheDay, now, now)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	deal.ID = int(id)
	deal.CreatedAt = now
	deal.UpdatedAt = now
	return nil
}

func (s *Store) UpdateDeal(ctx context.Context, deal *models.Deal) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE deals
		SET product_id = ?, start_date = ?, end_date = ?, discount_percentage = ?, special_offer_details = ?, is_deal_of_the_day = ?, updated_at = ?
		WHERE id = ?
	`, deal.ProductID, deal.StartDate, deal.EndDate, deal.DiscountPercentage,
		deal.SpecialOfferDetails, deal.IsDealOfTheDay, time.Now(), deal.ID)
	return err
}

func (s *Store) DeleteDeal(ctx context.Context, dealID int) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM deals WHERE id = ?", dealID)
	return err
}

func (s *Store) DealByID(ctx context.Context, dealID int) (*models.Deal, error) {
	var d models.Deal
	err := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, start_date, end_date, discount_percentage, special_offer_details, is_deal_of_the_day, created_at, updated_at
		FROM deals
		WHERE id = ?
	`, dealID).Scan(
		&d.ID, &d.ProductID, &d.StartDate, &d.EndDate, &d.DiscountPercentage,
		&d.SpecialOfferDetails, &d.IsDealOfTheDay, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "deal", ID: dealID}
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "load deal", Err: err}
	}
	return &d, nil
}

func (s *Store) DealsOfTheDay(ctx context.Context, limit, offset int) ([]models.Deal, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM deals WHERE is_deal_of_the_day = TRUE",
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, start_date, end_date, discount_percentage, special_offer_details, is_deal_of_the_day, created_at, updated_at
		FROM deals
		WHERE is_deal_of_the_day = TRUE
		ORDER BY start_date DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		var d models.Deal
		if err := rows.Scan(
			&d.ID, &d.ProductID, &d.StartDate, &d.EndDate, &d.DiscountPercentage,
			&d.SpecialOfferDetails, &d.IsDealOfTheDay, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		deals = append(deals, d)
	}
	return deals, total, rows.Err()
}

func (s *Store) ExpiredDeals(ctx context.Context, now time.Time) ([]models.Deal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, start_date, end_date, discount_percentage, special_offer_details, is_deal_of_the_day, created_at, updated_at
		FROM deals
		WHERE end_date < ?
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		var d models.Deal
		if err := rows.Scan(
			&d.ID, &d.ProductID, &d.StartDate, &d.EndDate, &d.DiscountPercentage,
			&d.SpecialOfferDetails, &d.IsDealOfTheDay, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// AddToCart 同一用户同一商品累加数量
func (s *Store) AddToCart(ctx context.Context, userID, productID, quantity int) error {
	if _, err := s.ProductByID(ctx, productID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO carts (user_id, product_id, quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity), updated_at = VALUES(updated_at)
	`, userID, productID, quantity, time.Now(), time.Now())
	if err != nil {
		return &models.PersistenceError{Op: "add to cart", Err: err}
	}
	return nil
}

func (s *Store) RemoveFromCart(ctx context.Context, userID, productID int) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM carts WHERE user_id = ? AND product_id = ?", userID, productID)
	if err != nil {
		return &models.PersistenceError{Op: "remove from cart", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &models.PersistenceError{Op: "remove from cart", Err: err}
	}
	if affected == 0 {
		return &models.NotFoundError{Entity: "cart item", ID: productID}
	}
	return nil
}
