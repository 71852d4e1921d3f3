package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/yourorg/checkout-orchestrator/internal/money"
	"github.com/yourorg/checkout-orchestrator/internal/order"
)

// orderRecord is the gorm mapping of an order row.
type orderRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	ProductID    string `gorm:"size:64;index"`
	BuyerID      string `gorm:"size:64;index"`
	PriceCents   int64
	Gateway      string `gorm:"size:16"`
	Token        string `gorm:"size:128;index"`
	ChargeRef    string `gorm:"size:128;index"`
	CustomerRef  string `gorm:"size:128"`
	ErrorMessage string `gorm:"size:255"`
	Status       string `gorm:"size:32;index"`
	CreatedAt    time.Time
}

func (orderRecord) TableName() string { return "orders" }

func toRecord(o *order.Order) orderRecord {
	return orderRecord{
		ID:           o.ID,
		ProductID:    o.ProductID,
		BuyerID:      o.BuyerID,
		PriceCents:   int64(o.PriceCents),
		Gateway:      string(o.Gateway),
		Token:        o.Token,
		ChargeRef:    o.ChargeRef,
		CustomerRef:  o.CustomerRef,
		ErrorMessage: o.ErrorMessage,
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt,
	}
}

func (r orderRecord) toOrder() order.Order {
	return order.Order{
		ID:           r.ID,
		ProductID:    r.ProductID,
		BuyerID:      r.BuyerID,
		PriceCents:   money.Cents(r.PriceCents),
		Gateway:      order.Gateway(r.Gateway),
		Token:        r.Token,
		ChargeRef:    r.ChargeRef,
		CustomerRef:  r.CustomerRef,
		ErrorMessage: r.ErrorMessage,
		Status:       order.Status(r.Status),
		CreatedAt:    r.CreatedAt,
	}
}

// MySQL is the durable order store.
type MySQL struct {
	db *gorm.DB
}

// OpenMySQL connects to MySQL with the given DSN and migrates the orders
// table.
func OpenMySQL(dsn string) (*MySQL, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return NewMySQL(db)
}

// NewMySQL wraps an existing gorm connection.
func NewMySQL(db *gorm.DB) (*MySQL, error) {
	if err := db.AutoMigrate(&orderRecord{}); err != nil {
		return nil, fmt.Errorf("migrate orders: %w", err)
	}
	return &MySQL{db: db}, nil
}

func (s *MySQL) Create(ctx context.Context, o *order.Order) error {
	rec := toRecord(o)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *MySQL) Get(ctx context.Context, id string) (*order.Order, error) {
	var rec orderRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	o := rec.toOrder()
	return &o, nil
}

func (s *MySQL) FindRecentByToken(ctx context.Context, token string, st order.Status, within time.Duration) (*order.Order, error) {
	return s.findRecent(ctx, "token = ?", token, st, within)
}

func (s *MySQL) FindRecentByChargeRef(ctx context.Context, ref string, st order.Status, within time.Duration) (*order.Order, error) {
	return s.findRecent(ctx, "charge_ref = ?", ref, st, within)
}

func (s *MySQL) findRecent(ctx context.Context, cond, value string, st order.Status, within time.Duration) (*order.Order, error) {
	if value == "" {
		return nil, order.ErrNotFound
	}
	var rec orderRecord
	err := s.db.WithContext(ctx).
		Where(cond, value).
		Where("status = ? AND created_at >= ?", string(st), time.Now().Add(-within)).
		Order("created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	o := rec.toOrder()
	return &o, nil
}

// Transition is a conditional update guarded by the expected prior status.
// The WHERE clause carries the guard so a lost race surfaces as zero
// affected rows rather than a silent double write.
func (s *MySQL) Transition(ctx context.Context, id string, from, to order.Status, f order.Fields) error {
	updates := map[string]interface{}{"status": string(to)}
	if f.ChargeRef != "" {
		updates["charge_ref"] = f.ChargeRef
	}
	if f.CustomerRef != "" {
		updates["customer_ref"] = f.CustomerRef
	}
	if f.ErrorMessage != "" {
		updates["error_message"] = f.ErrorMessage
	}
	if f.ClearToken {
		updates["token"] = ""
	}

	res := s.db.WithContext(ctx).
		Model(&orderRecord{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&orderRecord{}).Where("id = ?", id).Count(&count).Error; err == nil && count == 0 {
			return order.ErrNotFound
		}
		return order.ErrStale
	}
	return nil
}

func (s *MySQL) ListCreatedSince(ctx context.Context, since time.Time) ([]order.Order, error) {
	var recs []orderRecord
	err := s.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]order.Order, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toOrder())
	}
	return out, nil
}
