package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/harborlane/clienteling-core/internal/basket"
	"github.com/harborlane/clienteling-core/pkg/enums"
)

// record is the persisted shape of one basket's workflow state.
type record struct {
	BasketID             string `gorm:"primaryKey;column:basket_id"`
	CheckoutStatus       string `gorm:"column:checkout_status"`
	LastCheckoutStatus   string `gorm:"column:last_checkout_status"`
	ShipToStore          bool   `gorm:"column:ship_to_store"`
	DifferentStorePickup bool   `gorm:"column:different_store_pickup"`
	EnableCheckout       bool   `gorm:"column:enable_checkout"`
	UpdatedAt            time.Time
}

func (record) TableName() string { return "workflow_snapshots" }

// Store persists workflow state across daemon restarts. The server never
// returns these fields, so losing them would silently reset every in-flight
// checkout to the cart stage.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the snapshot database at path and migrates its
// schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot store path required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrating snapshot store: %w", err)
	}
	return &Store{db: db}, nil
}

// Save upserts the workflow state for a basket.
func (s *Store) Save(ctx context.Context, basketID string, state basket.WorkflowState) error {
	if basketID == "" || basketID == basket.SentinelID {
		// Unpersisted baskets have no stable identity to key on.
		return nil
	}
	row := record{
		BasketID:             basketID,
		CheckoutStatus:       state.CheckoutStatus.String(),
		LastCheckoutStatus:   state.LastCheckoutStatus.String(),
		ShipToStore:          state.ShipToStore,
		DifferentStorePickup: state.DifferentStorePickup,
		EnableCheckout:       state.EnableCheckout,
		UpdatedAt:            time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "basket_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// Load returns the stored workflow state for a basket; found is false when
// none was ever saved.
func (s *Store) Load(ctx context.Context, basketID string) (basket.WorkflowState, bool, error) {
	var row record
	err := s.db.WithContext(ctx).First(&row, "basket_id = ?", basketID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return basket.WorkflowState{}, false, nil
	}
	if err != nil {
		return basket.WorkflowState{}, false, fmt.Errorf("loading workflow snapshot: %w", err)
	}

	state := basket.WorkflowState{
		ShipToStore:          row.ShipToStore,
		DifferentStorePickup: row.DifferentStorePickup,
		EnableCheckout:       row.EnableCheckout,
	}
	if stage, err := enums.ParseCheckoutStage(row.CheckoutStatus); err == nil {
		state.CheckoutStatus = stage
	} else {
		state.CheckoutStatus = enums.StageCart
	}
	if stage, err := enums.ParseCheckoutStage(row.LastCheckoutStatus); err == nil {
		state.LastCheckoutStatus = stage
	} else {
		state.LastCheckoutStatus = enums.StageCart
	}
	return state, true, nil
}

// Delete drops the stored state for a basket, used when the basket itself is
// destroyed.
func (s *Store) Delete(ctx context.Context, basketID string) error {
	return s.db.WithContext(ctx).Delete(&record{}, "basket_id = ?", basketID).Error
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
