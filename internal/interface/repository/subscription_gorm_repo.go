package repository

import (
	"context"
	"errors"
	"time"

	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSubscriptionRepository implements the SubscriptionRepository interface on PostgreSQL
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GORM subscription repository
func NewGormSubscriptionRepository(db *gorm.DB) repository.SubscriptionRepository {
	return &GormSubscriptionRepository{
		db: db,
	}
}

// FlightSubscriptions GORM model for database mapping
type FlightSubscriptions struct {
	ID                    string    `gorm:"column:id;primaryKey"`
	ConnectionID          string    `gorm:"column:connection_id;uniqueIndex"`
	UserID                *string   `gorm:"column:user_id"`
	AreaName              string    `gorm:"column:area_name"`
	MinLatitude           float64   `gorm:"column:min_latitude"`
	MaxLatitude           float64   `gorm:"column:max_latitude"`
	MinLongitude          float64   `gorm:"column:min_longitude"`
	MaxLongitude          float64   `gorm:"column:max_longitude"`
	UpdateIntervalSeconds int       `gorm:"column:update_interval_seconds"`
	IsActive              bool      `gorm:"column:is_active;index"`
	CreatedAt             time.Time `gorm:"column:created_at"`
	LastUpdatedAt         time.Time `gorm:"column:last_updated_at"`
}

// TableName overrides the default table name
func (FlightSubscriptions) TableName() string {
	return "flight_subscriptions"
}

// AutoMigrateSubscriptions creates or updates the subscriptions table
func AutoMigrateSubscriptions(db *gorm.DB) error {
	return db.AutoMigrate(&FlightSubscriptions{})
}

func toSubscriptionModel(sub *entity.FlightSubscription) *FlightSubscriptions {
	return &FlightSubscriptions{
		ID:                    sub.ID,
		ConnectionID:          sub.ConnectionID,
		UserID:                sub.UserID,
		AreaName:              sub.AreaName,
		MinLatitude:           sub.Area.MinLatitude,
		MaxLatitude:           sub.Area.MaxLatitude,
		MinLongitude:          sub.Area.MinLongitude,
		MaxLongitude:          sub.Area.MaxLongitude,
		UpdateIntervalSeconds: sub.UpdateIntervalSeconds,
		IsActive:              sub.IsActive,
		CreatedAt:             sub.CreatedAt,
		LastUpdatedAt:         sub.LastUpdatedAt,
	}
}

// Convert GORM model to domain entity
func (m *FlightSubscriptions) toEntity() *entity.FlightSubscription {
	return &entity.FlightSubscription{
		ID:           m.ID,
		ConnectionID: m.ConnectionID,
		UserID:       m.UserID,
		AreaName:     m.AreaName,
		Area: entity.BoundingBox{
			MinLatitude:  m.MinLatitude,
			MaxLatitude:  m.MaxLatitude,
			MinLongitude: m.MinLongitude,
			MaxLongitude: m.MaxLongitude,
		},
		UpdateIntervalSeconds: m.UpdateIntervalSeconds,
		IsActive:              m.IsActive,
		CreatedAt:             m.CreatedAt,
		LastUpdatedAt:         m.LastUpdatedAt,
	}
}

// GetByID finds a subscription by ID
func (r *GormSubscriptionRepository) GetByID(ctx context.Context, id string) (*entity.FlightSubscription, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByConnectionID finds the subscription owned by a connection
func (r *GormSubscriptionRepository) GetByConnectionID(ctx context.Context, connectionID string) (*entity.FlightSubscription, error) {
	return r.first(ctx, "connection_id = ?", connectionID)
}

func (r *GormSubscriptionRepository) first(ctx context.Context, query string, arg interface{}) (*entity.FlightSubscription, error) {
	var model FlightSubscriptions
	result := r.db.WithContext(ctx).Where(query, arg).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSubscriptionNotFound
		}
		return nil, result.Error
	}
	return model.toEntity(), nil
}

// ListActive returns every active subscription, least recently updated first
func (r *GormSubscriptionRepository) ListActive(ctx context.Context) ([]*entity.FlightSubscription, error) {
	var models []FlightSubscriptions
	result := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("last_updated_at ASC").
		Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	subs := make([]*entity.FlightSubscription, 0, len(models))
	for i := range models {
		subs = append(subs, models[i].toEntity())
	}
	return subs, nil
}

// Create inserts a subscription, assigning an ID when it has none
func (r *GormSubscriptionRepository) Create(ctx context.Context, sub *entity.FlightSubscription) (*entity.FlightSubscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(toSubscriptionModel(sub)).Error; err != nil {
		return nil, err
	}
	return sub, nil
}

// Update replaces a stored subscription
func (r *GormSubscriptionRepository) Update(ctx context.Context, sub *entity.FlightSubscription) error {
	model := toSubscriptionModel(sub)
	result := r.db.WithContext(ctx).
		Model(&FlightSubscriptions{}).
		Where("id = ?", sub.ID).
		Select("*").
		Omit("id").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrSubscriptionNotFound
	}
	return nil
}

// DeleteByID removes a subscription by ID
func (r *GormSubscriptionRepository) DeleteByID(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&FlightSubscriptions{}).Error
}

// DeleteByConnectionID removes the subscription owned by a connection
func (r *GormSubscriptionRepository) DeleteByConnectionID(ctx context.Context, connectionID string) error {
	return r.db.WithContext(ctx).Where("connection_id = ?", connectionID).Delete(&FlightSubscriptions{}).Error
}
