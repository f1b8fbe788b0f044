package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taskflow/internal/model"
)

// SubscriberRepository keeps the chats that receive the daily digest.
type SubscriberRepository struct {
	db *gorm.DB
}

func NewSubscriberRepository(db *gorm.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// Upsert finds the chat by id and refreshes its profile, creating it when new.
func (r *SubscriberRepository) Upsert(ctx context.Context, sub *model.Subscriber) error {
	var existing model.Subscriber
	db := r.db.WithContext(ctx)
	err := db.Where("chat_id = ?", sub.ChatID).First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"first_name": sub.FirstName,
			"username":   sub.Username,
		}
		if err := db.Model(&existing).Updates(updates).Error; err != nil {
			return fmt.Errorf("update subscriber: %w", err)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := db.Create(sub).Error; err != nil {
			return fmt.Errorf("create subscriber: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("find subscriber: %w", err)
	}
}

func (r *SubscriberRepository) ListAll(ctx context.Context) ([]model.Subscriber, error) {
	var subs []model.Subscriber
	if err := r.db.WithContext(ctx).Order("chat_id ASC").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
