package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
)

// DatabaseStore persists wallet connections with gorm.
type DatabaseStore struct {
	db *gorm.DB
}

func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (s *DatabaseStore) SaveWallet(ctx context.Context, wallet *models.WalletConnection) error {
	if wallet.ID == "" {
		wallet.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"wallet_address", "encrypted_secret", "network_id", "notify_phone", "updated_at"}),
	}).Create(wallet).Error
	if err != nil {
		return fmt.Errorf("save wallet for %s: %w", wallet.UserID, err)
	}
	return nil
}

func (s *DatabaseStore) GetWallet(ctx context.Context, userID string) (*models.WalletConnection, error) {
	var wallet models.WalletConnection
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet for %s: %w", userID, err)
	}
	return &wallet, nil
}

func (s *DatabaseStore) DeleteWallet(ctx context.Context, userID string) error {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.WalletConnection{})
	if res.Error != nil {
		return fmt.Errorf("delete wallet for %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
