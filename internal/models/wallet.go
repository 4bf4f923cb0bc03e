package models

import "time"

// WalletConnection links a portal user to an encrypted wallet secret.
type WalletConnection struct {
	ID              string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID          string    `json:"user_id" gorm:"uniqueIndex;not null"`
	WalletAddress   string    `json:"wallet_address" gorm:"not null"`
	EncryptedSecret string    `json:"-" gorm:"type:text;not null"`
	NetworkID       string    `json:"network_id"`
	NotifyPhone     string    `json:"notify_phone,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ConnectWalletRequest struct {
	UserID        string `json:"user_id"`
	WalletData    string `json:"wallet_data"`
	WalletAddress string `json:"wallet_address"`
	NotifyPhone   string `json:"notify_phone,omitempty"`
}

type ConnectWalletResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

type WalletStatusRequest struct {
	UserID string `json:"user_id"`
}

type WalletStatusResponse struct {
	Connected     bool    `json:"connected"`
	WalletAddress *string `json:"wallet_address"`
	Balance       *string `json:"balance"`
}
