package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/storage"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/utils"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/wallet"
)

// ErrNoWallet is returned when a user has not connected a wallet.
var ErrNoWallet = errors.New("no wallet connected")

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

const minWalletDataLength = 50

// weiThreshold marks balances that are reported in wei.
var weiThreshold = big.NewInt(1_000_000_000_000)

// WalletService links users to wallets and opens providers for them.
type WalletService struct {
	repo    storage.WalletRepository
	factory *wallet.Factory
	network string
	key     string
	log     *zap.Logger
}

// NewWalletService encrypts wallet secrets with key. An empty key is replaced
// by a random one, so stored secrets do not survive a restart.
func NewWalletService(repo storage.WalletRepository, factory *wallet.Factory, network, key string, log *zap.Logger) *WalletService {
	log = log.Named("wallets")
	if key == "" {
		log.Warn("WALLET_ENCRYPTION_KEY not set, using an ephemeral key")
		key = utils.RandomHex(32)
	}
	return &WalletService{repo: repo, factory: factory, network: network, key: key, log: log}
}

// Connect validates and stores a wallet for a user, replacing any earlier one.
func (s *WalletService) Connect(ctx context.Context, req models.ConnectWalletRequest) (*models.ConnectWalletResponse, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return nil, models.NewValidationError("user_id is required", nil)
	}
	if !addressPattern.MatchString(req.WalletAddress) {
		return nil, models.NewValidationError("Invalid wallet address format", map[string]string{"wallet_address": req.WalletAddress})
	}
	if len(req.WalletData) < minWalletDataLength {
		return nil, models.NewValidationError("Invalid wallet data", nil)
	}
	if owner, ok := wallet.KeyAddress(req.WalletData); ok && !strings.EqualFold(owner, req.WalletAddress) {
		return nil, models.NewValidationError("Wallet data does not match wallet address", map[string]string{"wallet_address": req.WalletAddress})
	}

	secret, err := utils.Encrypt(s.key, req.WalletData)
	if err != nil {
		return nil, fmt.Errorf("encrypt wallet data: %w", err)
	}
	conn := &models.WalletConnection{
		UserID:          req.UserID,
		WalletAddress:   req.WalletAddress,
		EncryptedSecret: secret,
		NetworkID:       s.network,
		NotifyPhone:     strings.TrimSpace(req.NotifyPhone),
	}
	if err := s.repo.SaveWallet(ctx, conn); err != nil {
		return nil, fmt.Errorf("save wallet: %w", err)
	}

	s.log.Info("wallet connected", zap.String("user", req.UserID), zap.String("address", req.WalletAddress))
	return &models.ConnectWalletResponse{
		Success:       true,
		Message:       "Wallet connected successfully",
		WalletAddress: req.WalletAddress,
	}, nil
}

// Status reports whether the user has a wallet and its ETH balance.
func (s *WalletService) Status(ctx context.Context, userID string) (*models.WalletStatusResponse, error) {
	conn, err := s.repo.GetWallet(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return &models.WalletStatusResponse{Connected: false}, nil
	}
	if err != nil {
		return nil, err
	}

	unknown := &models.WalletStatusResponse{
		Connected:     true,
		WalletAddress: models.Ptr("Unknown"),
		Balance:       models.Ptr("Unable to fetch"),
	}
	provider, err := s.open(conn)
	if err != nil {
		s.log.Warn("could not open wallet", zap.String("user", userID), zap.Error(err))
		return unknown, nil
	}
	raw, err := provider.Balance(ctx, "ETH")
	if err != nil {
		s.log.Warn("could not fetch wallet balance", zap.String("user", userID), zap.Error(err))
		return unknown, nil
	}
	return &models.WalletStatusResponse{
		Connected:     true,
		WalletAddress: models.Ptr(provider.Address()),
		Balance:       models.Ptr(FormatBalance(raw) + " ETH"),
	}, nil
}

// Disconnect forgets the user's wallet. Disconnecting twice is not an error.
func (s *WalletService) Disconnect(ctx context.Context, userID string) error {
	err := s.repo.DeleteWallet(ctx, userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	s.log.Info("wallet disconnected", zap.String("user", userID))
	return nil
}

// Open returns the provider and connection record of the user's wallet.
func (s *WalletService) Open(ctx context.Context, userID string) (wallet.Provider, *models.WalletConnection, error) {
	conn, err := s.repo.GetWallet(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrNoWallet
	}
	if err != nil {
		return nil, nil, err
	}
	p, err := s.open(conn)
	if err != nil {
		return nil, nil, err
	}
	return p, conn, nil
}

func (s *WalletService) open(conn *models.WalletConnection) (wallet.Provider, error) {
	secret, err := utils.Decrypt(s.key, conn.EncryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet data: %w", err)
	}
	return s.factory.Open(conn.WalletAddress, secret), nil
}

func (s *WalletService) Ping(ctx context.Context) error { return s.repo.Ping(ctx) }

// FormatBalance renders wei amounts as ETH with trailing zeros trimmed.
// Values at or below 1e12 are assumed to be already denominated in ETH.
func FormatBalance(raw *big.Int) string {
	if raw == nil {
		return "0"
	}
	if raw.Cmp(weiThreshold) <= 0 {
		return raw.String()
	}
	s := strconv.FormatFloat(wallet.FromUnits(raw, "ETH"), 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// NotifyPhone returns the phone registered for notifications, if any.
func (s *WalletService) NotifyPhone(ctx context.Context, userID string) string {
	conn, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return ""
	}
	return conn.NotifyPhone
}
