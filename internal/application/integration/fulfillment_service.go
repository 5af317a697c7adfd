package integration

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/shared"
	"go.uber.org/zap"
)

// FulfillmentService forwards stock and shipment updates to a marketplace
// using its current valid token.
type FulfillmentService struct {
	registry *marketplace.Registry
	tokens   TokenSource
	logger   *zap.Logger
}

// NewFulfillmentService creates a FulfillmentService
func NewFulfillmentService(registry *marketplace.Registry, tokens TokenSource, logger *zap.Logger) *FulfillmentService {
	return &FulfillmentService{registry: registry, tokens: tokens, logger: logger}
}

// UpdateStock sets the available quantity of a listing
func (s *FulfillmentService) UpdateStock(ctx context.Context, code marketplace.Code, itemID string, quantity int) error {
	if strings.TrimSpace(itemID) == "" {
		return fmt.Errorf("%w: item id is required", shared.ErrInvalidInput)
	}
	if quantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative", shared.ErrInvalidInput)
	}

	mp, token, err := s.resolve(ctx, code)
	if err != nil {
		return err
	}
	if err := mp.UpdateStock(ctx, token, itemID, quantity); err != nil {
		return fmt.Errorf("update %s stock for %s: %w", code, itemID, err)
	}

	s.logger.Info("Stock updated",
		zap.String("marketplace", code.String()),
		zap.String("item_id", itemID),
		zap.Int("quantity", quantity),
	)
	return nil
}

// SendTracking submits shipment tracking for an order
func (s *FulfillmentService) SendTracking(ctx context.Context, code marketplace.Code, orderID string, info marketplace.TrackingInfo) error {
	if strings.TrimSpace(orderID) == "" {
		return fmt.Errorf("%w: order id is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(info.TrackingNumber) == "" {
		return fmt.Errorf("%w: tracking number is required", shared.ErrInvalidInput)
	}

	mp, token, err := s.resolve(ctx, code)
	if err != nil {
		return err
	}
	if err := mp.SendTracking(ctx, token, orderID, info); err != nil {
		return fmt.Errorf("send %s tracking for %s: %w", code, orderID, err)
	}

	s.logger.Info("Tracking sent",
		zap.String("marketplace", code.String()),
		zap.String("order_id", orderID),
		zap.String("tracking_number", info.TrackingNumber),
	)
	return nil
}

func (s *FulfillmentService) resolve(ctx context.Context, code marketplace.Code) (marketplace.Marketplace, string, error) {
	mp, err := s.registry.Get(code)
	if err != nil {
		return nil, "", err
	}
	token, err := s.tokens.ValidToken(ctx, code)
	if err != nil {
		return nil, "", err
	}
	return mp, token.AccessToken, nil
}
