package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"credit-ledger-go/internal/catalog"
	"credit-ledger-go/internal/ledger"
	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"go.uber.org/zap"
)

var ErrInvalidRequest = fmt.Errorf("invalid checkout request: %w", ledger.ErrInvalidArgument)

// SessionStore records checkout sessions
type SessionStore interface {
	CreateCheckoutSession(ctx context.Context, session models.CheckoutSession) (*models.CheckoutSession, error)
	CompleteCheckoutSession(ctx context.Context, sessionId string) error
}

// Service opens checkout sessions for catalog packages
type Service struct {
	sessions SessionStore
	catalog  *catalog.Catalog
}

func NewService(sessions SessionStore, packages *catalog.Catalog) *Service {
	return &Service{sessions: sessions, catalog: packages}
}

func (s *Service) Start(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	if req.UserId == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	if req.PackageId == "" {
		return nil, fmt.Errorf("%w: packageId is required", ErrInvalidRequest)
	}
	if _, err := mail.ParseAddress(req.UserEmail); err != nil {
		return nil, fmt.Errorf("%w: userEmail %q is not a valid address", ErrInvalidRequest, req.UserEmail)
	}

	pkg, err := s.catalog.Get(req.PackageId)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.CreateCheckoutSession(ctx, models.CheckoutSession{
		UserId:    req.UserId,
		UserEmail: req.UserEmail,
		PackageId: pkg.Id,
		PriceUSD:  pkg.PriceUSD,
	})
	if err != nil {
		zap.L().Error("Failed to create checkout session",
			zap.String("user_id", req.UserId),
			zap.String("package_id", req.PackageId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &models.CheckoutResponse{SessionId: session.Id}, nil
}

// Complete marks a session paid. Sessions unknown to this service are not an
// error; the payment may have been started elsewhere.
func (s *Service) Complete(ctx context.Context, sessionId string) error {
	if sessionId == "" {
		return nil
	}
	err := s.sessions.CompleteCheckoutSession(ctx, sessionId)
	if errors.Is(err, store.ErrSessionNotFound) {
		zap.L().Info("Purchase for unknown checkout session", zap.String("session_id", sessionId))
		return nil
	}
	return err
}
