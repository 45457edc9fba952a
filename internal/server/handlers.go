package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"credit-ledger-go/internal/ledger"
	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/purchase"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: unreadable body", ledger.ErrInvalidArgument)
	}
	return decodeBody(body, dst)
}

func decodeBody(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", ledger.ErrInvalidArgument, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ledger.HealthCheck(r.Context()); err != nil {
		zap.L().Warn("Health check failed", zap.Error(err))
		respondKind(w, http.StatusServiceUnavailable, ledger.KindStoreUnavailable, "store unavailable")
		return
	}
	respondJSON(w, http.StatusOK, "ok", map[string]string{"status": "ok"})
}

func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, "ok", s.deps.Catalog.List())
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := s.deps.Checkout.Start(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "checkout session created", resp)
}

func (s *Server) handlePurchaseWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: unreadable body", ledger.ErrInvalidArgument))
		return
	}

	if s.cfg.WebhookSecret != "" && !validSignature(s.cfg.WebhookSecret, body, r.Header.Get(SignatureHeader)) {
		zap.L().Warn("Rejected webhook with bad signature", zap.String("remote_addr", r.RemoteAddr))
		respondKind(w, http.StatusUnauthorized, kindInvalidSignature, "invalid webhook signature")
		return
	}

	var payload models.PurchaseWebhook
	if err := decodeBody(body, &payload); err != nil {
		respondError(w, r, err)
		return
	}

	transaction, err := s.deps.Reconciler.Reconcile(r.Context(), purchase.Event{
		ExternalPaymentId: payload.ExternalPaymentId,
		UserId:            payload.UserId,
		PackageId:         payload.PackageId,
		AmountPaidUSD:     payload.AmountPaidUSD,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.deps.Checkout.Complete(r.Context(), payload.SessionId); err != nil {
		// The credit is committed; a redelivery replays it and retries the session update
		respondError(w, r, err)
		return
	}

	message := "purchase credited"
	if transaction.Replayed {
		message = "purchase already credited"
	}
	respondJSON(w, http.StatusOK, message, transaction)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	account, err := s.deps.Ledger.GetBalance(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", account)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, r, fmt.Errorf("%w: limit must be an integer", ledger.ErrInvalidArgument))
			return
		}
		limit = parsed
	}

	page, err := s.deps.Ledger.ListTransactions(r.Context(), chi.URLParam(r, "userId"), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", page)
}

func (s *Server) handleDebit(w http.ResponseWriter, r *http.Request) {
	var req models.DebitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	transaction, err := s.deps.Ledger.Debit(r.Context(), chi.URLParam(r, "userId"), req.Amount, req.Description)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "credits debited", transaction)
}

func (s *Server) handleDailyBonus(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "userId")

	transaction, granted, err := s.deps.Ledger.ClaimDailyBonus(r.Context(), userId)
	if err != nil {
		respondError(w, r, err)
		return
	}

	account, err := s.deps.Ledger.GetBalance(r.Context(), userId)
	if err != nil {
		respondError(w, r, err)
		return
	}

	message := "daily bonus already claimed"
	if granted {
		message = "daily bonus granted"
	}
	respondJSON(w, http.StatusOK, message, models.BonusResult{
		Granted:     granted,
		Transaction: transaction,
		Account:     account,
	})
}
