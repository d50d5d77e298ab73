package handlers

import (
	"log"
	"net/http"

	"charles-backend/internal/middleware"
	"charles-backend/internal/models"
	"charles-backend/internal/repository"
	"charles-backend/internal/services"
)

type BillingHandler struct {
	payments    *services.PaymentService
	userRepo    *repository.UserRepo
	email       *services.EmailService
	frontendURL string
}

func NewBillingHandler(payments *services.PaymentService, userRepo *repository.UserRepo, email *services.EmailService, frontendURL string) *BillingHandler {
	return &BillingHandler{
		payments:    payments,
		userRepo:    userRepo,
		email:       email,
		frontendURL: frontendURL,
	}
}

// Checkout creates a gateway payment for the premium plan and returns the
// hosted payment page the client must redirect to.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load account", r))
		return
	}

	if user.IsSubscribed() {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "You already have a premium subscription", r))
		return
	}

	link, err := h.payments.InitiateCheckout(r.Context(), user.ID, user.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"payment_link": link})
}

// Callback is where the gateway redirects the browser after checkout. The
// transaction is verified server-side; the query's status parameter alone
// never grants anything.
func (h *BillingHandler) Callback(w http.ResponseWriter, r *http.Request) {
	txRef := r.URL.Query().Get("tx_ref")
	if txRef == "" {
		http.Redirect(w, r, h.frontendURL+"/billing?status=failed", http.StatusSeeOther)
		return
	}

	userID, err := h.payments.VerifyCheckout(r.Context(), txRef)
	if err != nil {
		log.Printf("billing: verification failed for %s: %v", txRef, err)
		http.Redirect(w, r, h.frontendURL+"/billing?status=failed", http.StatusSeeOther)
		return
	}

	if err := h.userRepo.SetPlan(r.Context(), userID, models.PlanPremium); err != nil {
		log.Printf("billing: failed to upgrade user %s: %v", userID, err)
		http.Redirect(w, r, h.frontendURL+"/billing?status=failed", http.StatusSeeOther)
		return
	}

	if user, err := h.userRepo.GetByID(r.Context(), userID); err == nil {
		go h.email.SendSubscriptionReceiptEmail(user.Email, user.FullName)
	}

	http.Redirect(w, r, h.frontendURL+"/billing?status=success", http.StatusSeeOther)
}
