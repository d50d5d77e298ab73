package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CheckoutRefStore parks transaction references between the redirect out to
// the gateway and the callback home, keyed by tx_ref.
type CheckoutRefStore interface {
	Save(ctx context.Context, txRef string, userID uuid.UUID) error
	Resolve(ctx context.Context, txRef string) (uuid.UUID, error)
	Consume(ctx context.Context, txRef string)
}

// RedisCheckoutRefStore keeps references in Redis with a 24h TTL.
type RedisCheckoutRefStore struct {
	client *redis.Client
}

func NewRedisCheckoutRefStore(client *redis.Client) *RedisCheckoutRefStore {
	return &RedisCheckoutRefStore{client: client}
}

func (s *RedisCheckoutRefStore) Save(ctx context.Context, txRef string, userID uuid.UUID) error {
	return s.client.Set(ctx, "checkout:"+txRef, userID.String(), 24*time.Hour).Err()
}

func (s *RedisCheckoutRefStore) Resolve(ctx context.Context, txRef string) (uuid.UUID, error) {
	val, err := s.client.Get(ctx, "checkout:"+txRef).Result()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(val)
}

func (s *RedisCheckoutRefStore) Consume(ctx context.Context, txRef string) {
	s.client.Del(ctx, "checkout:"+txRef)
}

// PaymentService drives the redirect checkout against the card gateway. The
// gateway owns the whole payment UI; our side is two REST calls: create a
// payment link, then verify the transaction reference on the way back.
type PaymentService struct {
	apiURL      string
	secretKey   string
	currency    string
	amountKobo  int
	frontendURL string
	refs        CheckoutRefStore
	httpClient  *http.Client
}

func NewPaymentService(apiURL, secretKey, currency string, amountKobo int, frontendURL string, refs CheckoutRefStore) *PaymentService {
	return &PaymentService{
		apiURL:      apiURL,
		secretKey:   secretKey,
		currency:    currency,
		amountKobo:  amountKobo,
		frontendURL: frontendURL,
		refs:        refs,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

type checkoutRequest struct {
	TxRef       string           `json:"tx_ref"`
	Amount      string           `json:"amount"`
	Currency    string           `json:"currency"`
	RedirectURL string           `json:"redirect_url"`
	Customer    checkoutCustomer `json:"customer"`
}

type checkoutCustomer struct {
	Email string `json:"email"`
}

type gatewayResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link   string `json:"link"`
		Status string `json:"status"`
		TxRef  string `json:"tx_ref"`
	} `json:"data"`
}

// InitiateCheckout creates a gateway payment for the premium plan and returns
// the hosted payment link the browser must be redirected to.
func (s *PaymentService) InitiateCheckout(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	txRef := fmt.Sprintf("swc-%s", uuid.NewString())

	body := checkoutRequest{
		TxRef:       txRef,
		Amount:      fmt.Sprintf("%d", s.amountKobo/100),
		Currency:    s.currency,
		RedirectURL: s.frontendURL + "/billing/callback",
		Customer:    checkoutCustomer{Email: email},
	}
	payload, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/payments", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &UpstreamError{Provider: "payment", Message: err.Error()}
	}
	defer resp.Body.Close()

	var gw gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&gw); err != nil {
		return "", &UpstreamError{Provider: "payment", Message: "unreadable gateway response"}
	}

	if resp.StatusCode != http.StatusOK || gw.Status != "success" || gw.Data.Link == "" {
		msg := gw.Message
		if msg == "" {
			msg = fmt.Sprintf("gateway returned HTTP %d", resp.StatusCode)
		}
		return "", &UpstreamError{Provider: "payment", Message: msg}
	}

	if err := s.refs.Save(ctx, txRef, userID); err != nil {
		return "", fmt.Errorf("failed to store checkout reference: %w", err)
	}

	return gw.Data.Link, nil
}

// VerifyCheckout confirms a returning transaction reference with the gateway
// and resolves it back to the paying user. The reference is consumed on
// success so a replayed callback cannot grant premium twice.
func (s *PaymentService) VerifyCheckout(ctx context.Context, txRef string) (uuid.UUID, error) {
	userID, err := s.refs.Resolve(ctx, txRef)
	if err != nil {
		return uuid.Nil, &NotFoundError{Message: "Unknown or expired transaction reference"}
	}

	verifyURL := fmt.Sprintf("%s/transactions/verify_by_reference?tx_ref=%s", s.apiURL, url.QueryEscape(txRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, verifyURL, nil)
	if err != nil {
		return uuid.Nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return uuid.Nil, &UpstreamError{Provider: "payment", Message: err.Error()}
	}
	defer resp.Body.Close()

	var gw gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&gw); err != nil {
		return uuid.Nil, &UpstreamError{Provider: "payment", Message: "unreadable gateway response"}
	}

	if resp.StatusCode != http.StatusOK || gw.Status != "success" || gw.Data.Status != "successful" {
		msg := gw.Message
		if msg == "" {
			msg = "transaction was not successful"
		}
		return uuid.Nil, &UpstreamError{Provider: "payment", Message: msg}
	}

	s.refs.Consume(ctx, txRef)
	return userID, nil
}
