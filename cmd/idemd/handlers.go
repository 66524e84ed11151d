package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// demoService stands in for the business layer. Every create mints a fresh
// id, so a duplicate execution would be visible as a second id.
type demoService struct {
	mu       sync.RWMutex
	payments map[string]payment

	executions atomic.Int64
}

type payment struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type createPaymentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type createAccountRequest struct {
	Email string `json:"email"`
}

type createTransactionRequest struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
}

func newDemoService() *demoService {
	return &demoService{payments: make(map[string]payment)}
}

func (s *demoService) createPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "amount must be positive", "code": "invalid_amount"})
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	s.executions.Add(1)

	p := payment{
		ID:        "pay_" + uuid.NewString(),
		Amount:    req.Amount,
		Currency:  strings.ToUpper(req.Currency),
		Status:    "created",
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.payments[p.ID] = p
	s.mu.Unlock()

	w.Header().Set("Location", "/payments/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (s *demoService) getPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.RLock()
	p, ok := s.payments[id]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found", "code": "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *demoService) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "email is invalid", "code": "invalid_email"})
		return
	}
	s.executions.Add(1)

	id := "acct_" + uuid.NewString()
	w.Header().Set("Location", "/accounts/"+id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "email": req.Email})
}

func (s *demoService) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AccountID == "" || req.Amount == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "account_id and amount are required", "code": "invalid_transaction"})
		return
	}
	s.executions.Add(1)

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         "txn_" + uuid.NewString(),
		"account_id": req.AccountID,
		"amount":     req.Amount,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON body", "code": "invalid_json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
