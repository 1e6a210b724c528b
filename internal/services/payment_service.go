// internal/services/payment_service.go
package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/docmarket/backend/internal/apperrors"
	"github.com/docmarket/backend/internal/config"
	"github.com/docmarket/backend/internal/models"
)

// referencePrefix is the fixed tag embedded in bank transfer memos. The code
// after it is always exactly 8 characters, so extraction can anchor on both.
const referencePrefix = "DH"

// Bank apps surround the memo with arbitrary text, so the code is searched
// for anywhere in the content, case-insensitively.
var referencePattern = regexp.MustCompile(`(?i)DH([A-Z0-9]{8})`)

type PaymentService struct {
	store   TransactionStore
	catalog CatalogStore
	gateway GatewayLister
	cfg     *config.Config
}

type CreatePaymentRequest struct {
	ItemType string          `json:"item_type" validate:"required,oneof=document package topup"`
	ItemID   string          `json:"item_id,omitempty"`
	Amount   decimal.Decimal `json:"amount,omitempty"` // top-ups only
}

// PaymentInfo is the displayable payment instruction set returned to the
// client: what to transfer, where, and with which memo code.
type PaymentInfo struct {
	BankAccount   string          `json:"bank_account"`
	BankName      string          `json:"bank_name"`
	AccountName   string          `json:"account_name"`
	Amount        decimal.Decimal `json:"amount"`
	ReferenceCode string          `json:"reference_code"`
	TransactionID string          `json:"transaction_id"`
	QRCodeURL     string          `json:"qr_code"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

type StatusInfo struct {
	TransactionID string                   `json:"transaction_id"`
	Status        models.TransactionStatus `json:"status"`
	PaymentStatus models.PaymentStatus     `json:"payment_status"`
	Amount        decimal.Decimal          `json:"amount"`
	GatewayTxID   string                   `json:"gateway_transaction_id,omitempty"`
	ExpiresAt     *time.Time               `json:"expires_at,omitempty"`
}

// WebhookResult is the structured outcome of processing one notification.
// Accepted mirrors what the gateway should see: true for anything it must
// not retry, including soft skips and idempotent replays.
type WebhookResult struct {
	Accepted bool   `json:"accepted"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

const (
	WebhookCodeProcessed        = "processed"
	WebhookCodeAlreadyProcessed = "already_processed"
	WebhookCodeNotACredit       = "not_a_credit"
	WebhookCodeAuthFailed       = "authentication_failed"
	WebhookCodeInvalidPayload   = "invalid_payload"
	WebhookCodeNoOrderCode      = "no_order_code"
	WebhookCodeNotFound         = "transaction_not_found"
	WebhookCodeNotPayable       = "transaction_not_payable"
	WebhookCodeAmountMismatch   = "amount_mismatch"
)

func NewPaymentService(store TransactionStore, catalog CatalogStore, gateway GatewayLister, cfg *config.Config) *PaymentService {
	return &PaymentService{
		store:   store,
		catalog: catalog,
		gateway: gateway,
		cfg:     cfg,
	}
}

// ReferenceCode derives the transfer memo code from a transaction id: the
// last 8 characters uppercased behind the fixed prefix. Deterministic, so it
// can be recomputed at any time instead of stored as a source of truth.
func ReferenceCode(id string) string {
	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[len(suffix)-8:]
	}
	return referencePrefix + strings.ToUpper(suffix)
}

// DisplayReference prepends the gateway's virtual-account routing prefix
// when one is configured. Only the display form carries the prefix; matching
// always uses the bare code.
func DisplayReference(virtualAccount, code string) string {
	if virtualAccount == "" {
		return code
	}
	return virtualAccount + " " + code
}

// CreatePayment resolves the purchased item, reuses or creates the pending
// gateway transaction, and returns the displayable payment instructions.
// Purchase guards run before any transaction is created.
func (s *PaymentService) CreatePayment(ctx context.Context, userID uuid.UUID, req *CreatePaymentRequest) (*PaymentInfo, error) {
	gw := s.cfg.Gateway
	if !gw.Enabled {
		return nil, apperrors.ErrGatewayDisabled
	}

	var (
		kind      models.TransactionKind
		amount    decimal.Decimal
		targetRef *uuid.UUID
	)

	switch req.ItemType {
	case "document":
		itemID, err := uuid.Parse(req.ItemID)
		if err != nil {
			return nil, apperrors.ErrItemNotFound
		}
		doc, err := s.catalog.GetDocument(ctx, itemID)
		if err != nil {
			return nil, err
		}
		purchased, err := s.store.HasCompletedPurchase(ctx, userID, models.TransactionKindDocument, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check purchases: %w", err)
		}
		if purchased {
			return nil, apperrors.ErrAlreadyPurchased
		}
		kind = models.TransactionKindDocument
		amount = doc.Price
		targetRef = &doc.ID

	case "package":
		itemID, err := uuid.Parse(req.ItemID)
		if err != nil {
			return nil, apperrors.ErrItemNotFound
		}
		pkg, err := s.catalog.GetPackage(ctx, itemID)
		if err != nil {
			return nil, err
		}
		purchased, err := s.store.HasCompletedPurchase(ctx, userID, models.TransactionKindPackage, pkg.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check purchases: %w", err)
		}
		if purchased {
			return nil, apperrors.ErrAlreadyPurchased
		}
		kind = models.TransactionKindPackage
		amount = pkg.Price
		targetRef = &pkg.ID

	case "topup":
		if !req.Amount.IsPositive() {
			return nil, apperrors.ErrInvalidAmount
		}
		kind = models.TransactionKindTopup
		amount = req.Amount

	default:
		return nil, apperrors.ErrItemNotFound
	}

	// Reuse an open payment for the same user/item instead of piling up
	// duplicate pending rows on client retries.
	txn, err := s.store.FindPendingGateway(ctx, userID, kind, targetRef)
	if err != nil {
		if !errors.Is(err, apperrors.ErrTransactionNotFound) {
			return nil, fmt.Errorf("failed to look up pending payment: %w", err)
		}
		txn = &models.Transaction{
			UserID:        userID,
			Kind:          kind,
			TargetRef:     targetRef,
			Amount:        amount,
			Status:        models.TransactionStatusPending,
			PaymentStatus: models.PaymentStatusPending,
			PaymentMethod: models.PaymentMethodGateway,
		}
		if err := s.store.Create(ctx, txn); err != nil {
			return nil, fmt.Errorf("failed to create transaction: %w", err)
		}
	}

	code := ReferenceCode(txn.ID.String())
	expiresAt := time.Now().Add(time.Duration(gw.PaymentTimeout) * time.Second)
	qrURL := s.qrCodeURL(txn.Amount, DisplayReference(gw.VirtualAccount, code))

	if err := s.store.SavePaymentRequest(ctx, txn.ID, code, qrURL, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to save payment request: %w", err)
	}

	return &PaymentInfo{
		BankAccount:   gw.BankAccount,
		BankName:      gw.BankName,
		AccountName:   gw.AccountName,
		Amount:        txn.Amount,
		ReferenceCode: DisplayReference(gw.VirtualAccount, code),
		TransactionID: txn.ID.String(),
		QRCodeURL:     qrURL,
		ExpiresAt:     expiresAt,
	}, nil
}

// qrCodeURL builds the payable QR image link. The reference goes through
// query encoding because virtual-account display forms contain a space.
func (s *PaymentService) qrCodeURL(amount decimal.Decimal, reference string) string {
	q := url.Values{}
	q.Set("acc", s.cfg.Gateway.BankAccount)
	q.Set("bank", s.cfg.Gateway.BankName)
	q.Set("amount", amount.String())
	q.Set("des", reference)
	return s.cfg.Gateway.QRBaseURL + "?" + q.Encode()
}

// ProcessNotification runs the webhook reconciliation state machine. The
// returned error is reserved for internal failures (store unreachable);
// every business outcome, accepted or rejected, arrives as a WebhookResult.
func (s *PaymentService) ProcessNotification(ctx context.Context, rawBody []byte, authHeader, signature string) (*WebhookResult, error) {
	// Step 1: authenticate before touching anything. Rejection stays opaque
	// about whether any transaction would have matched.
	if !s.authenticateWebhook(rawBody, authHeader, signature) {
		logrus.Warn("Webhook rejected: authentication failed")
		return &WebhookResult{Accepted: false, Code: WebhookCodeAuthFailed, Message: "invalid credentials"}, nil
	}

	// Step 2: parse.
	var notif gatewayNotification
	if err := json.Unmarshal(rawBody, &notif); err != nil {
		return &WebhookResult{Accepted: false, Code: WebhookCodeInvalidPayload, Message: "invalid JSON payload"}, nil
	}

	// Step 3: settlement-id idempotency gate. Redelivery of an already
	// recorded notification is acknowledged without re-mutating anything.
	gatewayTxID := notif.gatewayID()
	if gatewayTxID != "" {
		existing, err := s.store.FindByGatewayTxID(ctx, gatewayTxID)
		if err != nil && !errors.Is(err, apperrors.ErrTransactionNotFound) {
			return nil, fmt.Errorf("idempotency lookup failed: %w", err)
		}
		if existing != nil && existing.PaymentStatus == models.PaymentStatusCompleted {
			return &WebhookResult{Accepted: true, Code: WebhookCodeAlreadyProcessed, Message: "transaction already processed"}, nil
		}
	}

	// Step 4: only incoming credits settle payments. Outgoing transfers are
	// acknowledged so the gateway stops retrying them.
	if !notif.incoming() {
		return &WebhookResult{Accepted: true, Code: WebhookCodeNotACredit, Message: "ignored outgoing transfer"}, nil
	}

	// Step 5: pull the reference code out of the free-text memo.
	match := referencePattern.FindString(notif.content())
	if match == "" {
		logrus.WithField("content", notif.content()).Warn("Webhook rejected: no order code in transfer content")
		return &WebhookResult{Accepted: false, Code: WebhookCodeNoOrderCode, Message: "no order code found"}, nil
	}
	code := strings.ToUpper(match)

	// Step 6: locate the transaction.
	txn, err := s.store.FindByReference(ctx, code)
	if err != nil {
		if errors.Is(err, apperrors.ErrTransactionNotFound) {
			logrus.WithField("reference", code).Warn("Webhook rejected: transaction not found")
			return &WebhookResult{Accepted: false, Code: WebhookCodeNotFound, Message: "transaction not found"}, nil
		}
		return nil, fmt.Errorf("transaction lookup failed: %w", err)
	}

	// Step 7: business-state check, independent of the id gate above. Covers
	// completions that arrived through the status poller.
	switch txn.PaymentStatus {
	case models.PaymentStatusCompleted:
		return &WebhookResult{Accepted: true, Code: WebhookCodeAlreadyProcessed, Message: "transaction already processed"}, nil
	case models.PaymentStatusCancelled, models.PaymentStatusFailed:
		// Cancelled is terminal; a late transfer must not resurrect it.
		return &WebhookResult{Accepted: false, Code: WebhookCodeNotPayable, Message: "transaction is no longer payable"}, nil
	}

	// Step 8: amount validation within the configured absolute tolerance.
	amount := notif.amount()
	if !s.amountWithinTolerance(txn.Amount, amount) {
		logrus.WithFields(logrus.Fields{
			"transaction_id": txn.ID,
			"expected":       txn.Amount,
			"received":       amount,
		}).Warn("Webhook rejected: amount mismatch")
		return &WebhookResult{Accepted: false, Code: WebhookCodeAmountMismatch, Message: "amount mismatch"}, nil
	}

	// Step 9: atomic commit, shared with the status poller.
	var raw models.JSONB
	json.Unmarshal(rawBody, &raw)

	already, err := s.commitCompletion(ctx, txn, gatewayTxID, amount, raw)
	if err != nil {
		if errors.Is(err, apperrors.ErrTransactionFinalized) {
			return &WebhookResult{Accepted: false, Code: WebhookCodeNotPayable, Message: "transaction is no longer payable"}, nil
		}
		return nil, err
	}
	if already {
		return &WebhookResult{Accepted: true, Code: WebhookCodeAlreadyProcessed, Message: "transaction already processed"}, nil
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": txn.ID,
		"gateway_tx_id":  gatewayTxID,
		"amount":         amount,
	}).Info("Payment reconciled via webhook")

	return &WebhookResult{Accepted: true, Code: WebhookCodeProcessed, Message: "payment processed successfully"}, nil
}

// CheckStatus reports the transaction's current state. Completed rows answer
// locally; pending gateway payments fall back to an on-demand scan of the
// gateway's recent transactions in case the webhook was delayed or lost.
func (s *PaymentService) CheckStatus(ctx context.Context, id uuid.UUID) (*StatusInfo, error) {
	txn, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if txn.PaymentStatus == models.PaymentStatusPending &&
		txn.PaymentMethod == models.PaymentMethodGateway &&
		s.cfg.Gateway.Enabled && s.cfg.Gateway.APIKey != "" {
		if s.pollGateway(ctx, txn) {
			if refreshed, err := s.store.Get(ctx, id); err == nil {
				txn = refreshed
			}
		}
	}

	return &StatusInfo{
		TransactionID: txn.ID.String(),
		Status:        txn.Status,
		PaymentStatus: txn.PaymentStatus,
		Amount:        txn.Amount,
		GatewayTxID:   txn.GatewayTxID,
		ExpiresAt:     txn.ExpiresAt,
	}, nil
}

// pollGateway scans the gateway's recent transactions for one matching this
// payment. Gateway/API errors only log; polling never fails the status call.
// Reports whether a completion was committed (by us or a concurrent path).
func (s *PaymentService) pollGateway(ctx context.Context, txn *models.Transaction) bool {
	entries, err := s.gateway.ListTransactions(ctx, s.cfg.Gateway.ListLimit)
	if err != nil {
		logrus.WithError(err).Warn("Gateway listing query failed, returning local state")
		return false
	}

	code := txn.GatewayReference
	if code == "" {
		code = ReferenceCode(txn.ID.String())
	}

	for _, entry := range entries {
		// Banks wrap the memo in extra text, so substring match, not equality.
		if !strings.Contains(strings.ToUpper(entry.Content), code) {
			continue
		}
		if !s.amountWithinTolerance(txn.Amount, entry.AmountIn) {
			continue
		}

		raw := models.JSONB{
			"id":                  entry.ID,
			"transaction_content": entry.Content,
			"amount_in":           entry.AmountIn.String(),
		}
		_, err := s.commitCompletion(ctx, txn, entry.ID, entry.AmountIn, raw)
		if err != nil && !errors.Is(err, apperrors.ErrTransactionFinalized) {
			logrus.WithError(err).WithField("transaction_id", txn.ID).Error("Failed to commit polled completion")
			return false
		}

		logrus.WithFields(logrus.Fields{
			"transaction_id": txn.ID,
			"gateway_tx_id":  entry.ID,
		}).Info("Payment reconciled via status poll")
		return true
	}

	return false
}

// Cancel abandons a pending payment. Completed transactions are never
// retroactively cancelled; cancelling twice succeeds silently.
func (s *PaymentService) Cancel(ctx context.Context, id uuid.UUID) error {
	txn, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	switch txn.PaymentStatus {
	case models.PaymentStatusCompleted:
		return apperrors.ErrCannotCancelCompleted
	case models.PaymentStatusCancelled:
		return nil
	}

	if err := s.store.Cancel(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrTransactionFinalized) {
			// A completion or another cancel won the race; re-read to decide.
			current, gerr := s.store.Get(ctx, id)
			if gerr != nil {
				return gerr
			}
			if current.PaymentStatus == models.PaymentStatusCancelled {
				return nil
			}
			return apperrors.ErrCannotCancelCompleted
		}
		return err
	}

	logrus.WithField("transaction_id", id).Info("Payment cancelled")
	return nil
}

// commitCompletion is the single completion path shared by the webhook and
// the poller. The store's compare-and-set decides the race; losing to an
// earlier completion surfaces as (already=true, nil).
func (s *PaymentService) commitCompletion(ctx context.Context, txn *models.Transaction, gatewayTxID string, amount decimal.Decimal, raw models.JSONB) (already bool, err error) {
	err = s.store.CommitCompletion(ctx, txn.ID, gatewayTxID, amount, raw)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, apperrors.ErrTransactionFinalized) {
		return false, fmt.Errorf("failed to commit completion: %w", err)
	}

	current, gerr := s.store.Get(ctx, txn.ID)
	if gerr != nil {
		return false, gerr
	}
	if current.PaymentStatus == models.PaymentStatusCompleted {
		return true, nil
	}
	return false, apperrors.ErrTransactionFinalized
}

func (s *PaymentService) amountWithinTolerance(expected, received decimal.Decimal) bool {
	tolerance := decimal.NewFromInt(s.cfg.Gateway.AmountTolerance)
	return expected.Sub(received).Abs().LessThanOrEqual(tolerance)
}

// authenticateWebhook accepts either a valid HMAC-SHA256 signature over the
// raw body or the configured static API key in the auth header. Comparisons
// are constant-time; with neither mode configured every delivery is refused.
func (s *PaymentService) authenticateWebhook(rawBody []byte, authHeader, signature string) bool {
	gw := s.cfg.Gateway

	if gw.WebhookSecret != "" && signature != "" {
		mac := hmac.New(sha256.New, []byte(gw.WebhookSecret))
		mac.Write(rawBody)
		expected := hex.EncodeToString(mac.Sum(nil))
		if hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
			return true
		}
	}

	if gw.WebhookAPIKey != "" {
		key := extractAPIKey(authHeader)
		if key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(gw.WebhookAPIKey)) == 1 {
			return true
		}
	}

	return false
}

// extractAPIKey pulls the credential out of whatever wrapper the gateway
// uses: "<policy KEY>", "Apikey KEY", "Bearer KEY" or the bare key. The key
// is always the last token once angle brackets are stripped.
func extractAPIKey(header string) string {
	h := strings.TrimSpace(header)
	h = strings.TrimPrefix(h, "<")
	h = strings.TrimSuffix(h, ">")
	fields := strings.Fields(h)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// gatewayNotification tolerates the key-name variants the gateway has used
// across versions; accessors pick the first populated field.
type gatewayNotification struct {
	ID                 flexString      `json:"id"`
	TransactionID      flexString      `json:"transaction_id"`
	TransferType       string          `json:"transferType"`
	Direction          string          `json:"direction"`
	TransferAmount     decimal.Decimal `json:"transferAmount"`
	AmountField        decimal.Decimal `json:"amount"`
	AmountIn           decimal.Decimal `json:"amount_in"`
	TransferContent    string          `json:"transferContent"`
	ContentField       string          `json:"content"`
	TransactionContent string          `json:"transaction_content"`
}

func (n *gatewayNotification) gatewayID() string {
	if n.ID != "" {
		return string(n.ID)
	}
	return string(n.TransactionID)
}

func (n *gatewayNotification) incoming() bool {
	direction := n.TransferType
	if direction == "" {
		direction = n.Direction
	}
	switch strings.ToLower(direction) {
	case "out", "debit", "outgoing":
		return false
	}
	// Absent direction means the gateway only reports credits.
	return true
}

func (n *gatewayNotification) amount() decimal.Decimal {
	if !n.TransferAmount.IsZero() {
		return n.TransferAmount
	}
	if !n.AmountField.IsZero() {
		return n.AmountField
	}
	return n.AmountIn
}

func (n *gatewayNotification) content() string {
	if n.TransferContent != "" {
		return n.TransferContent
	}
	if n.ContentField != "" {
		return n.ContentField
	}
	return n.TransactionContent
}

// flexString unmarshals JSON strings and bare numbers alike; the gateway
// sends numeric ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}
