// internal/services/payment_service_test.go
package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/docmarket/backend/internal/apperrors"
	"github.com/docmarket/backend/internal/config"
	"github.com/docmarket/backend/internal/models"
)

// fakeStore is an in-memory TransactionStore with the same compare-and-set
// semantics as the database implementation.
type fakeStore struct {
	mu      sync.Mutex
	txns    map[uuid.UUID]*models.Transaction
	credits map[uuid.UUID][]decimal.Decimal // top-up credits per user
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		txns:    make(map[uuid.UUID]*models.Transaction),
		credits: make(map[uuid.UUID][]decimal.Decimal),
	}
}

func (s *fakeStore) add(txn *models.Transaction) *models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	s.txns[txn.ID] = txn
	return txn
}

func (s *fakeStore) Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[id]
	if !ok {
		return nil, apperrors.ErrTransactionNotFound
	}
	copied := *txn
	return &copied, nil
}

func (s *fakeStore) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Transaction
	for _, txn := range s.txns {
		if txn.GatewayReference != reference || txn.PaymentMethod != models.PaymentMethodGateway {
			continue
		}
		if latest == nil || txn.CreatedAt.After(latest.CreatedAt) {
			latest = txn
		}
	}
	if latest == nil {
		return nil, apperrors.ErrTransactionNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *fakeStore) FindByGatewayTxID(ctx context.Context, gatewayTxID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, txn := range s.txns {
		if txn.GatewayTxID == gatewayTxID {
			copied := *txn
			return &copied, nil
		}
	}
	return nil, apperrors.ErrTransactionNotFound
}

func (s *fakeStore) FindPendingGateway(ctx context.Context, userID uuid.UUID, kind models.TransactionKind, targetRef *uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, txn := range s.txns {
		if txn.UserID != userID || txn.Kind != kind {
			continue
		}
		if txn.PaymentMethod != models.PaymentMethodGateway || txn.PaymentStatus != models.PaymentStatusPending {
			continue
		}
		if (targetRef == nil) != (txn.TargetRef == nil) {
			continue
		}
		if targetRef != nil && *txn.TargetRef != *targetRef {
			continue
		}
		copied := *txn
		return &copied, nil
	}
	return nil, apperrors.ErrTransactionNotFound
}

func (s *fakeStore) HasCompletedPurchase(ctx context.Context, userID uuid.UUID, kind models.TransactionKind, targetRef uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, txn := range s.txns {
		if txn.UserID == userID && txn.Kind == kind &&
			txn.TargetRef != nil && *txn.TargetRef == targetRef &&
			txn.Status == models.TransactionStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) Create(ctx context.Context, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn.ID = uuid.New()
	txn.CreatedAt = time.Now()
	s.txns[txn.ID] = txn
	return nil
}

func (s *fakeStore) SavePaymentRequest(ctx context.Context, id uuid.UUID, reference, qrURL string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[id]
	if !ok {
		return apperrors.ErrTransactionNotFound
	}
	txn.GatewayReference = reference
	txn.QRCodeURL = qrURL
	txn.ExpiresAt = &expiresAt
	return nil
}

func (s *fakeStore) CommitCompletion(ctx context.Context, id uuid.UUID, gatewayTxID string, amount decimal.Decimal, raw models.JSONB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[id]
	if !ok {
		return apperrors.ErrTransactionNotFound
	}
	if txn.PaymentStatus != models.PaymentStatusPending {
		return apperrors.ErrTransactionFinalized
	}
	txn.PaymentStatus = models.PaymentStatusCompleted
	txn.Status = models.TransactionStatusCompleted
	txn.GatewayTxID = gatewayTxID
	txn.RawNotification = raw
	if txn.Kind == models.TransactionKindTopup {
		s.credits[txn.UserID] = append(s.credits[txn.UserID], amount)
	}
	return nil
}

func (s *fakeStore) Cancel(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[id]
	if !ok {
		return apperrors.ErrTransactionNotFound
	}
	if txn.PaymentStatus == models.PaymentStatusCompleted || txn.PaymentStatus == models.PaymentStatusCancelled {
		return apperrors.ErrTransactionFinalized
	}
	txn.PaymentStatus = models.PaymentStatusCancelled
	txn.Status = models.TransactionStatusCancelled
	return nil
}

type fakeCatalog struct {
	documents map[uuid.UUID]*models.Document
	packages  map[uuid.UUID]*models.DocumentPackage
}

func (c *fakeCatalog) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, ok := c.documents[id]
	if !ok {
		return nil, apperrors.ErrItemNotFound
	}
	return doc, nil
}

func (c *fakeCatalog) GetPackage(ctx context.Context, id uuid.UUID) (*models.DocumentPackage, error) {
	pkg, ok := c.packages[id]
	if !ok {
		return nil, apperrors.ErrItemNotFound
	}
	return pkg, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	entries []GatewayTransaction
	err     error
	calls   int
}

func (g *fakeGateway) ListTransactions(ctx context.Context, limit int) ([]GatewayTransaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.entries, nil
}

type PaymentServiceTestSuite struct {
	suite.Suite
	store   *fakeStore
	catalog *fakeCatalog
	gateway *fakeGateway
	cfg     *config.Config
	service *PaymentService
	ctx     context.Context
}

func (suite *PaymentServiceTestSuite) SetupTest() {
	suite.store = newFakeStore()
	suite.catalog = &fakeCatalog{
		documents: make(map[uuid.UUID]*models.Document),
		packages:  make(map[uuid.UUID]*models.DocumentPackage),
	}
	suite.gateway = &fakeGateway{}
	suite.cfg = &config.Config{
		Environment: "test",
		Gateway: config.GatewayConfig{
			Enabled:         true,
			APIKey:          "list-api-key",
			WebhookSecret:   "webhook-secret",
			WebhookAPIKey:   "webhook-key",
			BankAccount:     "0123456789",
			BankName:        "VCB",
			AccountName:     "DOC MARKET",
			APIBaseURL:      "https://gateway.test/userapi",
			QRBaseURL:       "https://qr.test/img",
			PaymentTimeout:  900,
			AmountTolerance: 1000,
			ListLimit:       20,
		},
	}
	suite.service = NewPaymentService(suite.store, suite.catalog, suite.gateway, suite.cfg)
	suite.ctx = context.Background()
}

// pendingPayment seeds a pending gateway transaction the way CreatePayment
// would leave it, with the reference code derived from its id.
func (suite *PaymentServiceTestSuite) pendingPayment(kind models.TransactionKind, amount int64) *models.Transaction {
	txn := suite.store.add(&models.Transaction{
		BaseModel:     models.BaseModel{ID: uuid.New(), CreatedAt: time.Now()},
		UserID:        uuid.New(),
		Kind:          kind,
		Amount:        decimal.NewFromInt(amount),
		Status:        models.TransactionStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodGateway,
	})
	txn.GatewayReference = ReferenceCode(txn.ID.String())
	return txn
}

func (suite *PaymentServiceTestSuite) webhookBody(gatewayTxID, content string, amount int64) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%s,"transferType":"in","transferAmount":%d,"transferContent":%q}`,
		gatewayTxID, amount, content,
	))
}

func (suite *PaymentServiceTestSuite) process(body []byte) *WebhookResult {
	result, err := suite.service.ProcessNotification(suite.ctx, body, "Apikey webhook-key", "")
	suite.Require().NoError(err)
	return result
}

func TestPaymentServiceTestSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceTestSuite))
}

func (suite *PaymentServiceTestSuite) TestReferenceCode() {
	assert.Equal(suite.T(), "DHF9A1B2C3", ReferenceCode("a3d1e7c2-5b4f-4a0e-9d21-0000f9a1b2c3"))
	assert.Equal(suite.T(), "DHABC", ReferenceCode("abc"))
	assert.Equal(suite.T(), "DH", ReferenceCode(""))
}

func (suite *PaymentServiceTestSuite) TestDisplayReference() {
	assert.Equal(suite.T(), "DHF9A1B2C3", DisplayReference("", "DHF9A1B2C3"))
	assert.Equal(suite.T(), "VA12345 DHF9A1B2C3", DisplayReference("VA12345", "DHF9A1B2C3"))
}

func (suite *PaymentServiceTestSuite) TestWebhookHappyPath() {
	txn := suite.pendingPayment(models.TransactionKindDocument, 50000)

	body := suite.webhookBody("9001", "CK chuyen tien "+txn.GatewayReference+" cam on", 50000)
	result := suite.process(body)

	assert.True(suite.T(), result.Accepted)
	assert.Equal(suite.T(), WebhookCodeProcessed, result.Code)

	stored, err := suite.store.Get(suite.ctx, txn.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.PaymentStatusCompleted, stored.PaymentStatus)
	assert.Equal(suite.T(), models.TransactionStatusCompleted, stored.Status)
	assert.Equal(suite.T(), "9001", stored.GatewayTxID)
	assert.NotNil(suite.T(), stored.RawNotification)
}

func (suite *PaymentServiceTestSuite) TestWebhookMemoCaseInsensitive() {
	txn := suite.pendingPayment(models.TransactionKindDocument, 50000)

	lower := "thanh toan dh" + txn.GatewayReference[2:] + " xong"
	result := suite.process(suite.webhookBody("9002", lower, 50000))

	assert.Equal(suite.T(), WebhookCodeProcessed, result.Code)
}

func (suite *PaymentServiceTestSuite) TestWebhookReplayIsIdempotent() {
	txn := suite.pendingPayment(models.TransactionKindTopup, 50000)

	body := suite.webhookBody("9003", txn.GatewayReference, 50000)

	first := suite.process(body)
	assert.Equal(suite.T(), WebhookCodeProcessed, first.Code)

	second := suite.process(body)
	assert.True(suite.T(), second.Accepted)
	assert.Equal(suite.T(), WebhookCodeAlreadyProcessed, second.Code)

	assert.Len(suite.T(), suite.store.credits[txn.UserID], 1)
}

func (suite *PaymentServiceTestSuite) TestWebhookAmountTolerance() {
	within := suite.pendingPayment(models.TransactionKindDocument, 50000)
	result := suite.process(suite.webhookBody("9004", within.GatewayReference, 51000))
	assert.Equal(suite.T(), WebhookCodeProcessed, result.Code)

	outside := suite.pendingPayment(models.TransactionKindDocument, 50000)
	result = suite.process(suite.webhookBody("9005", outside.GatewayReference, 51001))
	assert.False(suite.T(), result.Accepted)
	assert.Equal(suite.T(), WebhookCodeAmountMismatch, result.Code)

	stored, err := suite.store.Get(suite.ctx, outside.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.PaymentStatusPending, stored.PaymentStatus)
}

func (suite *PaymentServiceTestSuite) TestWebhookIgnoresOutgoingTransfers() {
	txn := suite.pendingPayment(models.TransactionKindDocument, 50000)

	body := []byte(fmt.Sprintf(
		`{"id":9006,"transferType":"out","transferAmount":50000,"transferContent":%q}`,
		txn.GatewayReference,
	))
	result := suite.process(body)

	assert.True(suite.T(), result.Accepted)
	assert.Equal(suite.T(), WebhookCodeNotACredit, result.Code)

	stored, err := suite.store.Get(suite.ctx, txn.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.PaymentStatusPending, stored.PaymentStatus)
}

func (suite *PaymentServiceTestSuite) TestWebhookNoOrderCode() {
	result := suite.process(suite.webhookBody("9007", "CK khong co ma", 50000))
	assert.False(suite.T(), result.Accepted)
	assert.Equal(suite.T(), WebhookCodeNoOrderCode, result.Code)
}

func (suite *PaymentServiceTestSuite) TestWebhookTransactionNotFound() {
	result := suite.process(suite.webhookBody("9008", "DHAAAA1111", 50000))
	assert.False(suite.T(), result.Accepted)
	assert.Equal(suite.T(), WebhookCodeNotFound, result.Code)
}

func (suite *PaymentServiceTestSuite) TestWebhookInvalidPayload() {
	result, err := suite.service.ProcessNotification(suite.ctx, []byte("{not json"), "Apikey webhook-key", "")
	suite.Require().NoError(err)
	assert.False(suite.T(), result.Accepted)
	assert.Equal(suite.T(), WebhookCodeInvalidPayload, result.Code)
}

func (suite *PaymentServiceTestSuite) TestWebhookAfterCancellationIsRejected() {
	txn := suite.pendingPayment(models.TransactionKindDocument, 50000)
	suite.Require().NoError(suite.service.Cancel(suite.ctx, txn.ID))

	result := suite.process(suite.webhookBody("9009", txn.GatewayReference, 50000))

	assert.False(suite.T(), result.Accepted)
	assert.Equal(suite.T(), WebhookCodeNotPayable, result.Code)

	stored, err := suite.store.Get(suite.ctx, txn.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.PaymentStatusCancelled, stored.PaymentStatus)
}

func (suite *PaymentServiceTestSuite) TestTopupCreditsNotifiedAmount() {
	txn := suite.pendingPayment(models.TransactionKindTopup, 50000)

	// Within tolerance but not exact; the credited amount follows the money
	// that actually arrived.
	result := suite.process(suite.webhookBody("9010", txn.GatewayReference, 50500))
	suite.Require().Equal(WebhookCodeProcessed, result.Code)

	credits := suite.store.credits[txn.UserID]
	suite.Require().Len(credits, 1)
	assert.True(suite.T(), credits[0].Equal(decimal.NewFromInt(50500)))
}

func (suite *PaymentServiceTestSuite) TestWebhookAuthentication() {
	txn := suite.pendingPayment(models.TransactionKindDocument, 50000)
	body := suite.webhookBody("9011", txn.GatewayReference, 50000)

	mac := hmac.New(sha256.New, []byte("webhook-secret"))
	mac.Write(body)
	validSig := hex.EncodeToString(mac.Sum(nil))

	cases := []struct {
		name       string
		authHeader string
		signature  string
		authorized bool
	}{
		{"valid hmac signature", "", validSig, true},
		{"invalid hmac signature", "", "deadbeef", false},
		{"policy wrapped key", "<policy webhook-key>", "", true},
		{"apikey scheme", "Apikey webhook-key", "", true},
		{"bearer scheme", "Bearer webhook-key", "", true},
		{"bare key", "webhook-key", "", true},
		{"wrong key", "Apikey wrong-key", "", false},
		{"no credentials", "", "", false},
	}

	for _, tc := range cases {
		result, err := suite.service.ProcessNotification(suite.ctx, body, tc.authHeader, tc.signature)
		suite.Require().NoError(err, tc.name)
		if tc.authorized {
			assert.NotEqual(suite.T(), WebhookCodeAuthFailed, result.Code, tc.name)
		} else {
			assert.Equal(suite.T(), WebhookCodeAuthFailed, result.Code, tc.name)
		}
	}
}

func (suite *PaymentServiceTestSuite) TestWebhookRejectedWhenNoAuthConfigured() {
	suite.cfg.Gateway.WebhookSecret = ""
	suite.cfg.Gateway.WebhookAPIKey = ""

	txn := suite.pendingPayment(models.TransactionKindDocument, 50000)
	body := suite.webhookBody("9012", txn.GatewayReference, 50000)

	result, err := suite.service.ProcessNotification(suite.ctx, body, "Apikey anything", "deadbeef")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), WebhookCodeAuthFailed, result.Code)
}

func (suite *PaymentServiceTestSuite) TestConcurrentWebhookDeliveries() {
	txn := suite.pendingPayment(models.TransactionKindTopup, 50000)
	body := suite.webhookBody("9013", txn.GatewayReference, 50000)

	const workers = 8
	results := make([]*WebhookResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = suite.service.ProcessNotification(suite.ctx, body, "Apikey webhook-key", "")
		}(i)
	}
	wg.Wait()

	processed := 0
	for i, result := range results {
		suite.Require().NoError(errs[i])
		assert.True(suite.T(), result.Accepted)
		if result.Code == WebhookCodeProcessed {
			processed++
		} else {
			assert.Equal(suite.T(), WebhookCodeAlreadyProcessed, result.Code)
		}
	}
	assert.Equal(suite.T(), 1, processed)
	assert.Len(suite.T(), suite.store.credits[txn.UserID], 1)
}

func (suite *PaymentServiceTestSuite) TestCheckStatusPollsGatewayWhenPending() {
	txn := suite.pendingPayment(models.TransactionKindDocument, 50000)
	suite.gateway.entries = []GatewayTransaction{
		{ID: "7001", Content: "Noi dung khac", AmountIn: decimal.NewFromInt(99999)},
		{ID: "7002", Content: "CK den " + txn.GatewayReference, AmountIn: decimal.NewFromInt(50000)},
	}

	info, err := suite.service.CheckStatus(suite.ctx, txn.ID)
	suite.Require().NoError(err)

	assert.Equal(suite.T(), models.PaymentStatusCompleted, info.PaymentStatus)
	assert.Equal(suite.T(), "7002", info.GatewayTxID)
	assert.Equal(suite.T(), 1, suite.gateway.calls)
}

func (suite *PaymentServiceTestSuite) TestCheckStatusCompletedSkipsGateway() {
	txn := suite.pendingPayment(models.TransactionKindDocument, 50000)
	suite.Require().Equal(WebhookCodeProcessed,
		suite.process(suite.webhookBody("7003", txn.GatewayReference, 50000)).Code)

	info, err := suite.service.CheckStatus(suite.ctx, txn.ID)
	suite.Require().NoError(err)

	assert.Equal(suite.T(), models.PaymentStatusCompleted, info.PaymentStatus)
	assert.Equal(suite.T(), 0, suite.gateway.calls)
}

func (suite *PaymentServiceTestSuite) TestCheckStatusGatewayErrorFallsBackToLocalState() {
	txn := suite.pendingPayment(models.TransactionKindDocument, 50000)
	suite.gateway.err = fmt.Errorf("connection refused")

	info, err := suite.service.CheckStatus(suite.ctx, txn.ID)
	suite.Require().NoError(err)

	assert.Equal(suite.T(), models.PaymentStatusPending, info.PaymentStatus)
}

func (suite *PaymentServiceTestSuite) TestCheckStatusUnknownTransaction() {
	_, err := suite.service.CheckStatus(suite.ctx, uuid.New())
	assert.ErrorIs(suite.T(), err, apperrors.ErrTransactionNotFound)
}

func (suite *PaymentServiceTestSuite) TestCancelPendingPayment() {
	txn := suite.pendingPayment(models.TransactionKindDocument, 50000)

	suite.Require().NoError(suite.service.Cancel(suite.ctx, txn.ID))

	stored, err := suite.store.Get(suite.ctx, txn.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.PaymentStatusCancelled, stored.PaymentStatus)

	// Cancelling again is a no-op, not an error.
	assert.NoError(suite.T(), suite.service.Cancel(suite.ctx, txn.ID))
}

func (suite *PaymentServiceTestSuite) TestCancelCompletedPaymentFails() {
	txn := suite.pendingPayment(models.TransactionKindDocument, 50000)
	suite.Require().Equal(WebhookCodeProcessed,
		suite.process(suite.webhookBody("7004", txn.GatewayReference, 50000)).Code)

	err := suite.service.Cancel(suite.ctx, txn.ID)
	assert.ErrorIs(suite.T(), err, apperrors.ErrCannotCancelCompleted)
}

func (suite *PaymentServiceTestSuite) TestCreatePaymentForDocument() {
	userID := uuid.New()
	docID := uuid.New()
	suite.catalog.documents[docID] = &models.Document{
		BaseModel: models.BaseModel{ID: docID},
		Price:     decimal.NewFromInt(75000),
	}

	info, err := suite.service.CreatePayment(suite.ctx, userID, &CreatePaymentRequest{
		ItemType: "document",
		ItemID:   docID.String(),
	})
	suite.Require().NoError(err)

	assert.Equal(suite.T(), "0123456789", info.BankAccount)
	assert.True(suite.T(), info.Amount.Equal(decimal.NewFromInt(75000)))
	assert.Contains(suite.T(), info.QRCodeURL, "https://qr.test/img?")
	assert.Contains(suite.T(), info.QRCodeURL, "amount=75000")
	assert.True(suite.T(), info.ExpiresAt.After(time.Now()))

	txnID, err := uuid.Parse(info.TransactionID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), ReferenceCode(txnID.String()), info.ReferenceCode)
}

func (suite *PaymentServiceTestSuite) TestCreatePaymentReusesPendingTransaction() {
	userID := uuid.New()
	docID := uuid.New()
	suite.catalog.documents[docID] = &models.Document{
		BaseModel: models.BaseModel{ID: docID},
		Price:     decimal.NewFromInt(75000),
	}

	req := &CreatePaymentRequest{ItemType: "document", ItemID: docID.String()}

	first, err := suite.service.CreatePayment(suite.ctx, userID, req)
	suite.Require().NoError(err)
	second, err := suite.service.CreatePayment(suite.ctx, userID, req)
	suite.Require().NoError(err)

	assert.Equal(suite.T(), first.TransactionID, second.TransactionID)
}

func (suite *PaymentServiceTestSuite) TestCreatePaymentAlreadyPurchased() {
	userID := uuid.New()
	docID := uuid.New()
	suite.catalog.documents[docID] = &models.Document{
		BaseModel: models.BaseModel{ID: docID},
		Price:     decimal.NewFromInt(75000),
	}
	suite.store.add(&models.Transaction{
		BaseModel: models.BaseModel{ID: uuid.New()},
		UserID:    userID,
		Kind:      models.TransactionKindDocument,
		TargetRef: &docID,
		Status:    models.TransactionStatusCompleted,
	})

	_, err := suite.service.CreatePayment(suite.ctx, userID, &CreatePaymentRequest{
		ItemType: "document",
		ItemID:   docID.String(),
	})
	assert.ErrorIs(suite.T(), err, apperrors.ErrAlreadyPurchased)
}

func (suite *PaymentServiceTestSuite) TestCreatePaymentTopupValidation() {
	_, err := suite.service.CreatePayment(suite.ctx, uuid.New(), &CreatePaymentRequest{
		ItemType: "topup",
		Amount:   decimal.NewFromInt(-100),
	})
	assert.ErrorIs(suite.T(), err, apperrors.ErrInvalidAmount)

	info, err := suite.service.CreatePayment(suite.ctx, uuid.New(), &CreatePaymentRequest{
		ItemType: "topup",
		Amount:   decimal.NewFromInt(200000),
	})
	suite.Require().NoError(err)
	assert.True(suite.T(), info.Amount.Equal(decimal.NewFromInt(200000)))
}

func (suite *PaymentServiceTestSuite) TestCreatePaymentGatewayDisabled() {
	suite.cfg.Gateway.Enabled = false

	_, err := suite.service.CreatePayment(suite.ctx, uuid.New(), &CreatePaymentRequest{
		ItemType: "topup",
		Amount:   decimal.NewFromInt(100000),
	})
	assert.ErrorIs(suite.T(), err, apperrors.ErrGatewayDisabled)
}

func (suite *PaymentServiceTestSuite) TestCreatePaymentVirtualAccountPrefix() {
	suite.cfg.Gateway.VirtualAccount = "VA12345"

	info, err := suite.service.CreatePayment(suite.ctx, uuid.New(), &CreatePaymentRequest{
		ItemType: "topup",
		Amount:   decimal.NewFromInt(100000),
	})
	suite.Require().NoError(err)

	txnID, perr := uuid.Parse(info.TransactionID)
	suite.Require().NoError(perr)
	code := ReferenceCode(txnID.String())
	assert.Equal(suite.T(), "VA12345 "+code, info.ReferenceCode)

	// Matching still uses the bare code.
	stored, err := suite.store.Get(suite.ctx, txnID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), code, stored.GatewayReference)
}

func TestExtractAPIKey(t *testing.T) {
	assert.Equal(t, "secret", extractAPIKey("<policy secret>"))
	assert.Equal(t, "secret", extractAPIKey("Apikey secret"))
	assert.Equal(t, "secret", extractAPIKey("Bearer secret"))
	assert.Equal(t, "secret", extractAPIKey("secret"))
	assert.Equal(t, "", extractAPIKey(""))
	assert.Equal(t, "", extractAPIKey("  <>  "))
}

func TestGatewayNotificationVariants(t *testing.T) {
	var notif gatewayNotification
	err := json.Unmarshal([]byte(`{"transaction_id":"abc-1","direction":"in","amount_in":"50000","transaction_content":"DHAAAA1111"}`), &notif)
	assert.NoError(t, err)
	assert.Equal(t, "abc-1", notif.gatewayID())
	assert.True(t, notif.incoming())
	assert.True(t, notif.amount().Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, "DHAAAA1111", notif.content())

	// Numeric id and unquoted amount.
	notif = gatewayNotification{}
	err = json.Unmarshal([]byte(`{"id":92704,"transferType":"in","transferAmount":2277000,"transferContent":"x"}`), &notif)
	assert.NoError(t, err)
	assert.Equal(t, "92704", notif.gatewayID())
	assert.True(t, notif.amount().Equal(decimal.NewFromInt(2277000)))

	// Missing direction defaults to incoming.
	notif = gatewayNotification{}
	err = json.Unmarshal([]byte(`{"id":1,"amount":100,"content":"y"}`), &notif)
	assert.NoError(t, err)
	assert.True(t, notif.incoming())
}
