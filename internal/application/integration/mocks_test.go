package integration

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/order"
)

// MockMarketplace is a mock implementation of marketplace.Marketplace
type MockMarketplace struct {
	mock.Mock
	code marketplace.Code
}

func newMockMarketplace(code marketplace.Code) *MockMarketplace {
	return &MockMarketplace{code: code}
}

func (m *MockMarketplace) Code() marketplace.Code { return m.code }

func (m *MockMarketplace) Enabled() bool { return true }

func (m *MockMarketplace) AuthorizationURL(state, codeChallenge string) string {
	args := m.Called(state, codeChallenge)
	return args.String(0)
}

func (m *MockMarketplace) ExchangeCode(ctx context.Context, req marketplace.AuthorizationRequest) (*marketplace.TokenGrant, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.TokenGrant), args.Error(1)
}

func (m *MockMarketplace) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*marketplace.TokenGrant, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.TokenGrant), args.Error(1)
}

func (m *MockMarketplace) FetchRecentOrders(ctx context.Context, accessToken string) ([]marketplace.RemoteOrder, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]marketplace.RemoteOrder), args.Error(1)
}

func (m *MockMarketplace) MapOrder(remote marketplace.RemoteOrder) (*order.Order, error) {
	args := m.Called(remote)
	if fn, ok := args.Get(0).(func(marketplace.RemoteOrder) (*order.Order, error)); ok {
		return fn(remote)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockMarketplace) UpdateStock(ctx context.Context, accessToken, itemID string, quantity int) error {
	args := m.Called(ctx, accessToken, itemID, quantity)
	return args.Error(0)
}

func (m *MockMarketplace) SendTracking(ctx context.Context, accessToken, orderID string, info marketplace.TrackingInfo) error {
	args := m.Called(ctx, accessToken, orderID, info)
	return args.Error(0)
}

// MockEmitter is a mock implementation of fiscal.Emitter
type MockEmitter struct {
	mock.Mock
}

func (m *MockEmitter) Emit(ctx context.Context, o *order.Order) (*fiscal.Artifact, error) {
	args := m.Called(ctx, o)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.Artifact), args.Error(1)
}

func (m *MockEmitter) Resume(ctx context.Context, o *order.Order, documentNumber string) (*fiscal.Artifact, error) {
	args := m.Called(ctx, o, documentNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.Artifact), args.Error(1)
}

// MockCredentialRepository is a mock implementation of fiscal.CredentialRepository
type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) Save(ctx context.Context, c *fiscal.Credential) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCredentialRepository) Get(ctx context.Context, userID string) (*fiscal.Credential, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.Credential), args.Error(1)
}

func (m *MockCredentialRepository) Latest(ctx context.Context) (*fiscal.Credential, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.Credential), args.Error(1)
}

// memTokenRepository keeps token history in memory
type memTokenRepository struct {
	mu      sync.Mutex
	nextID  int64
	records []*marketplace.TokenRecord
}

func (r *memTokenRepository) Append(_ context.Context, rec *marketplace.TokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rec.ID = r.nextID
	stored := *rec
	r.records = append(r.records, &stored)
	return nil
}

func (r *memTokenRepository) Latest(ctx context.Context, code marketplace.Code) (*marketplace.TokenRecord, error) {
	history, _ := r.History(ctx, code, 1)
	if len(history) == 0 {
		return nil, marketplace.ErrNoCredential
	}
	return history[0], nil
}

func (r *memTokenRepository) History(_ context.Context, code marketplace.Code, limit int) ([]*marketplace.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*marketplace.TokenRecord
	for _, rec := range r.records {
		if rec.Marketplace == code {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.After(out[j].IssuedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memStore is an in-memory order store. Its job queue view is memJobs.
type memStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*order.Order
	keys   map[string]uuid.UUID
	jobs   []*fiscal.Job

	// failComplete makes the next Complete call fail once
	failComplete error
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[uuid.UUID]*order.Order),
		keys:   make(map[string]uuid.UUID),
	}
}

func (s *memStore) Exists(_ context.Context, mp, externalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[mp+"/"+externalID]
	return ok, nil
}

func (s *memStore) Insert(_ context.Context, o *order.Order, job *fiscal.Job) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := o.Marketplace + "/" + o.ExternalID
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	stored := *o
	s.orders[o.ID] = &stored
	s.keys[key] = o.ID
	j := *job
	s.jobs = append(s.jobs, &j)
	return true, nil
}

func (s *memStore) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) deleteOrder(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[id]
	delete(s.keys, o.Marketplace+"/"+o.ExternalID)
	delete(s.orders, id)
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) allJobs() []fiscal.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fiscal.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

func (s *memStore) findJob(id uuid.UUID) (*fiscal.Job, bool) {
	for _, j := range s.jobs {
		if j.ID == id {
			return j, true
		}
	}
	return nil, false
}

// jobQueue returns the fiscal job queue backed by s
func (s *memStore) jobQueue() *memJobs {
	return &memJobs{s: s}
}

// memJobs implements fiscal.JobRepository over a memStore
type memJobs struct {
	s *memStore
}

func (q *memJobs) FindUnprocessed(_ context.Context, limit int) ([]*fiscal.Job, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var pending []*fiscal.Job
	for _, j := range q.s.jobs {
		if !j.Processed {
			cp := *j
			pending = append(pending, &cp)
		}
	}
	sort.SliceStable(pending, func(a, b int) bool {
		ja, jb := pending[a], pending[b]
		if ja.Attempts != jb.Attempts {
			return ja.Attempts < jb.Attempts
		}
		if !ja.CreatedAt.Equal(jb.CreatedAt) {
			return ja.CreatedAt.Before(jb.CreatedAt)
		}
		return ja.ID.String() < jb.ID.String()
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (q *memJobs) FindByID(_ context.Context, id uuid.UUID) (*fiscal.Job, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	j, ok := q.s.findJob(id)
	if !ok {
		return nil, fiscal.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (q *memJobs) Complete(_ context.Context, job *fiscal.Job, result order.FiscalResult) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if err := q.s.failComplete; err != nil {
		q.s.failComplete = nil
		return err
	}
	o, ok := q.s.orders[job.OrderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	if err := o.AttachFiscalResult(result); err != nil {
		return err
	}
	stored, ok := q.s.findJob(job.ID)
	if !ok {
		return fiscal.ErrJobNotFound
	}
	stored.MarkProcessed(result.EmittedAt)
	job.MarkProcessed(result.EmittedAt)
	return nil
}

func (q *memJobs) MarkProcessed(_ context.Context, job *fiscal.Job) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	stored, ok := q.s.findJob(job.ID)
	if !ok {
		return fiscal.ErrJobNotFound
	}
	now := time.Now()
	stored.MarkProcessed(now)
	job.MarkProcessed(now)
	return nil
}

func (q *memJobs) RecordFailure(_ context.Context, job *fiscal.Job) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	stored, ok := q.s.findJob(job.ID)
	if !ok {
		return fiscal.ErrJobNotFound
	}
	stored.Attempts = job.Attempts
	stored.LastError = job.LastError
	stored.DocumentNumber = job.DocumentNumber
	return nil
}

func (q *memJobs) Stats(_ context.Context) (fiscal.QueueStats, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var stats fiscal.QueueStats
	for _, j := range q.s.jobs {
		switch {
		case j.Processed:
			stats.Processed++
		case j.Attempts > 0:
			stats.Pending++
			stats.Failing++
		default:
			stats.Pending++
		}
	}
	return stats, nil
}

var _ fiscal.JobRepository = (*memJobs)(nil)

// remoteOrder builds a payload the test mapper understands
func remoteOrder(externalID string) marketplace.RemoteOrder {
	payload, _ := json.Marshal(map[string]string{"id": externalID})
	return marketplace.RemoteOrder{ExternalID: externalID, Payload: payload}
}

// mapperFor returns a MapOrder implementation producing a one-item order
func mapperFor(code marketplace.Code) func(marketplace.RemoteOrder) (*order.Order, error) {
	return func(r marketplace.RemoteOrder) (*order.Order, error) {
		return order.NewOrder(
			code.String(),
			r.ExternalID,
			order.Buyer{ID: "buyer-" + r.ExternalID, DisplayName: "Comprador", Email: "comprador@example.com"},
			"paid",
			decimal.RequireFromString("20.00"),
			time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			[]order.Item{{ItemID: "MLB1", Title: "Caneca", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")}},
			r.Payload,
		)
	}
}
