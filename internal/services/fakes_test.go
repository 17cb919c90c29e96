package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"essayhub/internal/models"
	"essayhub/internal/repositories"
)

// in-memory repositories mirroring the Postgres semantics, including the
// atomic claim and the conditional payment writes

type fakeOrderRepo struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*models.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{nextID: 1, orders: map[int64]*models.Order{}}
}

func (r *fakeOrderRepo) Store(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order.ID = r.nextID
	r.nextID++
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repositories.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) FindBySubmissionFile(_ context.Context, filename string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.SubmissionFile != nil && *o.SubmissionFile == filename {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repositories.ErrOrderNotFound
}

func (r *fakeOrderRepo) FindAll(_ context.Context, filter models.OrderFilter) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if filter.ClientID != nil && o.ClientID != *filter.ClientID {
			continue
		}
		if filter.WriterID != nil {
			mine := o.WriterID != nil && *o.WriterID == *filter.WriterID
			open := filter.IncludeUnassigned && o.WriterID == nil && o.Status == models.StatusPendingAssignment
			if !mine && !open {
				continue
			}
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (r *fakeOrderRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return repositories.ErrOrderNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r *fakeOrderRepo) Claim(_ context.Context, orderID, writerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.WriterID != nil && *o.WriterID == writerID && o.Status == models.StatusInProgress {
			return repositories.ErrWriterBusy
		}
	}
	o, ok := r.orders[orderID]
	if !ok {
		return repositories.ErrOrderNotFound
	}
	if o.WriterID != nil || o.Status != models.StatusPendingAssignment {
		return repositories.ErrOrderTaken
	}
	w := writerID
	o.WriterID = &w
	o.Status = models.StatusInProgress
	o.UpdatedAt = time.Now()
	return nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id int64, to models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repositories.ErrOrderNotFound
	}
	o.Status = to
	return nil
}

func (r *fakeOrderRepo) SetSubmissionFile(_ context.Context, id int64, filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repositories.ErrOrderNotFound
	}
	o.SubmissionFile = &filename
	o.Status = models.StatusSubmitted
	return nil
}

func (r *fakeOrderRepo) SetPreviewFile(_ context.Context, id int64, filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repositories.ErrOrderNotFound
	}
	o.PreviewFile = &filename
	return nil
}

func (r *fakeOrderRepo) MarkPaymentPending(_ context.Context, id int64, ref, phone, amount string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repositories.ErrOrderNotFound
	}
	if o.PaymentStatus == models.PaymentPaid {
		return nil
	}
	o.PaymentStatus = models.PaymentPending
	o.PaymentRef = &ref
	o.PaymentPhone = &phone
	return nil
}

func (r *fakeOrderRepo) ConfirmPayment(_ context.Context, id int64, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repositories.ErrOrderNotFound
	}
	if o.PaymentStatus == models.PaymentPaid {
		return nil
	}
	o.PaymentStatus = models.PaymentPaid
	o.PaymentRef = &ref
	o.Status = models.StatusDelivered
	return nil
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int64]*models.User{}}
}

func (r *fakeUserRepo) add(u *models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.ID = r.nextID
	r.nextID++
	cp := *u
	r.users[u.ID] = &cp
	return u
}

func (r *fakeUserRepo) Create(u *models.User) error {
	r.add(u)
	return nil
}

func (r *fakeUserRepo) GetByID(id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Update(u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) List(limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeUserRepo) GetCount() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *fakeUserRepo) GetCountByRole(roleID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.users {
		if u.RoleID == roleID {
			n++
		}
	}
	return n, nil
}

func (r *fakeUserRepo) Approve(userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return errInject
	}
	u.Approved = true
	return nil
}

func (r *fakeUserRepo) UpdateRefresh(userID int64, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.RefreshToken = &token
		u.RefreshExpiresAt = &expiresAt
	}
	return nil
}

func (r *fakeUserRepo) RotateRefresh(oldToken, newToken string, newExpiresAt time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.RefreshToken != nil && *u.RefreshToken == oldToken {
			u.RefreshToken = &newToken
			u.RefreshExpiresAt = &newExpiresAt
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByRefreshToken(token string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.RefreshToken != nil && *u.RefreshToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

type fakeVerificationRepo struct {
	mu     sync.Mutex
	nextID int64
	codes  []*models.VerificationCode
}

func newFakeVerificationRepo() *fakeVerificationRepo {
	return &fakeVerificationRepo{nextID: 1}
}

func (r *fakeVerificationRepo) Create(userID int64, email, codeHash string, sentAt, expiresAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := &models.VerificationCode{
		ID:        r.nextID,
		UserID:    userID,
		Email:     email,
		CodeHash:  codeHash,
		SentAt:    sentAt,
		ExpiresAt: expiresAt,
	}
	r.nextID++
	r.codes = append(r.codes, v)
	return v.ID, nil
}

func (r *fakeVerificationRepo) GetLatestByUserID(userID int64) (*models.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.VerificationCode
	for _, v := range r.codes {
		if v.UserID != userID {
			continue
		}
		if latest == nil || v.SentAt.After(latest.SentAt) || (v.SentAt.Equal(latest.SentAt) && v.ID > latest.ID) {
			latest = v
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeVerificationRepo) CountRecentSends(userID int64, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.codes {
		if v.UserID == userID && !v.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeVerificationRepo) IncrementAttempts(id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.codes {
		if v.ID == id {
			v.Attempts++
			return v.Attempts, nil
		}
	}
	return 0, nil
}

func (r *fakeVerificationRepo) MarkConfirmed(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.codes {
		if v.ID == id {
			v.Confirmed = true
		}
	}
	return nil
}

func (r *fakeVerificationRepo) ExpireNow(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.codes {
		if v.ID == id {
			v.ExpiresAt = time.Now()
		}
	}
	return nil
}

// fakeEmail records sends instead of dialing SMTP.
type fakeEmail struct {
	mu    sync.Mutex
	sent  []string
	codes []string
}

func (f *fakeEmail) record(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, kind)
}

func (f *fakeEmail) SendWelcomeEmail(email, name string) error {
	f.record("welcome")
	return nil
}

func (f *fakeEmail) SendVerificationCode(email, name, code string) error {
	f.mu.Lock()
	f.codes = append(f.codes, code)
	f.mu.Unlock()
	f.record("code")
	return nil
}

func (f *fakeEmail) SendOrderDelivered(email, name, orderTitle string) error {
	f.record("delivered")
	return nil
}

func (f *fakeEmail) SendPaymentReceipt(email, name, orderTitle, ref, amount string) error {
	f.record("receipt")
	return nil
}

type fakeGateway struct {
	mu   sync.Mutex
	refs []string
	err  error
}

func (g *fakeGateway) InitiateSTKPush(phone, amount, accountRef string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	ref := "REF-" + accountRef
	g.refs = append(g.refs, ref)
	return ref, nil
}

type fakeConverter struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (f *fakeConverter) Convert(sourcePath string, orderID int64, orderTitle string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sourcePath)
	f.mu.Unlock()
	if f.fail {
		return "", errInject
	}
	return "preview.pdf", nil
}

var errInject = errInjected{}

type errInjected struct{}

func (errInjected) Error() string { return "injected failure" }
