package service

import (
	"context"
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"causeconnect/internal/logocheck"
	"causeconnect/internal/utils"
	"causeconnect/pkg/types"

	"github.com/sirupsen/logrus"
)

// memStore is an in-memory stand-in for the Postgres repositories. A single
// mutex plays the role of the row locks, so every Mutate call is atomic.
type memStore struct {
	mu      sync.Mutex
	users   map[string]*types.User
	causes  map[string]*types.Cause
	reviews map[string]*types.LogoReview
	claims  map[string]*types.Claim
	entries map[string]*types.WaitlistEntry
	orders  map[string]*types.Order

	failMutateCause error
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]*types.User{},
		causes:  map[string]*types.Cause{},
		reviews: map[string]*types.LogoReview{},
		claims:  map[string]*types.Claim{},
		entries: map[string]*types.WaitlistEntry{},
		orders:  map[string]*types.Order{},
	}
}

func copyUser(u *types.User) *types.User {
	out := *u
	return &out
}

func copyCause(c *types.Cause) *types.Cause {
	out := *c
	out.Sponsors = slices.Clone(c.Sponsors)
	out.ReviewComments = slices.Clone(c.ReviewComments)
	return &out
}

func copyReview(r *types.LogoReview) *types.LogoReview {
	out := *r
	out.Checks = slices.Clone(r.Checks)
	out.Comments = slices.Clone(r.Comments)
	out.Palette = slices.Clone(r.Palette)
	return &out
}

func copyClaim(c *types.Claim) *types.Claim {
	out := *c
	out.Notes = slices.Clone(c.Notes)
	out.StatusHistory = slices.Clone(c.StatusHistory)
	return &out
}

func copyEntry(e *types.WaitlistEntry) *types.WaitlistEntry {
	out := *e
	return &out
}

func copyOrder(o *types.Order) *types.Order {
	out := *o
	return &out
}

// users

func (m *memStore) User(_ context.Context, userID string) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, types.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (m *memStore) findUser(pred func(*types.User) bool) (*types.User, error) {
	for _, u := range m.users {
		if pred(u) {
			return copyUser(u), nil
		}
	}
	return nil, types.ErrUserNotFound
}

func (m *memStore) UserByEmail(_ context.Context, email string) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findUser(func(u *types.User) bool { return u.Email == email })
}

func (m *memStore) UserByRefreshToken(_ context.Context, token string) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findUser(func(u *types.User) bool { return u.RefreshToken != nil && *u.RefreshToken == token })
}

func (m *memStore) Users(_ context.Context, role types.Role) ([]*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.User, 0)
	for _, u := range m.users {
		if role == "" || u.Role == role {
			out = append(out, copyUser(u))
		}
	}
	return out, nil
}

func (m *memStore) CreateUser(_ context.Context, user *types.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return types.ConflictError("a user with this email already exists")
		}
	}
	if user.ID == "" {
		user.ID = utils.NanoID()
	}
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *memStore) UpdateProfile(_ context.Context, user *types.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[user.ID]
	if !ok {
		return types.ErrUserNotFound
	}
	u.Name = user.Name
	u.Role = user.Role
	u.Verified = user.Verified
	return nil
}

func (m *memStore) SetRole(_ context.Context, userID string, role types.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return types.ErrUserNotFound
	}
	u.Role = role
	return nil
}

func (m *memStore) SetOTP(_ context.Context, userID, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return types.ErrUserNotFound
	}
	u.OTPCode = &code
	u.OTPExpiresAt = &expiresAt
	return nil
}

func (m *memStore) ClearOTP(_ context.Context, userID, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.OTPCode == nil || *u.OTPCode != code {
		return false, nil
	}
	u.OTPCode = nil
	u.OTPExpiresAt = nil
	return true, nil
}

func (m *memStore) SetRefreshToken(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return types.ErrUserNotFound
	}
	u.RefreshToken = utils.NonEmptyPtr(token)
	return nil
}

func (m *memStore) RotateRefreshToken(_ context.Context, userID, current, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != current {
		return false, nil
	}
	u.RefreshToken = &next
	return true, nil
}

func (m *memStore) ClearRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.RefreshToken != nil && *u.RefreshToken == token {
			u.RefreshToken = nil
		}
	}
	return nil
}

// causes

func (m *memStore) Cause(_ context.Context, causeID string) (*types.Cause, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.causes[causeID]
	if !ok {
		return nil, types.ErrCauseNotFound
	}
	return copyCause(c), nil
}

func (m *memStore) Causes(_ context.Context, filter types.CauseFilter) ([]*types.Cause, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.Cause, 0)
	for _, c := range m.causes {
		if filter.Match(c) {
			out = append(out, copyCause(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) CreateCause(_ context.Context, cause *types.Cause) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cause.ID == "" {
		cause.ID = utils.NanoID()
	}
	m.causes[cause.ID] = copyCause(cause)
	return nil
}

func (m *memStore) DeleteCause(_ context.Context, causeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.causes[causeID]; !ok {
		return types.ErrCauseNotFound
	}
	delete(m.causes, causeID)
	return nil
}

func (m *memStore) MutateCause(_ context.Context, causeID string, fn func(*types.Cause) error) (*types.Cause, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMutateCause != nil {
		return nil, m.failMutateCause
	}
	c, ok := m.causes[causeID]
	if !ok {
		return nil, types.ErrCauseNotFound
	}
	work := copyCause(c)
	if err := fn(work); err != nil {
		return nil, err
	}
	m.causes[causeID] = work
	return copyCause(work), nil
}

// logo reviews

func (m *memStore) LogoReview(_ context.Context, reviewID string) (*types.LogoReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[reviewID]
	if !ok {
		return nil, types.ErrLogoReviewNotFound
	}
	return copyReview(r), nil
}

func (m *memStore) LogoReviewBySponsor(_ context.Context, campaignID, sponsorID string) (*types.LogoReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.CampaignID == campaignID && r.SponsorID == sponsorID {
			return copyReview(r), nil
		}
	}
	return nil, types.ErrLogoReviewNotFound
}

func (m *memStore) LogoReviews(_ context.Context, filter types.LogoReviewFilter) ([]*types.LogoReview, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*types.LogoReview, 0)
	for _, r := range m.reviews {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.CampaignID != "" && r.CampaignID != filter.CampaignID {
			continue
		}
		all = append(all, copyReview(r))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, filter.Page, filter.Limit), len(all), nil
}

func (m *memStore) CreateLogoReview(_ context.Context, review *types.LogoReview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.CampaignID == review.CampaignID && r.SponsorID == review.SponsorID {
			return types.ConflictError("a logo review already exists for this sponsorship")
		}
	}
	m.reviews[review.ID] = copyReview(review)
	return nil
}

func (m *memStore) MutateLogoReview(_ context.Context, reviewID string, fn func(*types.LogoReview) error) (*types.LogoReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[reviewID]
	if !ok {
		return nil, types.ErrLogoReviewNotFound
	}
	work := copyReview(r)
	if err := fn(work); err != nil {
		return nil, err
	}
	m.reviews[reviewID] = work
	return copyReview(work), nil
}

// claims

func (m *memStore) Claim(_ context.Context, claimID string) (*types.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[claimID]
	if !ok {
		return nil, types.ErrClaimNotFound
	}
	return copyClaim(c), nil
}

func (m *memStore) Claims(_ context.Context, filter types.ClaimFilter) ([]*types.Claim, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	filter.Normalize()
	all := make([]*types.Claim, 0)
	for _, c := range m.claims {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.CauseID != "" && c.CauseID != filter.CauseID {
			continue
		}
		if filter.UserID != "" && c.UserID != filter.UserID {
			continue
		}
		all = append(all, copyClaim(c))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, filter.Page, filter.Limit), len(all), nil
}

func (m *memStore) ClaimsByUser(_ context.Context, userID string) ([]*types.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.Claim, 0)
	for _, c := range m.claims {
		if c.UserID == userID {
			out = append(out, copyClaim(c))
		}
	}
	return out, nil
}

func (m *memStore) insertClaim(claim *types.Claim) error {
	for _, c := range m.claims {
		if c.CauseID == claim.CauseID && c.UserID == claim.UserID {
			return types.ConflictError("you have already claimed this cause")
		}
	}
	m.claims[claim.ID] = copyClaim(claim)
	return nil
}

func (m *memStore) CreateClaimForCause(_ context.Context, causeID string, build func(*types.Cause) (*types.Claim, error)) (*types.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.causes[causeID]
	if !ok {
		return nil, types.ErrCauseNotFound
	}
	work := copyCause(c)
	claim, err := build(work)
	if err != nil {
		return nil, err
	}
	if err := m.insertClaim(claim); err != nil {
		return nil, err
	}
	m.causes[causeID] = work
	return copyClaim(claim), nil
}

func (m *memStore) MutateClaim(_ context.Context, claimID string, fn func(*types.Claim) error) (*types.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[claimID]
	if !ok {
		return nil, types.ErrClaimNotFound
	}
	work := copyClaim(c)
	if err := fn(work); err != nil {
		return nil, err
	}
	m.claims[claimID] = work
	return copyClaim(work), nil
}

func (m *memStore) MutateClaimWithCause(_ context.Context, claimID string, fn func(*types.Claim, *types.Cause) error) (*types.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[claimID]
	if !ok {
		return nil, types.ErrClaimNotFound
	}
	cause, ok := m.causes[c.CauseID]
	if !ok {
		return nil, types.ErrCauseNotFound
	}
	work, workCause := copyClaim(c), copyCause(cause)
	if err := fn(work, workCause); err != nil {
		return nil, err
	}
	m.claims[claimID] = work
	m.causes[workCause.ID] = workCause
	return copyClaim(work), nil
}

// waitlist

func (m *memStore) WaitlistEntry(_ context.Context, entryID string) (*types.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	if !ok {
		return nil, types.ErrWaitlistEntryNotFound
	}
	return copyEntry(e), nil
}

func (m *memStore) WaitlistEntryByToken(_ context.Context, token string) (*types.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.MagicLinkToken != nil && *e.MagicLinkToken == token {
			return copyEntry(e), nil
		}
	}
	return nil, types.ErrWaitlistEntryNotFound
}

func (m *memStore) WaitlistEntries(_ context.Context, filter types.WaitlistFilter) ([]*types.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.WaitlistEntry, 0)
	for _, e := range m.entries {
		if filter.Match(e) {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CauseID != out[j].CauseID {
			return out[i].CauseID < out[j].CauseID
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (m *memStore) JoinWaitlist(_ context.Context, entry *types.WaitlistEntry, check func(*types.Cause) error) (*types.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.causes[entry.CauseID]
	if !ok {
		return nil, types.ErrCauseNotFound
	}
	if err := check(copyCause(c)); err != nil {
		return nil, err
	}
	last := 0
	for _, e := range m.entries {
		if e.CauseID != entry.CauseID {
			continue
		}
		if e.UserID == entry.UserID {
			return nil, types.ConflictError("you are already on the waitlist for this cause")
		}
		if e.Position > last {
			last = e.Position
		}
	}
	entry.Position = last + 1
	m.entries[entry.ID] = copyEntry(entry)
	return copyEntry(entry), nil
}

func (m *memStore) MutateWaitlistEntry(_ context.Context, entryID string, fn func(*types.WaitlistEntry, *types.Cause) error) (*types.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	if !ok {
		return nil, types.ErrWaitlistEntryNotFound
	}
	c, ok := m.causes[e.CauseID]
	if !ok {
		return nil, types.ErrCauseNotFound
	}
	work := copyEntry(e)
	if err := fn(work, copyCause(c)); err != nil {
		return nil, err
	}
	work.Position = e.Position
	m.entries[entryID] = work
	return copyEntry(work), nil
}

func (m *memStore) RedeemMagicLink(_ context.Context, entryID string, redeem func(*types.WaitlistEntry, *types.Cause) (*types.Claim, error)) (*types.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	if !ok {
		return nil, types.ErrWaitlistEntryNotFound
	}
	c, ok := m.causes[e.CauseID]
	if !ok {
		return nil, types.ErrCauseNotFound
	}
	entry, cause := copyEntry(e), copyCause(c)
	claim, err := redeem(entry, cause)
	if err != nil {
		return nil, err
	}
	if err := m.insertClaim(claim); err != nil {
		return nil, err
	}
	m.causes[cause.ID] = cause
	m.entries[entryID] = entry
	return copyClaim(claim), nil
}

// orders

func (m *memStore) OrderByGatewayID(_ context.Context, gatewayOrderID string) (*types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[gatewayOrderID]
	if !ok {
		return nil, types.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (m *memStore) CreateOrder(_ context.Context, order *types.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.GatewayOrderID]; ok {
		return types.ConflictError("order %s already exists", order.GatewayOrderID)
	}
	m.orders[order.GatewayOrderID] = copyOrder(order)
	return nil
}

func (m *memStore) MutateOrder(_ context.Context, gatewayOrderID string, fn func(*types.Order) error) (*types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[gatewayOrderID]
	if !ok {
		return nil, types.ErrOrderNotFound
	}
	work := copyOrder(o)
	if err := fn(work); err != nil {
		return nil, err
	}
	m.orders[gatewayOrderID] = work
	return copyOrder(work), nil
}

func page[T any](all []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = types.DefaultPageLimit
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return []T{}
	}
	end := min(start+limit, len(all))
	return all[start:end]
}

// fakeMailer records what would have been sent.
type fakeMailer struct {
	mu         sync.Mutex
	fail       error
	otps       map[string]string
	magicLinks []string
	confirms   []string
	shipments  []string
	receipts   []string
	sent       []string
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{otps: map[string]string{}}
}

func (f *fakeMailer) Send(_ context.Context, to, _, template string, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, to+":"+template)
	return nil
}

func (f *fakeMailer) SendOTP(_ context.Context, to, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.otps[to] = code
	return nil
}

func (f *fakeMailer) SendMagicLink(_ context.Context, _ *types.WaitlistEntry, _, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.magicLinks = append(f.magicLinks, link)
	return nil
}

func (f *fakeMailer) SendClaimConfirmation(_ context.Context, claim *types.Claim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.confirms = append(f.confirms, claim.ID)
	return nil
}

func (f *fakeMailer) SendShipment(_ context.Context, claim *types.Claim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.shipments = append(f.shipments, claim.ID)
	return nil
}

func (f *fakeMailer) SendPaymentReceipt(_ context.Context, to string, _ *types.Order, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.receipts = append(f.receipts, to)
	return nil
}

func (f *fakeMailer) otp(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.otps[email]
}

type fakeAnalyzer struct {
	result *logocheck.Result
	err    error
	calls  []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, url string) (*logocheck.Result, error) {
	f.calls = append(f.calls, url)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testCommon(clk *clock) Common {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return Common{Logger: logger, Now: clk.Now}
}

// seedUser stores a verified user with role and returns it.
func seedUser(m *memStore, email string, role types.Role) *types.User {
	name := email
	u := &types.User{ID: utils.NanoID(), Email: email, Name: &name, Role: role, Verified: true}
	m.mu.Lock()
	m.users[u.ID] = copyUser(u)
	m.mu.Unlock()
	return u
}
