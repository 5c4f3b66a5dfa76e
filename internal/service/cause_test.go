package service

import (
	"context"
	"sync"
	"testing"

	"causeconnect/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerFixture struct {
	store        *memStore
	clock        *clock
	causes       *Causes
	reviews      *LogoReviews
	sponsorships *Sponsorships
	admin        *types.User
	creator      *types.User
}

func newLedgerFixture(t *testing.T, analyzer LogoAnalyzer, autoApprovePaid bool) *ledgerFixture {
	t.Helper()

	clk := newClock()
	store := newMemStore()
	c := testCommon(clk)

	reviews := NewLogoReviews(c, store, store, analyzer)

	return &ledgerFixture{
		store:        store,
		clock:        clk,
		causes:       NewCauses(c, store),
		reviews:      reviews,
		sponsorships: NewSponsorships(c, store, reviews, autoApprovePaid),
		admin:        seedUser(store, "admin@example.org", types.RoleAdmin),
		creator:      seedUser(store, "org@example.org", types.RoleClaimer),
	}
}

func (f *ledgerFixture) openCause(t *testing.T, title string, goal int64) *types.Cause {
	t.Helper()
	ctx := context.Background()

	cause, err := f.causes.Submit(ctx, types.CauseInput{
		Title:       title,
		Description: "Wells for the valley",
		Category:    "environment",
		Goal:        goal,
	}, f.creator)
	require.NoError(t, err)
	require.Equal(t, types.CauseStatusPending, cause.Status)

	cause, err = f.causes.Approve(ctx, cause.ID)
	require.NoError(t, err)
	require.Equal(t, types.CauseStatusOpen, cause.Status)
	return cause
}

func TestCleanWaterSponsorship(t *testing.T) {
	f := newLedgerFixture(t, nil, false)
	ctx := context.Background()

	cause := f.openCause(t, "Clean Water", 5000)

	cause, first, err := f.sponsorships.Request(ctx, cause.ID, types.SponsorInput{Name: "Acme", Amount: 3000})
	require.NoError(t, err)
	assert.Equal(t, types.SponsorStatusPending, first.Status)
	assert.Equal(t, int64(0), cause.Raised)
	assert.Equal(t, types.CauseStatusOpen, cause.Status)

	cause, err = f.sponsorships.Approve(ctx, cause.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), cause.Raised)
	assert.Equal(t, types.CauseStatusOpen, cause.Status)

	cause, second, err := f.sponsorships.Request(ctx, cause.ID, types.SponsorInput{Name: "Globex", Amount: 2000})
	require.NoError(t, err)

	cause, err = f.sponsorships.Approve(ctx, cause.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), cause.Raised)
	assert.Equal(t, types.CauseStatusSponsored, cause.Status)

	_, _, err = f.sponsorships.Request(ctx, cause.ID, types.SponsorInput{Name: "Late", Amount: 10})
	assert.True(t, types.IsKind(err, types.KindState))
}

func TestConcurrentSponsorApprovals(t *testing.T) {
	f := newLedgerFixture(t, nil, false)
	ctx := context.Background()

	cause := f.openCause(t, "Clean Water", 10000)

	ids := make([]string, 0, 2)
	for _, amount := range []int64{1200, 3400} {
		_, s, err := f.sponsorships.Request(ctx, cause.ID, types.SponsorInput{Name: "S", Amount: amount})
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.sponsorships.Approve(ctx, cause.ID, id)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := f.store.Cause(ctx, cause.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4600), got.Raised)
}

func TestRejectApprovedSponsorReducesRaised(t *testing.T) {
	f := newLedgerFixture(t, nil, false)
	ctx := context.Background()

	cause := f.openCause(t, "Books", 1000)
	_, s, err := f.sponsorships.Request(ctx, cause.ID, types.SponsorInput{Name: "Acme", Amount: 400})
	require.NoError(t, err)

	cause, err = f.sponsorships.Approve(ctx, cause.ID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), cause.Raised)

	cause, err = f.sponsorships.Reject(ctx, cause.ID, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cause.Raised)

	sponsor, err := cause.Sponsor(s.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultSponsorRejectionReason, sponsor.RejectionReason)
}

func TestPendingQueueOldestFirst(t *testing.T) {
	f := newLedgerFixture(t, nil, false)
	ctx := context.Background()

	a := f.openCause(t, "A", 1000)
	b := f.openCause(t, "B", 1000)

	_, _, err := f.sponsorships.Request(ctx, b.ID, types.SponsorInput{Name: "first", Amount: 1})
	require.NoError(t, err)
	f.clock.Advance(1)
	_, _, err = f.sponsorships.Request(ctx, a.ID, types.SponsorInput{Name: "second", Amount: 1})
	require.NoError(t, err)

	queue, err := f.sponsorships.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "first", queue[0].Sponsor)
	assert.Equal(t, "second", queue[1].Sponsor)
}

func TestCauseVisibility(t *testing.T) {
	f := newLedgerFixture(t, nil, false)
	ctx := context.Background()

	pending, err := f.causes.Submit(ctx, types.CauseInput{
		Title: "Hidden", Description: "d", Category: "c", Goal: 10,
	}, f.creator)
	require.NoError(t, err)

	stranger := seedUser(f.store, "stranger@example.org", types.RoleVisitor)

	_, err = f.causes.Get(ctx, pending.ID, stranger)
	assert.ErrorIs(t, err, types.ErrCauseNotFound)

	got, err := f.causes.Get(ctx, pending.ID, f.creator)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, got.ID)

	open := f.openCause(t, "Visible", 10)
	list, err := f.causes.List(ctx, types.CauseFilter{}, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)
	assert.Nil(t, list[0].CreatorEmail)

	all, err := f.causes.List(ctx, types.CauseFilter{}, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAdminSubmittedCauseGoesLive(t *testing.T) {
	f := newLedgerFixture(t, nil, false)

	cause, err := f.causes.Submit(context.Background(), types.CauseInput{
		Title: "Fast", Description: "d", Category: "c", Goal: 10,
	}, f.admin)
	require.NoError(t, err)
	assert.Equal(t, types.CauseStatusOpen, cause.Status)
	assert.True(t, cause.IsOnline)
}

func TestCauseReview(t *testing.T) {
	f := newLedgerFixture(t, nil, false)
	ctx := context.Background()

	cause, err := f.causes.Submit(ctx, types.CauseInput{
		Title: "Maybe", Description: "d", Category: "c", Goal: 10,
	}, f.creator)
	require.NoError(t, err)

	_, err = f.causes.Review(ctx, cause.ID, "shrug", "")
	assert.True(t, types.IsKind(err, types.KindValidation))

	rejected, err := f.causes.Review(ctx, cause.ID, "reject", "")
	require.NoError(t, err)
	assert.Equal(t, types.CauseStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, types.DefaultCauseRejectionReason, *rejected.RejectionReason)

	_, err = f.causes.Approve(ctx, cause.ID)
	assert.True(t, types.IsKind(err, types.KindState))
}
