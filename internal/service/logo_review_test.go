package service

import (
	"context"
	"errors"
	"testing"

	"causeconnect/internal/logocheck"
	"causeconnect/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{result: &logocheck.Result{
		Checks: []types.LogoCheck{
			{Name: logocheck.CheckFormat, Passed: true, Message: "PNG"},
			{Name: logocheck.CheckResolution, Passed: true, Message: "600x600"},
		},
		Palette: []string{"#080808"},
	}}
}

func (f *ledgerFixture) sponsorWithLogo(t *testing.T, owner *types.User) (*types.Cause, *types.Sponsor) {
	t.Helper()
	cause := f.openCause(t, "Clean Water", 5000)
	cause, sponsor, err := f.sponsorships.Request(context.Background(), cause.ID, types.SponsorInput{
		UserID: &owner.ID,
		Name:   "Acme",
		Logo:   "/uploads/logos/acme.png",
		Amount: 1000,
	})
	require.NoError(t, err)
	require.NotEmpty(t, sponsor.LogoReviewID)
	return cause, sponsor
}

func TestSponsorLogoOpensReview(t *testing.T) {
	analyzer := passingAnalyzer()
	f := newLedgerFixture(t, analyzer, false)
	owner := seedUser(f.store, "acme@example.org", types.RoleSponsor)
	ctx := context.Background()

	cause, sponsor := f.sponsorWithLogo(t, owner)

	review, err := f.reviews.Get(ctx, sponsor.LogoReviewID, owner)
	require.NoError(t, err)
	assert.Equal(t, types.LogoReviewPending, review.Status)
	assert.Len(t, review.Checks, 2)
	assert.Equal(t, []string{"#080808"}, review.Palette)
	assert.Equal(t, []string{"/uploads/logos/acme.png"}, analyzer.calls)

	stored, err := f.store.Cause(ctx, cause.ID)
	require.NoError(t, err)
	s, err := stored.Sponsor(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, review.ID, s.LogoReviewID)
	assert.Equal(t, types.LogoReviewPending, s.LogoStatus)

	stranger := seedUser(f.store, "nosy@example.org", types.RoleSponsor)
	_, err = f.reviews.Get(ctx, review.ID, stranger)
	assert.ErrorIs(t, err, types.ErrInsufficientRole)

	_, err = f.reviews.CreateFor(ctx, owner, cause.ID, sponsor.ID, "/uploads/logos/other.png")
	assert.True(t, types.IsKind(err, types.KindConflict))
}

func TestTotePreviewRoundTrip(t *testing.T) {
	f := newLedgerFixture(t, nil, false)
	owner := seedUser(f.store, "acme@example.org", types.RoleSponsor)
	ctx := context.Background()

	cause, sponsor := f.sponsorWithLogo(t, owner)

	review, err := f.reviews.Get(ctx, sponsor.LogoReviewID, owner)
	require.NoError(t, err)
	assert.Equal(t, float64(types.DefaultLogoSize), review.TotePreview.LogoSize)

	size, x, y := 35.5, 12.0, 0.0
	res, err := f.reviews.UpdateTotePreview(ctx, review.ID, owner, types.TotePreviewInput{
		LogoSize:     &size,
		LogoPosition: &types.LogoPositionInput{X: &x, Y: &y},
	})
	require.NoError(t, err)
	assert.True(t, res.SponsorSynced)

	again, err := f.reviews.Get(ctx, review.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, 35.5, again.TotePreview.LogoSize)
	assert.Equal(t, types.LogoPosition{X: 12, Y: 0}, again.TotePreview.LogoPosition)

	stored, err := f.store.Cause(ctx, cause.ID)
	require.NoError(t, err)
	s, err := stored.Sponsor(sponsor.ID)
	require.NoError(t, err)
	require.NotNil(t, s.TotePreview)
	assert.Equal(t, 35.5, s.TotePreview.LogoSize)
	assert.Equal(t, types.LogoPosition{X: 12, Y: 0}, s.TotePreview.LogoPosition)

	_, err = f.reviews.UpdateTotePreview(ctx, review.ID, owner, types.TotePreviewInput{LogoSize: &size})
	assert.True(t, types.IsKind(err, types.KindValidation))
}

func TestProjectionFailureIsReported(t *testing.T) {
	f := newLedgerFixture(t, nil, false)
	owner := seedUser(f.store, "acme@example.org", types.RoleSponsor)
	ctx := context.Background()

	cause, sponsor := f.sponsorWithLogo(t, owner)

	f.store.mu.Lock()
	f.store.failMutateCause = errors.New("connection reset")
	f.store.mu.Unlock()

	res, err := f.reviews.SetStatus(ctx, sponsor.LogoReviewID, f.admin, types.LogoReviewApproved, "")
	require.NoError(t, err)
	assert.False(t, res.SponsorSynced)
	assert.Equal(t, types.LogoReviewApproved, res.Review.Status)

	_, err = f.reviews.Reconcile(ctx, sponsor.LogoReviewID)
	assert.Error(t, err)

	f.store.mu.Lock()
	f.store.failMutateCause = nil
	f.store.mu.Unlock()

	_, err = f.reviews.Reconcile(ctx, sponsor.LogoReviewID)
	require.NoError(t, err)

	stored, err := f.store.Cause(ctx, cause.ID)
	require.NoError(t, err)
	s, err := stored.Sponsor(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, types.LogoReviewApproved, s.LogoStatus)
	assert.Equal(t, "/uploads/logos/acme.png", stored.Public().Sponsors[0].Logo)
}

func TestChangesRequestedThenResubmit(t *testing.T) {
	analyzer := passingAnalyzer()
	f := newLedgerFixture(t, analyzer, false)
	owner := seedUser(f.store, "acme@example.org", types.RoleSponsor)
	ctx := context.Background()

	_, sponsor := f.sponsorWithLogo(t, owner)
	id := sponsor.LogoReviewID

	_, err := f.reviews.SetStatus(ctx, id, f.admin, types.LogoReviewChangesRequested, "")
	assert.True(t, types.IsKind(err, types.KindValidation))

	res, err := f.reviews.SetStatus(ctx, id, f.admin, types.LogoReviewChangesRequested, "needs more contrast")
	require.NoError(t, err)
	assert.Len(t, res.Review.Comments, 1)

	res, err = f.reviews.Resubmit(ctx, id, owner, "/uploads/logos/acme-v2.png")
	require.NoError(t, err)
	assert.Equal(t, types.LogoReviewPending, res.Review.Status)
	assert.Equal(t, "/uploads/logos/acme-v2.png", res.Review.CurrentURL())
	assert.Equal(t, "/uploads/logos/acme-v2.png", analyzer.calls[len(analyzer.calls)-1])

	_, err = f.reviews.AddComment(ctx, id, owner, "better now?", "")
	require.NoError(t, err)

	res, err = f.reviews.SetStatus(ctx, id, f.admin, types.LogoReviewApproved, "")
	require.NoError(t, err)

	_, err = f.reviews.Resubmit(ctx, id, owner, "/uploads/logos/acme-v3.png")
	assert.True(t, types.IsKind(err, types.KindState))
}

func TestBatchSetStatusCollectsFailures(t *testing.T) {
	f := newLedgerFixture(t, nil, false)
	owner := seedUser(f.store, "acme@example.org", types.RoleSponsor)
	ctx := context.Background()

	_, sponsor := f.sponsorWithLogo(t, owner)

	updated, failed := f.reviews.BatchSetStatus(ctx, []string{sponsor.LogoReviewID, "missing"}, f.admin, types.LogoReviewRejected, "off brand")
	require.Len(t, updated, 1)
	require.Len(t, failed, 1)
	assert.Equal(t, "missing", failed[0].ID)
	assert.Equal(t, types.LogoReviewRejected, updated[0].Status)

	reviews, page, err := f.reviews.List(ctx, types.LogoReviewFilter{Status: types.LogoReviewRejected})
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
	assert.Equal(t, 1, page.Total)
}

func TestRunChecksWithoutAnalyzer(t *testing.T) {
	f := newLedgerFixture(t, nil, false)
	owner := seedUser(f.store, "acme@example.org", types.RoleSponsor)

	_, sponsor := f.sponsorWithLogo(t, owner)

	_, err := f.reviews.RunChecks(context.Background(), sponsor.LogoReviewID)
	assert.True(t, types.IsKind(err, types.KindUpstream))
}

func TestApprovedCorrectionBecomesSponsorLogo(t *testing.T) {
	f := newLedgerFixture(t, nil, false)
	owner := seedUser(f.store, "acme@example.org", types.RoleSponsor)
	ctx := context.Background()

	cause, sponsor := f.sponsorWithLogo(t, owner)

	_, err := f.reviews.SetStatus(ctx, sponsor.LogoReviewID, f.admin, types.LogoReviewChangesRequested, "logo is blurry")
	require.NoError(t, err)
	_, err = f.reviews.Resubmit(ctx, sponsor.LogoReviewID, owner, "/uploads/logos/acme-fixed.png")
	require.NoError(t, err)
	res, err := f.reviews.SetStatus(ctx, sponsor.LogoReviewID, f.admin, types.LogoReviewApproved, "")
	require.NoError(t, err)
	assert.True(t, res.SponsorSynced)

	stored, err := f.store.Cause(ctx, cause.ID)
	require.NoError(t, err)
	pub := stored.Public()
	require.Len(t, pub.Sponsors, 1)
	assert.Equal(t, "/uploads/logos/acme-fixed.png", pub.Sponsors[0].Logo)
	assert.Equal(t, types.LogoReviewApproved, pub.Sponsors[0].LogoStatus)
}
