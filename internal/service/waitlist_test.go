package service

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"causeconnect/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type waitlistFixture struct {
	*ledgerFixture
	mail     *fakeMailer
	waitlist *Waitlist
}

func newWaitlistFixture(t *testing.T) *waitlistFixture {
	f := newLedgerFixture(t, nil, false)
	mail := newFakeMailer()
	return &waitlistFixture{
		ledgerFixture: f,
		mail:          mail,
		waitlist:      NewWaitlist(testCommon(f.clock), f.store, f.store, mail, "https://app.example.org/"),
	}
}

func contact(name string) types.ContactInfo {
	return types.ContactInfo{FullName: name, Email: name + "@example.org"}
}

// waitlistCause opens a cause and switches it to collecting a waitlist.
func (f *waitlistFixture) waitlistCause(t *testing.T) *types.Cause {
	t.Helper()
	cause := f.openCause(t, "Clean Water", 100)
	cause, err := f.causes.OpenWaitlist(context.Background(), cause.ID)
	require.NoError(t, err)
	return cause
}

func (f *waitlistFixture) fund(t *testing.T, causeID string) {
	t.Helper()
	ctx := context.Background()
	cause, err := f.store.Cause(ctx, causeID)
	require.NoError(t, err)
	_, s, err := f.sponsorships.RecordPaid(ctx, cause.ID, types.SponsorInput{Name: "Acme", Amount: cause.Goal}, types.PaymentRef{OrderID: "order_1"})
	require.NoError(t, err)
	cause, err = f.sponsorships.Approve(ctx, cause.ID, s.ID)
	require.NoError(t, err)
	require.Equal(t, types.CauseStatusSponsored, cause.Status)
}

func tokenFrom(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestWaitlistPositionsAreMonotonic(t *testing.T) {
	f := newWaitlistFixture(t)
	ctx := context.Background()
	cause := f.waitlistCause(t)

	var wg sync.WaitGroup
	for i := range 10 {
		u := seedUser(f.store, fmt.Sprintf("u%d@example.org", i), types.RoleClaimer)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.waitlist.Join(ctx, cause.ID, u, contact(u.ID))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries, err := f.waitlist.List(ctx, types.WaitlistFilter{CauseID: cause.ID})
	require.NoError(t, err)
	require.Len(t, entries, 10)

	positions := make([]int, 0, len(entries))
	for _, e := range entries {
		positions = append(positions, e.Position)
	}
	sort.Ints(positions)
	for i, p := range positions {
		assert.Equal(t, i+1, p)
	}

	_, err = f.waitlist.SetStatus(ctx, entries[0].ID, types.WaitlistStatusExpired)
	require.NoError(t, err)

	late := seedUser(f.store, "late@example.org", types.RoleClaimer)
	entry, err := f.waitlist.Join(ctx, cause.ID, late, contact("late"))
	require.NoError(t, err)
	assert.Equal(t, 11, entry.Position)

	_, err = f.waitlist.Join(ctx, cause.ID, late, contact("late"))
	assert.True(t, types.IsKind(err, types.KindConflict))
}

func TestJoinRequiresWaitlistCause(t *testing.T) {
	f := newWaitlistFixture(t)
	u := seedUser(f.store, "u@example.org", types.RoleClaimer)

	cause := f.openCause(t, "Open", 100)
	_, err := f.waitlist.Join(context.Background(), cause.ID, u, contact("u"))
	assert.True(t, types.IsKind(err, types.KindState))

	_, err = f.waitlist.Join(context.Background(), cause.ID, u, types.ContactInfo{})
	assert.True(t, types.IsKind(err, types.KindValidation))
}

func TestMagicLinkRedeem(t *testing.T) {
	f := newWaitlistFixture(t)
	ctx := context.Background()
	cause := f.waitlistCause(t)
	u := seedUser(f.store, "u@example.org", types.RoleClaimer)

	entry, err := f.waitlist.Join(ctx, cause.ID, u, contact("u"))
	require.NoError(t, err)

	_, err = f.waitlist.Promote(ctx, entry.ID)
	assert.True(t, types.IsKind(err, types.KindState), "cannot promote before the cause is sponsored")

	f.fund(t, cause.ID)

	promo, err := f.waitlist.Promote(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, promo.Notified)
	assert.Equal(t, types.WaitlistStatusNotified, promo.Entry.Status)
	require.Len(t, f.mail.magicLinks, 1)

	link := f.mail.magicLinks[0]
	assert.Contains(t, link, "https://app.example.org/claim/magic-link?")
	token := tokenFrom(t, link)
	require.Len(t, token, magicLinkTokenSize)

	details, err := f.waitlist.VerifyMagicLink(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Clean Water", details.CauseTitle)
	assert.Equal(t, entry.Email, details.Email)

	info := shipping("")
	info.Email = ""
	claim, err := f.waitlist.Redeem(ctx, token, info)
	require.NoError(t, err)
	assert.True(t, claim.FromWaitlist)
	require.NotNil(t, claim.WaitlistEntryID)
	assert.Equal(t, entry.ID, *claim.WaitlistEntryID)
	assert.Equal(t, "u", claim.FullName)
	assert.Equal(t, "u@example.org", claim.Email)
	assert.Equal(t, []string{claim.ID}, f.mail.confirms)

	stored, err := f.store.WaitlistEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, types.WaitlistStatusClaimed, stored.Status)
	assert.Nil(t, stored.MagicLinkToken)

	_, err = f.waitlist.Redeem(ctx, token, shipping("again"))
	assert.True(t, types.IsKind(err, types.KindUnauthorized))
}

func TestMagicLinkSingleRedeemUnderRace(t *testing.T) {
	f := newWaitlistFixture(t)
	ctx := context.Background()
	cause := f.waitlistCause(t)
	u := seedUser(f.store, "u@example.org", types.RoleClaimer)

	entry, err := f.waitlist.Join(ctx, cause.ID, u, contact("u"))
	require.NoError(t, err)
	f.fund(t, cause.ID)
	_, err = f.waitlist.Promote(ctx, entry.ID)
	require.NoError(t, err)
	token := tokenFrom(t, f.mail.magicLinks[0])

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.waitlist.Redeem(ctx, token, shipping("u")); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	claims, _, err := f.store.Claims(ctx, types.ClaimFilter{CauseID: cause.ID})
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestMagicLinkExpires(t *testing.T) {
	f := newWaitlistFixture(t)
	ctx := context.Background()
	cause := f.waitlistCause(t)
	u := seedUser(f.store, "u@example.org", types.RoleClaimer)

	entry, err := f.waitlist.Join(ctx, cause.ID, u, contact("u"))
	require.NoError(t, err)
	f.fund(t, cause.ID)
	_, err = f.waitlist.Promote(ctx, entry.ID)
	require.NoError(t, err)
	token := tokenFrom(t, f.mail.magicLinks[0])

	f.clock.Advance(47 * time.Hour)
	_, err = f.waitlist.VerifyMagicLink(ctx, token)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.waitlist.Redeem(ctx, token, shipping("u"))
	assert.True(t, types.IsKind(err, types.KindState))

	stored, err := f.store.WaitlistEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, types.WaitlistStatusExpired, stored.Status)
	assert.Nil(t, stored.MagicLinkToken)

	promo, err := f.waitlist.Promote(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, types.WaitlistStatusNotified, promo.Entry.Status)
	assert.NotEqual(t, token, tokenFrom(t, f.mail.magicLinks[1]))
}

func TestWaitlistByCauseAccess(t *testing.T) {
	f := newWaitlistFixture(t)
	ctx := context.Background()
	cause := f.waitlistCause(t)
	u := seedUser(f.store, "u@example.org", types.RoleClaimer)
	_, err := f.waitlist.Join(ctx, cause.ID, u, contact("u"))
	require.NoError(t, err)

	_, err = f.waitlist.ByCause(ctx, cause.ID, u)
	assert.ErrorIs(t, err, types.ErrInsufficientRole)

	entries, err := f.waitlist.ByCause(ctx, cause.ID, f.admin)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	mine, err := f.waitlist.ByUser(ctx, u.ID, u)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
