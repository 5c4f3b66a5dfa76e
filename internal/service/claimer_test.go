package service

import (
	"context"
	"errors"
	"testing"

	"causeconnect/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimerStats(t *testing.T) {
	f := newLedgerFixture(t, nil, false)
	ctx := context.Background()
	claimers := NewClaimers(testCommon(f.clock), f.store, f.store)
	claims := NewClaims(testCommon(f.clock), f.store, newFakeMailer())

	funded := f.sponsoredCause(t)
	offline := f.openCause(t, "Paused", 500)
	_, err := f.causes.ToggleOnline(ctx, offline.ID)
	require.NoError(t, err)

	_, err = claims.Create(ctx, funded.ID, f.creator, shipping("Org"))
	require.NoError(t, err)

	causes, err := claimers.Causes(ctx, f.creator.ID, f.creator)
	require.NoError(t, err)
	assert.Len(t, causes, 2)

	stats, err := claimers.Stats(ctx, f.creator.ID, f.creator)
	require.NoError(t, err)
	assert.Equal(t, &ClaimerStats{ActiveCauses: 1, TotalRaised: 100, TotesClaimed: 1}, stats)

	other := seedUser(f.store, "other@example.org", types.RoleClaimer)
	_, err = claimers.Stats(ctx, f.creator.ID, other)
	assert.ErrorIs(t, err, types.ErrInsufficientRole)
}

func TestNotificationsSend(t *testing.T) {
	mail := newFakeMailer()
	n := NewNotifications(testCommon(newClock()), mail)
	ctx := context.Background()

	err := n.Send(ctx, EmailRequest{To: "x@example.org"})
	assert.True(t, types.IsKind(err, types.KindValidation))

	err = n.Send(ctx, EmailRequest{To: "bad", Subject: "Hi"})
	assert.True(t, types.IsKind(err, types.KindValidation))

	require.NoError(t, n.Send(ctx, EmailRequest{To: " x@example.org ", Subject: "Hi"}))
	assert.Equal(t, []string{"x@example.org:default"}, mail.sent)

	mail.fail = types.UpstreamError(errors.New("smtp"), "failed to send default email")
	err = n.Send(ctx, EmailRequest{To: "x@example.org", Subject: "Hi", Template: "shipment"})
	assert.True(t, types.IsKind(err, types.KindUpstream))
}
