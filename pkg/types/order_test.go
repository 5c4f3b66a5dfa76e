package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderMarkPaidIsIdempotent(t *testing.T) {
	o := &Order{ID: "o1", GatewayOrderID: "pi_1", Status: OrderStatusCreated}

	require.NoError(t, o.MarkPaid("pay_1", &SponsorshipDetails{Name: "Acme"}, testNow))
	require.Equal(t, OrderStatusPaid, o.Status)
	require.NoError(t, o.MarkPaid("pay_1", nil, testNow))
	require.Equal(t, "Acme", o.SponsorshipDetails.Name)

	require.True(t, IsKind(o.MarkPaid("pay_2", nil, testNow), KindConflict))
	require.True(t, IsKind(o.MarkFailed(testNow), KindState))
}

func TestOrderFailedCanStillBePaid(t *testing.T) {
	o := &Order{GatewayOrderID: "pi_1", Status: OrderStatusCreated}
	require.NoError(t, o.MarkFailed(testNow))
	require.NoError(t, o.MarkFailed(testNow))
	require.NoError(t, o.MarkPaid("pay_1", nil, testNow))
}

func TestOrderLinkSponsor(t *testing.T) {
	o := &Order{GatewayOrderID: "pi_1", Status: OrderStatusCreated}
	require.True(t, IsKind(o.LinkSponsor("s1", testNow), KindState))

	require.NoError(t, o.MarkPaid("pay_1", nil, testNow))
	require.NoError(t, o.LinkSponsor("s1", testNow))
	require.NoError(t, o.LinkSponsor("s1", testNow))
	require.True(t, IsKind(o.LinkSponsor("s2", testNow), KindConflict))

	o.UnlinkSponsor("s2", testNow)
	require.Equal(t, "s1", *o.SponsorID)
	o.UnlinkSponsor("s1", testNow)
	require.Nil(t, o.SponsorID)
	require.NoError(t, o.LinkSponsor("s2", testNow))
}

func TestErrorKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("loading: %w", ErrCauseNotFound)
	require.Equal(t, KindNotFound, KindOf(err))
	require.True(t, errors.Is(err, ErrCauseNotFound))
	require.Equal(t, "not_found", KindOf(err).String())

	up := UpstreamError(errors.New("smtp down"), "failed to send %s", "otp")
	require.EqualError(t, up, "failed to send otp: smtp down")
	require.Zero(t, KindOf(errors.New("plain")))
}

func TestTransitions(t *testing.T) {
	require.True(t, SponsorTransitions.Can(SponsorStatusRejected, SponsorStatusApproved))
	require.False(t, SponsorTransitions.Can(SponsorStatusApproved, SponsorStatusPending))

	err := CauseTransitions.Check("cause", CauseStatusCompleted, CauseStatusOpen)
	require.EqualError(t, err, "cause cannot move from completed to open")
}
