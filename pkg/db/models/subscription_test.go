package models

import (
	"testing"
	"time"

	"github.com/mvillanueva/gymflow-backend/pkg/enums"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestHasAccess(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{
			name: "active with future billing window",
			sub: Subscription{
				Status:        enums.SubscriptionStatusActive,
				NextBillingAt: timePtr(now.Add(24 * time.Hour)),
			},
			want: true,
		},
		{
			name: "active with lapsed billing window",
			sub: Subscription{
				Status:        enums.SubscriptionStatusActive,
				NextBillingAt: timePtr(now.Add(-time.Hour)),
			},
			want: false,
		},
		{
			name: "trialing inside trial window",
			sub: Subscription{
				Status:     enums.SubscriptionStatusTrialing,
				TrialEndAt: timePtr(now.Add(72 * time.Hour)),
			},
			want: true,
		},
		{
			name: "trialing after trial window",
			sub: Subscription{
				Status:     enums.SubscriptionStatusTrialing,
				TrialEndAt: timePtr(now.Add(-time.Minute)),
			},
			want: false,
		},
		{
			name: "canceled inside paid window keeps access",
			sub: Subscription{
				Status:        enums.SubscriptionStatusCanceled,
				CanceledAt:    timePtr(now.Add(-time.Hour)),
				NextBillingAt: timePtr(now.Add(24 * time.Hour)),
			},
			want: true,
		},
		{
			name: "canceled without window",
			sub: Subscription{
				Status:     enums.SubscriptionStatusCanceled,
				CanceledAt: timePtr(now.Add(-time.Hour)),
			},
			want: false,
		},
		{
			name: "pending never grants access",
			sub: Subscription{
				Status: enums.SubscriptionStatusPending,
			},
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.sub.HasAccess(now); got != tc.want {
				t.Fatalf("HasAccess = %t, want %t", got, tc.want)
			}
		})
	}
}

func TestIsCanceledQuirk(t *testing.T) {
	// A stale canceled_at counts as canceled even when status moved on.
	sub := Subscription{
		Status:     enums.SubscriptionStatusActive,
		CanceledAt: timePtr(time.Now()),
	}
	if !sub.IsCanceled() {
		t.Fatalf("expected canceled_at to dominate status")
	}

	sub = Subscription{Status: enums.SubscriptionStatusCanceled}
	if !sub.IsCanceled() {
		t.Fatalf("expected canceled status to count")
	}

	sub = Subscription{Status: enums.SubscriptionStatusActive}
	if sub.IsCanceled() {
		t.Fatalf("active subscription without canceled_at is not canceled")
	}
}
