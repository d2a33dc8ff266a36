package billing

import (
	"context"
	"testing"

	"github.com/stripe/stripe-go/v79"

	"github.com/mediakit/backend/internal/models"
)

func TestPriceTiersFromConfig(t *testing.T) {
	m := PriceTiersFromConfig("price_basic", "price_pro", "price_ent")
	if m["price_basic"] != models.TierBasic || m["price_pro"] != models.TierPro || m["price_ent"] != models.TierEnterprise {
		t.Errorf("unexpected mapping: %v", m)
	}
}

func TestPriceTiersFromConfig_SkipsUnset(t *testing.T) {
	m := PriceTiersFromConfig("price_basic", "", "")
	if len(m) != 1 {
		t.Errorf("expected only configured prices, got %v", m)
	}
	if _, ok := m[""]; ok {
		t.Error("empty price ID must not be mapped")
	}
}

func TestTierForSubscription(t *testing.T) {
	s := NewService(nil, "whsec_test", map[string]string{
		"price_pro": models.TierPro,
	})

	sub := &stripe.Subscription{
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: "price_addon"}},
				{Price: &stripe.Price{ID: "price_pro"}},
			},
		},
	}

	if got := s.tierForSubscription(sub); got != models.TierPro {
		t.Errorf("expected pro, got %q", got)
	}
}

func TestTierForSubscription_Unrecognized(t *testing.T) {
	s := NewService(nil, "whsec_test", map[string]string{
		"price_pro": models.TierPro,
	})

	sub := &stripe.Subscription{
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: "price_legacy"}},
			},
		},
	}

	if got := s.tierForSubscription(sub); got != "" {
		t.Errorf("expected no tier for unrecognized price, got %q", got)
	}
}

func TestTierForSubscription_NoItems(t *testing.T) {
	s := NewService(nil, "whsec_test", nil)
	if got := s.tierForSubscription(&stripe.Subscription{}); got != "" {
		t.Errorf("expected no tier without items, got %q", got)
	}
}

func TestHandleEvent_RejectsBadSignature(t *testing.T) {
	s := NewService(nil, "whsec_test", nil)

	err := s.HandleEvent(context.Background(), []byte(`{"type":"customer.subscription.updated"}`), "t=1,v1=bogus")
	if err == nil {
		t.Fatal("expected signature verification to fail")
	}
}
