// Package billing syncs subscription state from Stripe webhook events onto
// user records. It is the only writer of the tier column; the usage gate
// only ever reads it.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/mediakit/backend/internal/models"
	"github.com/mediakit/backend/internal/repository"
)

// ErrInvalidSignature is returned when the webhook payload fails signature
// verification
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Service maps Stripe subscription lifecycle events to tier changes
type Service struct {
	userRepo      *repository.UserRepository
	webhookSecret string
	priceTiers    map[string]string
}

// NewService creates a billing service. priceTiers maps Stripe price IDs to
// subscription tiers.
func NewService(userRepo *repository.UserRepository, webhookSecret string, priceTiers map[string]string) *Service {
	return &Service{
		userRepo:      userRepo,
		webhookSecret: webhookSecret,
		priceTiers:    priceTiers,
	}
}

// PriceTiersFromConfig builds the price-to-tier mapping, skipping prices
// that are not configured
func PriceTiersFromConfig(basic, pro, enterprise string) map[string]string {
	m := make(map[string]string)
	if basic != "" {
		m[basic] = models.TierBasic
	}
	if pro != "" {
		m[pro] = models.TierPro
	}
	if enterprise != "" {
		m[enterprise] = models.TierEnterprise
	}
	return m
}

// HandleEvent verifies and applies one webhook delivery. Unrecognized event
// types are acknowledged and ignored so Stripe does not retry them forever.
func (s *Service) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		return s.handleSubscriptionChange(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		log.Printf("[billing] ignoring event type %s", event.Type)
		return nil
	}
}

// handleCheckoutCompleted links the Stripe customer to the user who started
// checkout. The tier itself comes from the subscription events that follow.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}

	userID := sess.ClientReferenceID
	if userID == "" || sess.Customer == nil {
		log.Printf("[billing] checkout session %s missing user reference or customer", sess.ID)
		return nil
	}

	if err := s.userRepo.SetStripeCustomerID(ctx, userID, sess.Customer.ID); err != nil {
		return fmt.Errorf("failed to link stripe customer: %w", err)
	}

	log.Printf("[billing] linked user %s to stripe customer %s", userID, sess.Customer.ID)
	return nil
}

// handleSubscriptionChange updates the tier from the subscription's price
func (s *Service) handleSubscriptionChange(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}

	if sub.Customer == nil {
		return nil
	}

	tier := s.tierForSubscription(&sub)
	if tier == "" {
		log.Printf("[billing] subscription %s has no recognized price, leaving tier unchanged", sub.ID)
		return nil
	}

	// Anything but an active or trialing subscription drops to free.
	if sub.Status != stripe.SubscriptionStatusActive && sub.Status != stripe.SubscriptionStatusTrialing {
		tier = models.TierFree
	}

	return s.applyTier(ctx, sub.Customer.ID, tier)
}

// handleSubscriptionDeleted drops the user back to the free tier
func (s *Service) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}

	if sub.Customer == nil {
		return nil
	}

	return s.applyTier(ctx, sub.Customer.ID, models.TierFree)
}

// tierForSubscription resolves the tier of the first recognized price on the
// subscription
func (s *Service) tierForSubscription(sub *stripe.Subscription) string {
	if sub.Items == nil {
		return ""
	}
	for _, item := range sub.Items.Data {
		if item.Price == nil {
			continue
		}
		if tier, ok := s.priceTiers[item.Price.ID]; ok {
			return tier
		}
	}
	return ""
}

func (s *Service) applyTier(ctx context.Context, customerID, tier string) error {
	user, err := s.userRepo.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Printf("[billing] no user for stripe customer %s, skipping", customerID)
			return nil
		}
		return fmt.Errorf("failed to resolve stripe customer: %w", err)
	}

	if user.Tier == tier {
		return nil
	}

	if err := s.userRepo.UpdateTier(ctx, user.ID, tier); err != nil {
		return fmt.Errorf("failed to update tier: %w", err)
	}

	log.Printf("[billing] user %s tier changed %s -> %s", user.ID, user.Tier, tier)
	return nil
}
