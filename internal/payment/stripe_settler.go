package payment

import (
	"context"
	"os"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/cab-booking/internal/models"
)

// StripeSettler settles through Stripe PaymentIntents instead of the
// simulator. It is opt-in via STRIPE_ENABLED; the default pipeline stays on
// the simulated provider.
type StripeSettler struct {
	Currency string
}

// NewStripeSettler initializes the stripe client with the STRIPE_API_KEY
// env var.
func NewStripeSettler(currency string) *StripeSettler {
	stripe.Key = os.Getenv("STRIPE_API_KEY")
	if currency == "" {
		currency = "inr"
	}
	return &StripeSettler{Currency: currency}
}

func (s *StripeSettler) Settle(ctx context.Context, p models.Payment) (Outcome, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(p.Amount * 100)),
		Currency: stripe.String(s.Currency),
		Confirm:  stripe.Bool(true),
	}
	params.Context = ctx
	pi, err := paymentintent.New(params)
	if err != nil {
		return Outcome{}, err
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return Outcome{}, nil
	}
	return Outcome{Success: true, TransactionID: pi.ID}, nil
}
