package lib

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/stripe/stripe-go/v82"
)

var stripeClient *stripe.Client

func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

type BookingCheckoutInput struct {
	BookingID      uint
	SlotID         uint
	InstructorName string
	Amount         float64
	Currency       string
	CustomerEmail  string
}

// CreateBookingCheckout opens a Stripe Checkout session for a pending
// booking. Amount is in major currency units and converted to the smallest
// unit for Stripe.
func CreateBookingCheckout(input *BookingCheckoutInput) (url *string, sessionId *string, err error) {
	sc := GetStripeClient()
	appHost := os.Getenv("APP_HOST")
	metadata := map[string]string{
		"bookingId": strconv.Itoa(int(input.BookingID)),
		"slotId":    strconv.Itoa(int(input.SlotID)),
	}
	params := stripe.CheckoutSessionCreateParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(input.Currency),
					UnitAmount: stripe.Int64(int64(input.Amount * 100)),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Session with %s", input.InstructorName)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(input.CustomerEmail),
		Metadata:      metadata,
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: metadata,
		},
		SuccessURL: stripe.String(fmt.Sprint(appHost, "/bookings/callback/success")),
		CancelURL:  stripe.String(fmt.Sprint(appHost, "/bookings/callback/cancel")),
	}
	session, err := sc.V1CheckoutSessions.Create(context.Background(), &params)
	if err != nil {
		return nil, nil, err
	}
	return &session.URL, &session.ID, nil
}

// RefundBookingPayment refunds the full captured amount of a payment intent.
func RefundBookingPayment(paymentIntentId string) (*stripe.Refund, error) {
	sc := GetStripeClient()
	params := stripe.RefundCreateParams{
		PaymentIntent: stripe.String(paymentIntentId),
	}
	return sc.V1Refunds.Create(context.Background(), &params)
}
