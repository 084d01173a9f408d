package main

import (
	"encoding/json"
	"io"
	"log"
	"mbs/src/common"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

func bookingIdFromMetadata(md map[string]string) (uint, bool) {
	raw, ok := md["bookingId"]
	if !ok {
		return 0, false
	}
	atoi, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return uint(atoi), true
}

func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)
		switch event.Type {
		case "checkout.session.completed":
			var cs stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
				log.Printf("[Stripe] Error parsing CheckoutSession: %s\n", err.Error())
				break
			}
			bookingId, ok := bookingIdFromMetadata(cs.Metadata)
			if !ok {
				log.Printf("[Stripe] CheckoutSession %s carries no booking id\n", cs.ID)
				break
			}
			if err := common.MarkBookingPaymentInitiated(bookingId, cs.ID); err != nil {
				log.Printf("Error updating booking %d from session %s: %s\n", bookingId, cs.ID, err.Error())
			}
		case "payment_intent.succeeded":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			bookingId, ok := bookingIdFromMetadata(pi.Metadata)
			if !ok {
				log.Printf("[Stripe] PaymentIntent %s carries no booking id\n", pi.ID)
				break
			}
			if err := common.ConfirmBooking(bookingId, pi.ID); err != nil {
				log.Printf("Error confirming booking %d from intent %s: %s\n", bookingId, pi.ID, err.Error())
			}
		case "charge.refunded":
			var ch stripe.Charge
			if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
				log.Printf("[Stripe] Error parsing Charge: %s\n", err.Error())
				break
			}
			bookingId, ok := bookingIdFromMetadata(ch.Metadata)
			if !ok {
				log.Printf("[Stripe] Charge %s carries no booking id\n", ch.ID)
				break
			}
			if err := common.MarkBookingRefunded(bookingId); err != nil {
				log.Printf("Error processing refund for booking %d: %s\n", bookingId, err.Error())
			}
		default:
			log.Printf("Unhandled event type: %s\n", event.Type)
		}
		ctx.Status(http.StatusOK)
	})
	return apiv1
}
