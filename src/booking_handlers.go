package main

import (
	"log"
	"mbs/src/common"
	"mbs/src/db"
	"mbs/src/lib"
	"mbs/src/models"
	"mbs/src/types"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	bookings := g.Group("/bookings")
	bookings.
		POST("/", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			booking, err := common.CreateBooking(&body, userId)
			if err != nil {
				log.Printf("Error creating booking for slot %d: %s\n", body.SlotID, err.Error())
				ctx.JSON(statusForReservationError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": booking})
		}).
		POST("/:id/checkout", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := common.GetBooking(params.ID)
			if err != nil {
				ctx.JSON(statusForReservationError(err), gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			if booking.UserID != userId {
				ctx.Status(http.StatusForbidden)
				return
			}
			if booking.Status != types.BOOKING_PENDING {
				ctx.JSON(http.StatusConflict, gin.H{"error": "booking is not awaiting payment"})
				return
			}
			email := ctx.GetString("email")
			url, sessionId, err := lib.CreateBookingCheckout(&lib.BookingCheckoutInput{
				BookingID:      booking.ID,
				SlotID:         booking.SlotID,
				InstructorName: booking.Instructor.Name,
				Amount:         booking.PriceAmount,
				Currency:       booking.PriceCurrency,
				CustomerEmail:  email,
			})
			if err != nil {
				log.Printf("Error creating checkout for booking %d: %s\n", booking.ID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			dbi := db.GetDb()
			if err := dbi.Transaction(func(tx *gorm.DB) error {
				payment := models.Payment{
					BookingID:         booking.ID,
					CheckoutSessionId: sessionId,
					Amount:            booking.PriceAmount,
					Currency:          booking.PriceCurrency,
					Status:            types.PAYMENT_CREATED,
				}
				return tx.Create(&payment).Error
			}); err != nil {
				log.Printf("Error recording payment for booking %d: %s\n", booking.ID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"url": url})
		}).
		GET("/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := common.GetBooking(params.ID)
			if err != nil {
				ctx.JSON(statusForReservationError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		GET("/", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			bookings, err := common.GetUserBookings(userId)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings})
		}).
		GET("/instructor/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			bookings, err := common.GetInstructorBookings(params.ID)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings})
		}).
		PUT("/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := common.GetBooking(params.ID)
			if err != nil {
				ctx.JSON(statusForReservationError(err), gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			if booking.UserID != userId {
				ctx.Status(http.StatusForbidden)
				return
			}
			if err := common.CancelBooking(params.ID); err != nil {
				log.Printf("Error cancelling booking %d: %s\n", params.ID, err.Error())
				ctx.JSON(statusForReservationError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"cancelled": true}})
		})
	return g
}
