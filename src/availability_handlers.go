package main

import (
	"errors"
	"log"
	"mbs/src/common"
	"mbs/src/config"
	"mbs/src/db"
	"mbs/src/models"
	"mbs/src/types"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func statusForReservationError(err error) int {
	switch {
	case errors.Is(err, common.ErrSlotNotFound),
		errors.Is(err, common.ErrLockNotFound),
		errors.Is(err, common.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrSlotUnavailable),
		errors.Is(err, common.ErrSlotAlreadyLocked),
		errors.Is(err, common.ErrLockNotAcquired),
		errors.Is(err, common.ErrSlotAlreadyBooked),
		errors.Is(err, common.ErrLockRequired),
		errors.Is(err, common.ErrLockExpired),
		errors.Is(err, common.ErrLockOwnedByAnotherUser),
		errors.Is(err, common.ErrInstructorMissing):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func availabilityHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	availability := g.Group("/availability")
	availability.
		GET("/health", func(ctx *gin.Context) {
			var count int64
			db := db.GetDb()
			if err := db.Model(&models.AvailabilitySlot{}).Count(&count).Error; err != nil {
				ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"status": "ok", "slots": count})
		}).
		GET("/:id/daily", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var query struct {
				Date string `form:"date" binding:"required"`
			}
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			date, err := time.Parse(config.DATE_PARSE_FORMAT, query.Date)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "date must be formatted as YYYY-MM-DD"})
				return
			}
			view := common.GetDailyAvailability(params.ID, date)
			ctx.JSON(http.StatusOK, gin.H{"data": view})
		}).
		POST("/lock", func(ctx *gin.Context) {
			var body types.LockSlotRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var claimant *uint
			if userId := ctx.GetUint("id"); userId > 0 {
				claimant = &userId
			}
			result, err := common.LockSlot(body.SlotID, claimant, body.Reason)
			if err != nil {
				log.Printf("Error locking slot %d: %s\n", body.SlotID, err.Error())
				ctx.JSON(statusForReservationError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		}).
		POST("/release", func(ctx *gin.Context) {
			var body types.ReleaseSlotRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := common.ReleaseSlot(body.SlotID, body.Token); err != nil {
				log.Printf("Error releasing slot %d: %s\n", body.SlotID, err.Error())
				ctx.JSON(statusForReservationError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"released": true}})
		})
	return g
}
