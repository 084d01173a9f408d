package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"mbs/src/common"
	"mbs/src/config"
	"mbs/src/db"
	"mbs/src/lib"
	"mbs/src/models"
	"mbs/src/types"
	"mbs/src/utils"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grokify/go-pkce"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

func instructorHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	instructors := g.Group("/instructors")
	instructors.
		GET("/", func(ctx *gin.Context) {
			var profiles []models.InstructorProfile
			db := db.GetDb()
			if err := db.Order("name asc").Find(&profiles).Error; err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": profiles})
		}).
		GET("/:slug", func(ctx *gin.Context) {
			var params struct {
				Slug string `uri:"slug" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var profile models.InstructorProfile
			db := db.GetDb()
			if err := db.Where(&models.InstructorProfile{Slug: params.Slug}).First(&profile).Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "instructor not found"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": profile})
		}).
		POST("/", func(ctx *gin.Context) {
			var body types.CreateInstructorRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			id, err := utils.CreateInstructorProfile(&body)
			if err != nil {
				log.Printf("Error creating instructor profile: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": gin.H{"id": id}})
		}).
		POST("/:slug/slots/generate", func(ctx *gin.Context) {
			var params struct {
				Slug string `uri:"slug" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.GenerateSlotsRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var profile models.InstructorProfile
			db := db.GetDb()
			if err := db.Where(&models.InstructorProfile{Slug: params.Slug}).First(&profile).Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "instructor not found"})
				return
			}
			date, err := time.Parse(config.TIME_PARSE_FORMAT, body.Date)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ids, err := utils.GenerateDailySlots(profile.ID, date, body.SlotMinutes, body.StartHour, body.EndHour)
			if err != nil {
				log.Printf("Error generating slots for instructor %d: %s\n", profile.ID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": gin.H{"slot_ids": ids}})
		}).
		POST("/:slug/calendar/connect", func(ctx *gin.Context) {
			var params struct {
				Slug string `uri:"slug" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body struct {
				Redirect string `json:"redirect" binding:"required"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var profile models.InstructorProfile
			db := db.GetDb()
			if err := db.Where(&models.InstructorProfile{Slug: params.Slug}).First(&profile).Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "instructor not found"})
				return
			}
			oauthcfg := &oauth2.Config{
				RedirectURL:  config.API_HOST + "/api/v1/oauth/google/callback",
				ClientID:     config.OAUTH_CLIENT_ID,
				ClientSecret: config.OAUTH_CLIENT_SECRET,
				Scopes: []string{
					calendar.CalendarCalendarsScope,
					calendar.CalendarEventsScope,
				},
				Endpoint: google.Endpoint,
			}
			nonce := make([]byte, 32)
			rand.Read(nonce)
			hnonce := hex.EncodeToString(nonce)
			go func() {
				ex := 3600 * time.Second
				rd := lib.GetRedisClient()
				rd.SetEx(
					context.Background(),
					fmt.Sprintf("instructor::%d:oauth:nonce", profile.ID),
					hnonce,
					ex,
				)
			}()

			cv := pkce.NewCodeVerifierBytes(nonce)
			cc := pkce.CodeChallengeS256(cv)

			state := &types.Oauth2FlowState{
				InstructorID: profile.ID,
				Nonce:        hnonce,
				Redirect:     body.Redirect,
			}
			b, err := json.Marshal(state)
			if err != nil {
				ctx.Status(http.StatusInternalServerError)
				return
			}
			keyBytes, err := hex.DecodeString(config.API_SECRET)
			if err != nil {
				log.Printf("Error while reading secret key: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			enc, err := utils.EncryptMessage(keyBytes, string(b))
			if err != nil {
				log.Printf("Error while encrypting message: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			authurl := oauthcfg.AuthCodeURL(
				enc,
				oauth2.AccessTypeOffline,
				oauth2.SetAuthURLParam(pkce.ParamCodeChallenge, cc),
				oauth2.SetAuthURLParam(pkce.ParamCodeChallengeMethod, pkce.MethodS256),
			)
			ctx.JSON(http.StatusOK, gin.H{"url": authurl})
		})

	availability := g.Group("/instructors/:slug/availability")
	availability.
		GET("/daily", func(ctx *gin.Context) {
			var params struct {
				Slug string `uri:"slug" binding:"required"`
			}
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
			var profile models.InstructorProfile
			db := db.GetDb()
			if err := db.Where(&models.InstructorProfile{Slug: params.Slug}).First(&profile).Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "instructor not found"})
				return
			}
			date, err := time.Parse(config.DATE_PARSE_FORMAT, query.Date)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "date must be formatted as YYYY-MM-DD"})
				return
			}
			view := common.GetDailyAvailability(profile.ID, date)
			ctx.JSON(http.StatusOK, gin.H{"data": view})
		})
	return g
}
