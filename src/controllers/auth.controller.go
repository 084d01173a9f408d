package controllers

import (
	"context"
	"fmt"
	"log"
	"mbs/src/db"
	"mbs/src/lib"
	"mbs/src/models"
	"mbs/src/types"
	"mbs/src/utils"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func AuthLogin(ctx *gin.Context) (token *string, status int, err error) {
	var body types.RegisterUserRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}

	db := db.GetDb()
	var muser models.User
	if err = db.
		Model(&models.User{}).
		Select("id", "name", "email").
		Where(&models.User{Email: body.Email}).
		First(&muser).
		Error; err != nil {
		log.Printf("error: %s\n", err.Error())
		return nil, http.StatusNotFound, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.User{}).
			Where("id", muser.ID).
			Update("last_active", time.Now()).
			Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("Error logging in user [%d]: %s\n", muser.ID, err.Error())
		return nil, http.StatusBadRequest, err
	}

	go func() {
		rd := lib.GetRedisClient()
		if _, err := rd.JSONSet(context.Background(), fmt.Sprintf("%d:user", muser.ID), "$", &muser).Result(); err != nil {
			log.Printf("[redis] Error updating user cache: %s\n", err.Error())
		}
	}()

	jwtToken, err := utils.GenerateJWT(muser.Email, muser.ID)
	if err != nil {
		log.Printf("Error generating token for user [%d]: %s\n", muser.ID, err.Error())
		return nil, http.StatusInternalServerError, err
	}
	return &jwtToken, http.StatusOK, nil
}

func AuthRegister(ctx *gin.Context) (userId uint, status int, err error) {
	var body types.RegisterUserRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return 0, http.StatusBadRequest, err
	}
	db := db.GetDb()
	user := models.User{
		Email: body.Email,
		Name:  body.Name,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", body.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("user with email [%s] already exists", body.Email)
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("Error registering user [%s]: %s\n", body.Email, err.Error())
		return 0, http.StatusBadRequest, err
	}
	return user.ID, http.StatusOK, nil
}
