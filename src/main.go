package main

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mbs/src/boot"
	"mbs/src/config"
	"mbs/src/controllers"
	"mbs/src/db"
	"mbs/src/lib"
	"mbs/src/middlewares"
	"mbs/src/models"
	"mbs/src/types"
	"mbs/src/utils"
	"net/http"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/grokify/go-pkce"
	"github.com/joho/godotenv"
	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

const (
	apiPrefix string = "/api/v1"
)

var bookableDateValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	if ok {
		today := time.Now()
		if today.After(datetime) {
			return false
		}
	}
	return true
}

var gtdate validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	field := fl.Parent().FieldByName(fl.Param())
	fieldValue := field.Interface().(string)
	fielddatetime, err := time.Parse(config.TIME_PARSE_FORMAT, fieldValue)
	if err != nil {
		return false
	}
	if ok {
		if fielddatetime.After(datetime) {
			return false
		}
	}
	return true
}

var ltdate validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	field := fl.Parent().FieldByName(fl.Param())
	fieldValue := field.Interface().(string)
	fielddatetime, err := time.Parse(config.TIME_PARSE_FORMAT, fieldValue)
	if err != nil {
		return false
	}
	if ok {
		if datetime.After(fielddatetime) {
			return false
		}
	}
	return true
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		mm := os.Getenv("MAINTENANCE_MODE")
		atoi, err := strconv.ParseBool(mm)
		if err == nil && atoi {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func publicRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	oauthcb := apiv1.Group("/oauth")
	oauthcb.
		GET("/google/callback", func(ctx *gin.Context) {
			var query struct {
				State    *string `form:"state" binding:"required"`
				Code     *string `form:"code" binding:"required"`
				Scope    *string `form:"scope" binding:"required"`
				AuthUser int     `form:"authuser"`
				Prompt   string  `form:"prompt"`
			}
			if err := ctx.BindQuery(&query); err != nil {
				log.Printf("Error while parsing request params: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			key, err := hex.DecodeString(config.API_SECRET)
			if err != nil {
				log.Printf("Error while retrieving key: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			dec, err := utils.DecryptMessage(key, *query.State)
			if err != nil {
				log.Printf("Error while decrypting message: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			var state types.Oauth2FlowState
			if err := json.Unmarshal([]byte(*dec), &state); err != nil {
				ctx.Status(http.StatusInternalServerError)
				return
			}
			dbi := db.GetDb()
			var profile models.InstructorProfile
			if err := dbi.Where(&models.InstructorProfile{ID: state.InstructorID}).First(&profile).Error; err != nil {
				log.Printf("Error verifying instructor [%d]: %s\n", state.InstructorID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			dnonce, err := hex.DecodeString(state.Nonce)
			if err != nil {
				log.Printf("Could not read nonce: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			rd := lib.GetRedisClient()
			nonceKey := fmt.Sprintf("instructor::%d:oauth:nonce", state.InstructorID)
			cache := rd.Get(context.Background(), nonceKey).Val()
			nonce, err := hex.DecodeString(cache)
			if err != nil {
				log.Printf("Error while decoding hex value: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			if subtle.ConstantTimeCompare(dnonce, nonce) != 1 {
				log.Println("Data mismatch: the supplied values do not match")
				ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Access denied"})
				return
			}
			oauthcfg := &oauth2.Config{
				RedirectURL:  config.API_HOST + "/api/v1/oauth/google/callback",
				ClientID:     config.OAUTH_CLIENT_ID,
				ClientSecret: config.OAUTH_CLIENT_SECRET,
				Scopes:       strings.Split(*query.Scope, " "),
				Endpoint:     google.Endpoint,
			}
			cv := pkce.NewCodeVerifierBytes(nonce)
			token, err := oauthcfg.Exchange(
				context.Background(),
				*query.Code,
				oauth2.SetAuthURLParam(pkce.ParamCodeVerifier, cv),
			)
			if err != nil {
				log.Printf("Error while exchanging authorization code for token: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			tokenValue := types.JSONB{
				"access_token":  token.AccessToken,
				"refresh_token": token.RefreshToken,
				"token_type":    token.TokenType,
				"expiry":        token.Expiry,
			}
			if err := dbi.Transaction(func(tx *gorm.DB) error {
				return tx.
					Model(&models.InstructorProfile{}).
					Where("id = ?", profile.ID).
					Update("calendar_token", &tokenValue).
					Error
			}); err != nil {
				log.Printf("Error saving calendar token for instructor [%d]: %s\n", profile.ID, err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			if state.Redirect != "" {
				ctx.Redirect(http.StatusFound, state.Redirect)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"connected": true}})
		})
	return apiv1
}

func guestAuthRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	guest := apiv1.Group("/auth")
	guest.
		POST("/login", func(ctx *gin.Context) {
			token, status, err := controllers.AuthLogin(ctx)
			if err != nil {
				log.Printf("[AuthLogin] error: %s\n", err.Error())
				ctx.Status(status)
				return
			}

			ctx.JSON(http.StatusOK, gin.H{
				"token": token,
			})
		}).
		POST("/register", func(ctx *gin.Context) {
			userId, status, err := controllers.AuthRegister(ctx)
			if err != nil {
				log.Printf("[AuthRegister] error: %s\n", err.Error())
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}

			ctx.JSON(http.StatusOK, gin.H{"id": userId})
		})
	return guest
}

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")
	gin.ForceConsoleColor()

	f, _ := os.Create(apiLogs)
	gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	boot.InitDb()
	boot.InitScheduler()
	go boot.InitBroker()

	router := setupRouter()

	appHost := os.Getenv("APP_HOST")
	if apiEnv == "local" {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
		cc.AllowOriginFunc = func(origin string) bool {
			match, _ := regexp.MatchString(appHost, origin)
			return match
		}
		cc.AllowCredentials = true
		cc.AllowAllOrigins = false
		router.Use(cors.New(cc))
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bookabledate", bookableDateValidatorFunc)
		v.RegisterValidation("gtdate", gtdate)
		v.RegisterValidation("ltdate", ltdate)
	}

	router = maintenanceModeMiddleware(router)

	publicRoutes(router)

	guestAuthRoutes(router)

	stripeWebhookRoute(router)

	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	{
		authorized = availabilityHandlers(authorized)
		authorized = bookingHandlers(authorized)
		authorized = instructorHandlers(authorized)

		authorized.
			GET("/users/me", func(ctx *gin.Context) {
				var user models.User
				userId := ctx.GetUint("id")
				db := db.GetDb()
				if err := db.
					Where(&models.User{ID: userId}).
					First(&user).
					Error; err != nil {
					ctx.Status(http.StatusBadRequest)
					return
				}
				ctx.JSON(http.StatusOK, gin.H{"data": user})
			}).
			POST("/auth/logout", func(ctx *gin.Context) {
				db := db.GetDb()
				if err := db.Transaction(func(tx *gorm.DB) error {
					userId := ctx.GetUint("id")
					err := tx.Model(&models.User{}).Where(userId).Update("last_active", time.Now()).Error
					if err != nil {
						return err
					}
					return nil
				}); err != nil {
					log.Printf("Error on user logout: %s\n", err.Error())
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				ctx.Status(http.StatusOK)
			})
	}

	if os.Getenv("TLS_ENABLE") == "true" {
		cwd, _ := os.Getwd()
		certpath := path.Join(cwd, "certificates", "localhost.pem")
		keypath := path.Join(cwd, "certificates", "localhost-key.pem")
		if err := router.RunTLS(":9090", certpath, keypath); err != nil {
			log.Fatalf("Failed to start server: %s", err)
		}
	}
	if err := router.Run(":9090"); err != nil {
		log.Fatalf("Failed to start server: %s", err)
	}
}
