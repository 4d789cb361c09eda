package controllers

import (
	"context"
	"log"
	"net/http"
	"os"

	firebase "firebase.google.com/go/v4"
	"github.com/go-playground/validator"
	"github.com/hibiken/asynq"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"stylemeapi/models"
	"stylemeapi/services"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func SetupServer(
	db *gorm.DB,
	googleService services.GoogleServiceProvider,
	awsService services.AWSServiceProvider,
	firebaseApp *firebase.App,
	asynqClient *asynq.Client,
	asynqInspector *asynq.Inspector,
	engine services.StylistEngine,
) *echo.Echo {

	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("Failed to initialize AWS provider: S3")
	}
	urlCache, err := services.NewURLCacheService(awsService, services.GetEnv("R2_BUCKET_NAME", ""))
	if err != nil {
		log.Fatal("Failed to initialize URL cache: ", err)
	}

	e := echo.New()
	v := validator.New()
	v.RegisterValidation("platform", models.ValidatePlatform)
	v.RegisterValidation("bodytype", models.ValidateBodyType)
	e.Validator = &CustomValidator{validator: v}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			c.Set("__asynqclient", asynqClient)
			c.Set("__asynqinspector", asynqInspector)
			return next(c)
		}
	})

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	authGroup := e.Group("auth")
	authController := AuthController{Google: googleService, FirebaseApp: firebaseApp}
	authController.AuthRoutes(authGroup)

	jwtSecret := []byte(os.Getenv("JWT_SECRET"))

	profileController := ProfileController{AWSService: awsService, URLCache: urlCache, Engine: engine}
	stylingGroup := e.Group("styling", echojwt.JWT(jwtSecret), UserMiddleware)
	profileController.ProfileRoutes(stylingGroup)

	wardrobeController := WardrobeController{AWSService: awsService, FirebaseApp: firebaseApp, URLCache: urlCache}
	wardrobeGroup := e.Group("wardrobe", echojwt.JWT(jwtSecret), UserMiddleware)
	wardrobeController.WardrobeRoutes(wardrobeGroup)

	storeController := StoreController{URLCache: urlCache}
	storeGroup := e.Group("store", echojwt.JWT(jwtSecret), UserMiddleware)
	storeController.StoreRoutes(storeGroup)

	looksController := LooksController{
		AWSService:  awsService,
		FirebaseApp: firebaseApp,
		URLCache:    urlCache,
		Composer:    services.NewLookComposer(engine),
	}
	looksGroup := e.Group("looks", echojwt.JWT(jwtSecret), UserMiddleware)
	looksController.LooksRoutes(looksGroup)

	return e
}
