package main

import (
	"context"
	"log"
	"os"
	"time"

	"stylemeapi/controllers"
	"stylemeapi/dbhelper"
	"stylemeapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              os.Getenv("SENTRY_DSN"),
		Environment:      services.GetEnv("ENV", "local"),
		Release:          "stylemeapi@1.0.0",
		Debug:            false,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Recover()
	defer sentry.Flush(2 * time.Second)

	db := dbhelper.SetupDB()

	var app *firebase.App
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		app, err = firebase.NewApp(context.Background(), nil)
		if err != nil {
			log.Fatalf("error initializing firebase app: %v\n", err)
			return
		}
	} else {
		log.Println("GOOGLE_APPLICATION_CREDENTIALS is not set, push notifications disabled")
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")})
	asynqInspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")})

	engine, err := services.NewStylistEngine(context.Background())
	if err != nil {
		log.Fatalf("error initializing stylist engine: %v\n", err)
	}

	e := controllers.SetupServer(
		db, services.GoogleService{}, &services.AWSService{}, app,
		asynqClient, asynqInspector, engine,
	)
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(3)))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	e.Logger.Fatal(e.Start(":8083"))
}
