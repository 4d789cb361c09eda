package main

import (
	"context"
	"log"
	"os"

	"stylemeapi/dbhelper"
	"stylemeapi/services"
	"stylemeapi/tasks"

	firebase "firebase.google.com/go/v4"
	"github.com/hibiken/asynq"
)

func runScheduler() {
	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}, &asynq.SchedulerOpts{
		LogLevel: asynq.InfoLevel,
	})

	sweepTask, err := tasks.NewStaleSweepTask()
	if err != nil {
		log.Fatalf("Failed to build stale sweep task: %v", err)
	}
	entryID, err := scheduler.Register("*/10 * * * *", sweepTask, asynq.Queue("generate"))
	if err != nil {
		log.Fatalf("Failed to register stale sweep task: %v", err)
	}
	log.Printf("Registered stale sweep task with ID: %s", entryID)

	log.Println("Starting scheduler...")
	if err := scheduler.Run(); err != nil {
		log.Fatalf("Scheduler failed: %v", err)
	}
}

func main() {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")},
		asynq.Config{Concurrency: 10, Queues: map[string]int{
			"generate": 7,
		}},
	)

	awsService := &services.AWSService{}
	if err := awsService.InitPresignClient(context.Background()); err != nil {
		log.Fatal("[Queue] Failed to initialize AWS provider: S3")
	}

	engine, err := services.NewStylistEngine(context.Background())
	if err != nil {
		log.Fatalf("[Queue] error initializing stylist engine: %v\n", err)
	}

	var app *firebase.App
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		app, err = firebase.NewApp(context.Background(), nil)
		if err != nil {
			log.Fatalf("error initializing firebase app: %v\n", err)
			return
		}
	} else {
		log.Println("[Queue] GOOGLE_APPLICATION_CREDENTIALS is not set, push notifications disabled")
	}

	mux := asynq.NewServeMux()
	db := dbhelper.SetupDB()
	mux.HandleFunc(tasks.TypeLookGeneration, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleLookGenerationTask(ctx, t, db, engine, awsService, app)
	})
	mux.HandleFunc(tasks.TypeItemClassification, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleItemClassificationTask(ctx, t, db, engine, awsService)
	})
	mux.HandleFunc(tasks.TypeStaleSweep, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleStaleSweepTask(ctx, t, db)
	})

	go runScheduler()
	if err := srv.Run(mux); err != nil {
		log.Fatal(err)
	}
}
