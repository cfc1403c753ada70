package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"alcyxob/imagegate/internal/api"
	"alcyxob/imagegate/internal/config"
	"alcyxob/imagegate/internal/metrics"
	"alcyxob/imagegate/internal/pipeline"
	"alcyxob/imagegate/internal/repository"
	"alcyxob/imagegate/internal/repository/mongo"
	"alcyxob/imagegate/internal/service"
	"alcyxob/imagegate/internal/storage"
)

// @title Image Upload API
// @version 1.0
// @description Accepts image uploads and admits only genuine, reasonably sized images.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	log.Println("Starting image upload server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Printf("Configuration loaded. Uploads go to %s (min %d, max %d bytes).",
		cfg.Upload.Dir(), cfg.Upload.MinSize, cfg.Upload.MaxSize)

	// --- Database Connection ---
	var uploadRepo repository.UploadRepository
	if cfg.Database.Enabled {
		dbClient, err := mongo.ConnectDB(context.Background(), cfg.Database.URI)
		if err != nil {
			log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
		}
		defer func() {
			log.Println("Disconnecting MongoDB...")
			if err := mongo.DisconnectDB(dbClient); err != nil {
				log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
			}
		}()
		appDB := dbClient.Database(cfg.Database.Name)
		log.Println("Database connection established.")

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
			defer cancel()
			if err := mongo.EnsureUploadIndexes(ctx, appDB); err != nil {
				log.Printf("WARN: Failed to create upload indexes: %v", err)
				return
			}
			log.Println("Index creation process completed.")
		}()

		uploadRepo = mongo.NewMongoUploadRepository(appDB)
	} else {
		log.Println("WARN: Database disabled; upload metadata will not be stored.")
	}

	// --- Initialize Storage ---
	diskStore, err := storage.NewDiskStore(cfg.Upload.Dir())
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize upload directory: %v", err)
	}

	var objectStorage storage.ObjectStorage
	if cfg.S3.Enabled() {
		objectStorage, err = storage.NewS3Storage(context.Background(), cfg.S3)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
		}
	}

	// --- Initialize Services ---
	uploadService := service.NewUploadService(service.UploadServiceOptions{
		Repo:          uploadRepo,
		Objects:       objectStorage,
		Files:         diskStore,
		TempPath:      cfg.Upload.TempPath,
		PresignExpiry: cfg.S3.PresignExpiry,
	})

	var opts []pipeline.Option
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		m := metrics.New()
		opts = append(opts, pipeline.WithObserver(m))
		metricsHandler = m.Handler()
	}
	uploadPipeline := pipeline.NewUploadPipeline(cfg.Upload, diskStore, opts...)

	// --- Initialize Gin Engine ---
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestID(), api.Logger())
	if publicPrefix := service.PublicPath(cfg.Upload.TempPath, ""); publicPrefix != "/" {
		router.Static(publicPrefix, diskStore.Dir())
	}

	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, cfg.Upload.FieldName, uploadPipeline, uploadService, metricsHandler)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  60 * time.Second, // Large enough for a full-size upload on a slow link
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Printf("ERROR: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
