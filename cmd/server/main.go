// @title           CivicEye API
// @version         1.0
// @description     API for a civic issue reporter: citizens photograph problems around the city, an AI vision service scores them, and city admins track each complaint to resolution.
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/civiceye/civiceye-backend/internal/auth"
	"github.com/civiceye/civiceye-backend/internal/classify"
	"github.com/civiceye/civiceye-backend/internal/complaints"
	"github.com/civiceye/civiceye-backend/internal/geocode"
	"github.com/civiceye/civiceye-backend/internal/messaging"
	"github.com/civiceye/civiceye-backend/internal/report"
	"github.com/civiceye/civiceye-backend/internal/snapshot"
	"github.com/civiceye/civiceye-backend/internal/storage"
	"github.com/civiceye/civiceye-backend/pkg/logger"
)

// newStore picks the snapshot backend: Redis when REDIS_ADDR is set,
// otherwise a local JSON file.
func newStore(zl *zap.Logger) snapshot.Store {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		zl.Info("using redis snapshot store", zap.String("addr", addr))
		return snapshot.NewRedisStore(rdb, snapshot.DefaultKey)
	}
	path := os.Getenv("SNAPSHOT_FILE")
	if path == "" {
		path = "data/complaints.json"
	}
	zl.Info("using file snapshot store", zap.String("path", path))
	return snapshot.NewFileStore(path)
}

func main() {
	_ = godotenv.Load()

	zl, err := logger.Init(logger.ConfigFromEnv())
	if err != nil {
		log.Fatal("logger init failed:", err)
	}
	defer zl.Sync()

	ctx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	repo := complaints.NewRepository(newStore(zl), zl)
	if err := repo.Load(ctx); err != nil {
		zl.Fatal("snapshot load failed", zap.Error(err))
	}
	stop()

	// Optional event bus. The publisher is nil-safe; without AMQP_URL
	// events are silently dropped.
	var publisher *messaging.Publisher
	if url := os.Getenv("AMQP_URL"); url != "" {
		publisher, err = messaging.NewPublisher(url, zl)
		if err != nil {
			zl.Fatal("amqp connect failed", zap.Error(err))
		}
		defer publisher.Close()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler,
		BodyLimit:    12 * 1024 * 1024, // photos come in as multipart
	})

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

	api := app.Group("/api")

	// Auth (demo identities, no credentials)
	authH := auth.NewHandler()
	api.Post("/login", authH.Login)
	api.Get("/me", auth.RequireAuth(), authH.Me)

	sb := storage.NewSupabase() // uses SUPABASE_URL / SUPABASE_SERVICE_KEY / SUPABASE_BUCKET

	// Report wizard (citizen)
	mgr := report.NewManager(classify.NewFromEnv(), geocode.NewFromEnv(), zl)
	reportH := report.NewHandler(mgr, repo, sb, publisher, zl)
	api.Post("/reports", auth.RequireAuth(), auth.RequireRole("citizen"), reportH.Start)
	api.Get("/reports/:id", auth.RequireAuth(), auth.RequireRole("citizen"), reportH.GetState)
	api.Post("/reports/:id/photo", auth.RequireAuth(), auth.RequireRole("citizen"), reportH.AttachPhoto)
	api.Post("/reports/:id/back", auth.RequireAuth(), auth.RequireRole("citizen"), reportH.Back)
	api.Post("/reports/:id/confirm", auth.RequireAuth(), auth.RequireRole("citizen"), reportH.Confirm)
	api.Delete("/reports/:id", auth.RequireAuth(), auth.RequireRole("citizen"), reportH.Abandon)

	// Complaints
	compH := complaints.NewHandler(repo, publisher, zl)
	// Citizen
	api.Get("/complaints/mine", auth.RequireAuth(), auth.RequireRole("citizen"), compH.ListMine)
	api.Get("/complaints/:id", auth.RequireAuth(), compH.GetDetail)
	// Admin
	api.Get("/admin/complaints", auth.RequireAuth(), auth.RequireRole("admin"), compH.AdminList)
	api.Get("/admin/stats", auth.RequireAuth(), auth.RequireRole("admin"), compH.AdminStats)
	api.Patch("/admin/complaints/:id/status", auth.RequireAuth(), auth.RequireRole("admin"), compH.UpdateStatus)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	zl.Info("server running", zap.String("port", port))
	log.Fatal(app.Listen(":" + port))
}
