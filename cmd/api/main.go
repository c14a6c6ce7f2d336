package main

import (
	"context"
	"log"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/taskboard-app/taskboard-backend/config"
	"github.com/taskboard-app/taskboard-backend/internal/auth"
	"github.com/taskboard-app/taskboard-backend/internal/cache"
	"github.com/taskboard-app/taskboard-backend/internal/httpx"
	"github.com/taskboard-app/taskboard-backend/internal/janitor"
	partsvc "github.com/taskboard-app/taskboard-backend/internal/participations/service"
	projhttp "github.com/taskboard-app/taskboard-backend/internal/projects/http"
	projsvc "github.com/taskboard-app/taskboard-backend/internal/projects/service"
	"github.com/taskboard-app/taskboard-backend/internal/store"
	"github.com/taskboard-app/taskboard-backend/internal/store/memstore"
	taskhttp "github.com/taskboard-app/taskboard-backend/internal/tasks/http"
	tasksvc "github.com/taskboard-app/taskboard-backend/internal/tasks/service"
	userhttp "github.com/taskboard-app/taskboard-backend/internal/users/http"
	usersvc "github.com/taskboard-app/taskboard-backend/internal/users/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	st, session, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	c := buildCache(ctx, cfg)
	cacheTTL := time.Duration(cfg.App.CacheTTLSeconds) * time.Second

	users := usersvc.New(st)
	parts := partsvc.New(st, c)
	tasks := tasksvc.New(st, c, cacheTTL, cfg.App.StatsMaxConcurrent)
	projects := projsvc.New(st, c, parts, tasks, cacheTTL)

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(cors.Default())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1", session)
	mutate := httpx.RateLimit(rate.Limit(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst)

	projhttp.NewHandler(projects, parts).RegisterRoutes(api, mutate)
	taskhttp.NewHandler(tasks, projects).RegisterRoutes(api, mutate)
	userhttp.NewHandler(users).RegisterRoutes(api)

	j := janitor.New(st, cfg.Cleanup.Schedule, cfg.Cleanup.Delete)
	j.Start()
	defer j.Stop()

	log.Printf("listening on :%s (env=%s)", cfg.Server.Port, cfg.App.Environment)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// buildStore returns the document store and the matching session middleware.
// With a Firebase project configured it connects to Firestore and verifies
// bearer tokens; in development without one it falls back to the in-memory
// store and header-based sessions.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, gin.HandlerFunc, error) {
	if cfg.Firebase.ProjectID == "" {
		log.Println("no FIREBASE_PROJECT_ID set, using in-memory store with header sessions")
		return memstore.New(), auth.DevSession(), nil
	}

	var opts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID}, opts...)
	if err != nil {
		return nil, nil, err
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, nil, err
	}
	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, nil, err
	}

	return store.NewFirestore(fsClient), auth.FirebaseSession(authClient), nil
}

func buildCache(ctx context.Context, cfg *config.Config) cache.Cache {
	if cfg.Redis.Addr == "" {
		log.Println("no REDIS_ADDR set, caching disabled")
		return cache.Disabled{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis ping failed (%v), caching disabled", err)
		return cache.Disabled{}
	}

	log.Printf("redis connected at %s", cfg.Redis.Addr)
	return cache.NewRedis(client)
}
