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

	"shuttle-backend/internal/api/handlers"
	"shuttle-backend/internal/api/routes"
	"shuttle-backend/internal/catalog"
	"shuttle-backend/internal/config"
	"shuttle-backend/internal/eta"
	"shuttle-backend/internal/repository"
	"shuttle-backend/internal/repository/memstore"
	"shuttle-backend/internal/repository/mongostore"
	"shuttle-backend/internal/services"
	"shuttle-backend/internal/trips"
	"shuttle-backend/internal/websocket"
	"shuttle-backend/pkg/cache"
	"shuttle-backend/pkg/cleanup"
	"shuttle-backend/pkg/database"
	"shuttle-backend/pkg/jwt"
	"shuttle-backend/pkg/outbox"
	"shuttle-backend/pkg/push"
	"shuttle-backend/pkg/ratelimit"
	"shuttle-backend/pkg/redis"
	"shuttle-backend/pkg/routing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	routeCatalog, err := catalog.Load(cfg.RouteCatalogFile)
	if err != nil {
		log.Fatalf("Failed to load route catalog: %v", err)
	}

	store, closeStore := openStore(cfg)
	defer closeStore()

	// Redis is optional; without it caches and dedup stay in process
	var redisClient *redis.Client
	var cacheManager cache.CacheManager
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(cfg.Redis)
		defer redisClient.Close()

		healthStatus := redisClient.HealthCheck()
		if healthStatus.IsConnected {
			log.Printf("Redis connected successfully at %s", healthStatus.ConnectionInfo)
		} else {
			log.Printf("Redis connection failed: %s (will retry automatically)", healthStatus.Error)
		}
		cacheManager = cache.NewDefaultCacheManager(redisClient)
	}

	jwtExpiry, _ := time.ParseDuration(cfg.JWTExpiry)
	jwtUtil := jwt.NewJWTUtil(cfg.JWTSecret, jwtExpiry)

	wsConfig := websocket.LoadConfigFromEnv()
	wsConfig.FlushInterval = cfg.Loops.BroadcastFlushInterval
	wsManager := websocket.NewManager(wsConfig, jwtUtil)
	if err := wsManager.Start(); err != nil {
		log.Fatalf("Failed to start broadcast manager: %v", err)
	}

	tasks := outbox.New(outbox.LoadConfigFromEnv())
	tasks.Start()

	// Services
	etaConfig := eta.LoadConfigFromEnv()
	demand := eta.NewDemandEngine(store, etaConfig)
	demand.SetBroadcaster(wsManager)

	vehicleService := services.NewVehicleService(store)
	vehicleService.SetCatalog(routeCatalog)
	vehicleService.SetBroadcaster(wsManager)
	vehicleService.SetDemandEvaluator(demand)

	assignmentService := services.NewAssignmentService(store)
	assignmentService.SetCatalog(routeCatalog)
	assignmentService.SetBroadcaster(wsManager)

	reservationService := services.NewReservationService(store, services.LoadReservationConfigFromEnv())
	reservationService.SetCatalog(routeCatalog)
	reservationService.SetBroadcaster(wsManager)
	reservationService.SetDemandEvaluator(demand)

	alertService := services.NewAlertService(store)
	alertService.SetBroadcaster(wsManager)

	tokenService := services.NewDeviceTokenService(store)

	if cacheManager != nil {
		vehicleService.SetCacheManager(cacheManager)
		assignmentService.SetCacheManager(cacheManager)
		demand.SetCacheManager(cacheManager)
	}

	synthesizer := trips.NewSynthesizer(store, trips.LoadConfigFromEnv())
	synthesizer.SetBroadcaster(wsManager)

	var dedup eta.DedupSet = eta.NewMemoryDedupSet()
	if redisClient != nil {
		dedup = eta.NewRedisDedupSet(redisClient.GetClient(), cache.DefaultCacheConfig().KeyPrefix+"eta:")
	}
	notifier := eta.NewThresholdNotifier(store, routeCatalog, dedup, etaConfig)
	notifier.SetDelivery(tasks, newPushNotifier(cfg), tokenService)

	var shapes *routing.ShapeService
	if cfg.GoogleMapsAPIKey != "" {
		shapes, err = routing.NewShapeService(cfg.GoogleMapsAPIKey, routeCatalog)
		if err != nil {
			log.Printf("Route shapes disabled: %v", err)
		} else if cacheManager != nil {
			shapes.SetCacheManager(cacheManager, 0)
		}
	}

	var limiter ratelimit.RateLimiter = ratelimit.NewMemoryRateLimiter(ratelimit.LoadConfigFromEnv())
	if redisClient != nil {
		limiter = ratelimit.NewRedisRateLimiter(redisClient.GetClient(), ratelimit.LoadConfigFromEnv())
	}

	// Background loops
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loops := []*cleanup.Service{
		cleanup.NewService("reservation reaper", cfg.Loops.ReservationReaperInterval, func(ctx context.Context) error {
			_, err := reservationService.ReapExpired(ctx)
			return err
		}),
		cleanup.NewService("trip synthesizer", cfg.Loops.TripSynthInterval, synthesizer.RunOnce),
		cleanup.NewService("arrival notifier", cfg.Loops.ETAInterval, notifier.RunOnce),
	}
	for _, loop := range loops {
		go loop.Start(ctx)
	}

	// Setup Gin router
	router := gin.Default()
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	routes.SetupRoutes(router, routes.Handlers{
		Vehicles:     handlers.NewVehicleHandler(vehicleService),
		Reservations: handlers.NewReservationHandler(reservationService),
		Assignments:  handlers.NewAssignmentHandler(assignmentService),
		Alerts:       handlers.NewAlertHandler(alertService),
		Devices:      handlers.NewDeviceHandler(tokenService),
		Routes:       handlers.NewRouteHandler(routeCatalog, shapes),
		Health:       handlers.NewHealthHandler(store, redisClient, wsManager, tasks),
		WebSocket:    handlers.NewWebSocketHandler(wsManager),
	}, jwtUtil, limiter)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	for _, loop := range loops {
		loop.Stop()
	}
	wsManager.Stop()
	tasks.Stop()
	log.Println("Server exited")
}

// openStore picks the fleet store from STORE_DRIVER.
func openStore(cfg *config.Config) (repository.FleetStore, func()) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Println("Using in-memory fleet store; state is lost on restart")
		return memstore.New(), func() {}
	}

	db, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	return mongostore.New(db), func() {
		if err := database.Disconnect(db.Client()); err != nil {
			log.Printf("Failed to disconnect from MongoDB: %v", err)
		}
	}
}

func newPushNotifier(cfg *config.Config) push.Notifier {
	if cfg.FirebaseProjectID == "" && cfg.FirebaseCredentialsFile == "" {
		log.Println("Push notifications not configured; arrival alerts are logged only")
		return push.LogNotifier{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	notifier, err := push.NewFCMNotifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
	if err != nil {
		log.Printf("Failed to initialize FCM, falling back to log notifier: %v", err)
		return push.LogNotifier{}
	}
	return notifier
}

func corsConfig(origins []string) cors.Config {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Upgrade", "Connection", "Sec-WebSocket-Key", "Sec-WebSocket-Version", "Sec-WebSocket-Protocol"},
		ExposeHeaders: []string{"Content-Length", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Burst"},
	}

	// Handle wildcard origin for development
	if len(origins) == 1 && origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	return corsConfig
}
