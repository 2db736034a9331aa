package main

import (
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "platform/api/swagger" // swagger docs
	"platform/internal/auth"
	"platform/internal/cache"
	"platform/internal/database"
	"platform/internal/handler"
	"platform/internal/middleware"
	"platform/internal/repository"
	"platform/internal/service"
	"platform/internal/websocket"
)

// @title           Operations Platform API
// @version         1.0
// @description     Multi-tenant operations API with role-scoped access, cached reads and dashboard metrics.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSslMode := os.Getenv("DB_SSLMODE")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	if dbUser == "" {
		dbUser = "postgres"
	}
	if dbPassword == "" {
		dbPassword = "postgres"
	}
	if dbName == "" {
		dbName = "postgres"
	}
	if dbSslMode == "" {
		dbSslMode = "disable"
	}

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	jwtSecret := middleware.GetJWTSecret()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Scope-keyed read cache
	store := cache.NewMemoryStore()
	readCache := cache.New(store)

	// Set up dependencies (Repository -> Service -> Handler)
	userRepo := repository.NewUserRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	auditSink := service.NewAuditSink(auditRepo)
	gate := auth.NewGate(auditSink)

	accountService := service.NewAccountService(gate, userRepo, readCache, jwtSecret)
	locationService := service.NewLocationService(gate, locationRepo, auditRepo, txManager, readCache)
	catalogService := service.NewCatalogService(gate, catalogRepo, auditRepo, txManager, readCache, wsHub)
	transactionService := service.NewTransactionService(gate, transactionRepo, catalogRepo, auditRepo, txManager, readCache, wsHub)
	dashboardService := service.NewDashboardService(gate, transactionRepo, locationRepo, catalogRepo, readCache)
	auditService := service.NewAuditService(gate, auditRepo)

	// Every API group shares one authn middleware loading the principal
	// fresh per request.
	authn := middleware.RequirePrincipal(userRepo, jwtSecret)

	accountHandler := handler.NewAccountHandler(accountService, authn)
	locationHandler := handler.NewLocationHandler(locationService, authn)
	catalogHandler := handler.NewCatalogHandler(catalogService, authn)
	transactionHandler := handler.NewTransactionHandler(transactionService, authn)
	metricsHandler := handler.NewMetricsHandler(dashboardService, authn)
	auditHandler := handler.NewAuditHandler(auditService, authn)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, jwtSecret)
	})

	// API Routing
	accountHandler.RegisterRoutes(router.Group(""))
	locationHandler.RegisterRoutes(router.Group(""))
	catalogHandler.RegisterRoutes(router.Group(""))
	transactionHandler.RegisterRoutes(router.Group(""))
	metricsHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
