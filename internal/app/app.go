package app

import (
	"database/sql"
	"fmt"
	"log"

	"essayhub/internal/config"
	"essayhub/internal/convert"
	"essayhub/internal/handlers"
	"essayhub/internal/middleware"
	"essayhub/internal/payments"
	"essayhub/internal/pdf"
	"essayhub/internal/repositories"
	"essayhub/internal/routes"
	"essayhub/internal/services"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "essayhub/docs"
)

func Run() {
	cfg := config.LoadConfig()
	middleware.SetJWTKey(cfg.JWT.Secret)

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("db connect failed: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("db close failed: %v", err)
		}
	}()

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	verifRepo := repositories.NewVerificationRepository(db)

	// === Services ===
	authService := services.NewAuthService()
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)
	telegramService := services.NewTelegramService(cfg.Telegram.BotToken, cfg.Telegram.AdminChatID)

	pdfGen := pdf.NewDocumentGenerator(cfg.Files.RootDir)
	converter := convert.NewDocumentConverter(cfg.Files.RootDir, pdfGen)

	userService := services.NewUserService(userRepo, emailService, authService)
	verificationService := services.NewVerificationService(verifRepo, userRepo, emailService)
	orderService := services.NewOrderService(orderRepo, userRepo, converter, emailService, telegramService, cfg.Files.RootDir)
	documentService := services.NewDocumentService(orderRepo, cfg.Files.RootDir)

	mpesaClient := payments.NewClient(
		cfg.Mpesa.BaseURL,
		cfg.Mpesa.ConsumerKey,
		cfg.Mpesa.Secret,
		cfg.Mpesa.ShortCode,
		cfg.Mpesa.Passkey,
		cfg.Mpesa.CallbackURL,
		cfg.Mpesa.DryRun,
	)
	paymentService := services.NewPaymentService(
		orderRepo, userRepo, mpesaClient, emailService, telegramService, pdfGen,
		cfg.Mpesa.DryRun, // dry gateway never calls back, so simulate confirmation
	)

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(userService, authService)
	userHandler := handlers.NewUserHandler(userService, verificationService)
	verifyHandler := handlers.NewVerifyHandler(verificationService)
	orderHandler := handlers.NewOrderHandler(orderService, cfg.Files.RootDir)
	documentHandler := handlers.NewDocumentHandler(documentService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)

	// === Gin ===
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(
		router,
		authHandler,
		userHandler,
		verifyHandler,
		orderHandler,
		documentHandler,
		paymentHandler,
	)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("server listening on %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("server failed: ", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
