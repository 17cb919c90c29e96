package routes

import (
	"github.com/gin-gonic/gin"

	"essayhub/internal/authz"
	"essayhub/internal/handlers"
	"essayhub/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	verifyHandler *handlers.VerifyHandler,
	orderHandler *handlers.OrderHandler,
	documentHandler *handlers.DocumentHandler,
	paymentHandler *handlers.PaymentHandler,
) *gin.Engine {

	// ---- public
	r.POST("/login", authHandler.Login)
	r.POST("/refresh", authHandler.RefreshToken)
	r.POST("/register", userHandler.Register)
	r.POST("/register/confirm", verifyHandler.ConfirmUser)
	r.POST("/register/resend", verifyHandler.ResendUser)
	r.POST("/payments/callback", paymentHandler.Callback)

	// ---- protected
	r.Use(middleware.AuthMiddleware())

	// USERS
	users := r.Group("/users")
	{
		users.GET("/", middleware.RequireRoles(authz.RoleAdmin), userHandler.ListUsers)
		users.GET("/count", middleware.RequireRoles(authz.RoleAdmin), userHandler.GetUserCount)
		users.GET("/:id", userHandler.GetUserByID)
		users.POST("/:id/approve", middleware.RequireRoles(authz.RoleAdmin), userHandler.ApproveUser)
		users.DELETE("/:id", middleware.RequireRoles(authz.RoleAdmin), userHandler.DeleteUser)
	}

	// ORDERS
	orders := r.Group("/orders")
	{
		orders.POST("/", middleware.RequireRoles(authz.RoleClient), orderHandler.Create)
		orders.GET("/", orderHandler.List)
		orders.GET("/:id", orderHandler.GetByID)
		orders.DELETE("/:id", middleware.RequireRoles(authz.RoleAdmin), orderHandler.Delete)

		orders.POST("/:id/assign", middleware.RequireRoles(authz.RoleAdmin), orderHandler.Assign)
		orders.POST("/:id/claim", middleware.RequireRoles(authz.RoleWriter), orderHandler.Claim)
		orders.POST("/:id/status", middleware.RequireRoles(authz.RoleWriter, authz.RoleAdmin), orderHandler.UpdateStatus)
		orders.POST("/:id/submit", middleware.RequireRoles(authz.RoleWriter, authz.RoleAdmin), orderHandler.SubmitWork)
		orders.POST("/:id/deliver", middleware.RequireRoles(authz.RoleAdmin), orderHandler.Deliver)

		// payments
		orders.POST("/:id/pay", paymentHandler.Initiate)
		orders.GET("/:id/payment", paymentHandler.Status)

		// submitted document: metadata, bytes, watermarked viewer
		orders.GET("/:id/submission", documentHandler.GetSubmission)
		orders.GET("/:id/submission/file", documentHandler.ServeSubmission)
		orders.GET("/:id/submission/view", documentHandler.ViewSubmission)
	}

	// legacy direct-file path; same decision table as the submission endpoints
	r.GET("/files/:name", documentHandler.ServeByFilename)

	return r
}
