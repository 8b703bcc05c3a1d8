package main

import (
	"fmt"
	"log"
	"os"

	_ "clinic_queue/docs"
	"clinic_queue/internal/auth"
	"clinic_queue/internal/handlers"
	"clinic_queue/internal/models"
	"clinic_queue/internal/storage"
	"clinic_queue/internal/tasks"
	"clinic_queue/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @Title						Электронная очередь клиники
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	key := os.Getenv("ENV_CHEK")
	if key == "" {
		fmt.Println("Подключение к .env")
		err := godotenv.Load()
		if err != nil {
			log.Fatal("Ошибка получения .env")
		}
	}

	storage.ConnectDatabase()

	if err := storage.DB.AutoMigrate(
		&models.User{},
		&models.Clinic{},
		&models.Patient{},
		&models.Queue{},
		&models.QueueEntry{},
		&models.QueueStat{},
	); err != nil {
		log.Fatal("Ошибка при миграции... ", err.Error())
	}

	storage.InitRedis()

	tasks.InitScheduler()

	go ws.HubInstance.Run()

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", handlers.Login)
		authGroup.POST("/register", handlers.Register)
		authGroup.POST("/refresh", handlers.RefreshToken)
	}

	// Публичные чтения: табло и терминалы пациентов.
	r.GET("/api/queues/:id/status", handlers.GetQueueStatusHandler)
	r.GET("/api/queues/:id/estimate", handlers.GetEstimateHandler)
	r.GET("/api/queues/:id/ws", ws.QueueWebSocketHandler)
	r.GET("/api/patients/:id/entries", handlers.GetPatientEntriesHandler)

	api := r.Group("/api", auth.AuthMiddleware())
	{
		api.POST("/clinics", handlers.CreateClinicHandler)
		api.POST("/clinics/:id/queues", handlers.CreateQueueHandler)
		api.GET("/clinics/:id/queues", handlers.ListQueuesHandler)
		api.PATCH("/queues/:id/status", handlers.UpdateQueueStatusHandler)
		api.POST("/patients", handlers.CreatePatientHandler)

		api.POST("/queues/:id/join", handlers.JoinQueueHandler)
		api.POST("/queues/:id/call", handlers.CallNextHandler)
		api.POST("/entries/:id/complete", handlers.CompleteHandler)
		api.POST("/entries/:id/move", handlers.MoveEntryHandler)
		api.POST("/entries/:id/remove", handlers.RemoveEntryHandler)
		api.POST("/entries/:id/cancel", handlers.CancelEntryHandler)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Ошибка запуска сервера...", err.Error())
	}
}
