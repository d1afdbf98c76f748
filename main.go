package main

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"bus-attendance-server-go/cache"
	"bus-attendance-server-go/config"
	"bus-attendance-server-go/handlers"
	"bus-attendance-server-go/history"
	"bus-attendance-server-go/ledger"
	"bus-attendance-server-go/roster"
	"bus-attendance-server-go/store"
)

func main() {
	cfg := config.Load()

	st, err := store.Open(cfg.DataFile)
	if err != nil {
		log.Fatalf("Failed to open attendance workbook: %v", err)
	}

	registry := roster.New(st)
	if err := registry.Provision(cfg.Routes); err != nil {
		log.Fatalf("Failed to provision routes: %v", err)
	}
	led := ledger.New(st)
	reconciler := ledger.NewReconciler(led)
	historyService := history.New(registry, led)

	var summaryCache cache.SummaryCache = cache.Noop{}
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedis(cfg.RedisAddr)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		summaryCache = redisCache
	}

	apiHandler := handlers.NewAPIHandler(registry, led, reconciler, historyService, summaryCache)

	router := gin.Default()
	router.Use(cors.Default())

	api := router.Group("/api")
	{
		// Route and roster
		api.GET("/routes", apiHandler.GetRoutes)
		api.GET("/routes/:routeName/students", apiHandler.GetRouteStudents)
		api.GET("/routes/:routeName/archived", apiHandler.GetArchivedStudents)
		api.GET("/students", apiHandler.GetAllStudents)
		api.POST("/students", apiHandler.AddStudent)
		api.POST("/students/:studentId/archive", apiHandler.ArchiveStudent)
		api.POST("/students/:studentId/restore", apiHandler.RestoreStudent)

		// Attendance
		api.GET("/attendance/:routeName/:date", apiHandler.GetRouteAttendance)
		api.POST("/attendance", apiHandler.SaveAttendance)

		// History
		api.GET("/history/student/:studentId", apiHandler.GetStudentHistory)
		api.GET("/history/date/:date", apiHandler.GetDateHistory)

		// Offline sync
		api.POST("/sync", apiHandler.SyncOfflineData)

		// Utility
		api.GET("/nepali-date", apiHandler.GetNepaliDate)
		api.GET("/ping", handlers.PingHandler)
	}

	log.Printf("Starting server on port %s (workbook: %s)", cfg.Port, st.Path())
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
