package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/paulexconde/questflow/internal/handlers"
	"github.com/paulexconde/questflow/internal/middleware"
)

type RouterConfig struct {
	FlowHandler          *handlers.FlowHandler
	QuestionnaireHandler *handlers.QuestionnaireHandler
	AllowOrigins         []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(middleware.RequestID())

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		flow := api.Group("/flow")
		flow.POST("/save", cfg.FlowHandler.SaveFlow)
		flow.GET("/:questionnaireTypeId", cfg.FlowHandler.GetFlow)
		flow.DELETE("/:questionnaireTypeId", cfg.FlowHandler.DeleteFlow)
		flow.GET("/:questionnaireTypeId/reference-tables", cfg.FlowHandler.GetReferenceTables)
		flow.GET("/:questionnaireTypeId/reference-table-metadata", cfg.FlowHandler.GetReferenceTableMetadata)

		questionnaire := api.Group("/questionnaire")
		questionnaire.GET("/types", cfg.QuestionnaireHandler.ListTypes)
		questionnaire.GET("/schema/:typeCode", cfg.QuestionnaireHandler.GetSchema)
	}

	return router
}
