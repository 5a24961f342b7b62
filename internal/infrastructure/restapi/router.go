package restapi

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter настраивает и возвращает экземпляр Gin роутера.
func SetupRouter(priceHandler *PriceHandler) *gin.Engine {
	router := gin.Default() // стандартные middleware: Logger, Recovery

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	router.GET("/api", priceHandler.GetAPIIndexHandler)
	router.GET("/price/:tokenAddress", priceHandler.GetPriceHandler)
	router.GET("/value/:tokenAddress/:amount", priceHandler.GetValueHandler)
	router.GET("/quote", priceHandler.GetQuoteHandler)
	router.GET("/tokens", priceHandler.GetTokensHandler)
	router.GET("/currencies", priceHandler.GetCurrenciesHandler)
	router.GET("/health", priceHandler.GetHealthHandler)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger UI поверх статической спецификации
	router.StaticFile("/docs/swagger.yaml", "./docs/swagger.yaml")
	swaggerURL := ginSwagger.URL("/docs/swagger.yaml")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, swaggerURL))

	// Статический фронтенд
	router.StaticFile("/", "./public/index.html")
	router.Static("/public", "./public")

	return router
}
