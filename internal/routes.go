package internal

import (
	"jobstreak/internal/controllers"
	"jobstreak/internal/providers"
	"jobstreak/internal/structures"
	"net/http"
)

func InitRoutes(apiController *controllers.ApiController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/message", http.HandlerFunc(apiController.Message))
	routers.Get("/stats", http.HandlerFunc(apiController.GetStats))
	routers.Get("/observe", http.HandlerFunc(apiController.Observe))
	routers.Post("/connectivity", http.HandlerFunc(apiController.Connectivity))
	return routers
}
