package providers

import (
	"jobstreak/internal/structures"
	"net/http"
	"slices"
	"strings"
)

type RouterProviderInterface interface {
	Get(url string, handler http.Handler)
	Post(url string, handler http.Handler)
	Handle(url string, handler http.Handler, methods ...string)
	GetRoutes() []structures.Route
}

type RouterProvider struct {
	routes []structures.Route
}

func (rp *RouterProvider) Get(url string, handler http.Handler) {
	rp.Handle(url, handler, http.MethodGet, http.MethodHead)
}

func (rp *RouterProvider) Post(url string, handler http.Handler) {
	rp.Handle(url, handler, http.MethodPost)
}

// Handle registers handler for url restricted to methods; no methods means any method.
func (rp *RouterProvider) Handle(url string, handler http.Handler, methods ...string) {
	if len(methods) > 0 {
		handler = methodHandler(methods, handler)
	}
	rp.routes = append(rp.routes, structures.Route{
		Url:     url,
		Methods: methods,
		Handler: handler,
	})
}

func (rp *RouterProvider) GetRoutes() []structures.Route {
	return rp.routes
}

func NewRouterProvider() RouterProviderInterface {
	return &RouterProvider{}
}

func methodHandler(methods []string, handler http.Handler) http.Handler {
	allow := strings.Join(methods, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !slices.Contains(methods, r.Method) {
			w.Header().Set("Allow", allow)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
