package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"conduit-backend/infrastructure/config"
	"conduit-backend/infrastructure/persistence/abstractions"
	"conduit-backend/interfaces/http/rest/handlers"
	"conduit-backend/interfaces/http/rest/middleware"
	"conduit-backend/pkg/auth"
)

// Router creates and configures the HTTP router
type Router struct {
	cfg      *config.Config
	store    abstractions.GraphStore
	projects abstractions.ProjectStore
	tools    abstractions.ToolStore
	minter   *auth.TokenMinter
	limiter  auth.RateLimiter
	logger   *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	cfg *config.Config,
	store abstractions.GraphStore,
	projects abstractions.ProjectStore,
	tools abstractions.ToolStore,
	minter *auth.TokenMinter,
	limiter auth.RateLimiter,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:      cfg,
		store:    store,
		projects: projects,
		tools:    tools,
		minter:   minter,
		limiter:  limiter,
		logger:   logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.conduit.dev"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Post("/echo", rt.echo)

	router.Route("/api/v1", func(r chi.Router) {
		projectHandler := handlers.NewProjectHandler(rt.projects, rt.logger)
		graphHandler := handlers.NewGraphHandler(rt.store, rt.projects, rt.logger)
		nodeHandler := handlers.NewNodeHandler(rt.store, rt.logger)
		edgeHandler := handlers.NewEdgeHandler(rt.store, rt.logger)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", projectHandler.CreateProject)
			r.Get("/", projectHandler.ListProjects)
			r.Get("/{projectID}", projectHandler.GetProject)
			r.Delete("/{projectID}", projectHandler.DeleteProject)

			r.Get("/{projectID}/graph", graphHandler.GetGraph)
			r.Put("/{projectID}/graph", graphHandler.SaveGraph)

			r.Post("/{projectID}/nodes", nodeHandler.CreateNode)
			r.Post("/{projectID}/edges", edgeHandler.CreateEdge)
		})

		r.Route("/nodes", func(r chi.Router) {
			r.Patch("/{nodeID}", nodeHandler.UpdateNode)
			r.Delete("/{nodeID}", nodeHandler.DeleteNode)
		})

		r.Route("/edges", func(r chi.Router) {
			r.Patch("/{edgeID}", edgeHandler.UpdateEdge)
			r.Delete("/{edgeID}", edgeHandler.DeleteEdge)
		})

		r.Route("/tools", func(r chi.Router) {
			toolHandler := handlers.NewToolHandler(rt.tools, rt.logger)
			r.Post("/", toolHandler.CreateTool)
			r.Get("/", toolHandler.ListTools)
			r.Get("/{toolID}", toolHandler.GetTool)
			r.Put("/{toolID}", toolHandler.UpdateTool)
			r.Delete("/{toolID}", toolHandler.DeleteTool)
		})

		// Voice session bootstrap; rate limited per client IP.
		r.Route("/connect", func(r chi.Router) {
			r.Use(middleware.RateLimit(rt.limiter, rt.cfg.ConnectRateLimit, rt.logger))
			connectHandler := handlers.NewConnectHandler(rt.minter, rt.projects, rt.cfg.LiveKitURL, rt.logger)
			r.Post("/", connectHandler.Connect)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// echo reflects the posted JSON body, for connectivity smoke tests
func (rt *Router) echo(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
	if err != nil || !json.Valid(body) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
