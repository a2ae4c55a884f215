package restserver

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/moonshade/internal/content"
	"github.com/chrissnell/moonshade/internal/log"
	"github.com/chrissnell/moonshade/internal/store"
	"github.com/chrissnell/moonshade/pkg/config"
	"github.com/chrissnell/moonshade/pkg/shading"
)

// Controller represents the REST server controller
type Controller struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	serverConfig config.ServerData
	renderConfig config.RenderData
	Server       http.Server
	Store        store.Store
	Content      *content.Service
	FS           fs.FS
	logger       *zap.SugaredLogger
	handlers     *Handlers

	// DefaultAPIKey is restored on the content service when stored data
	// is cleared
	DefaultAPIKey string

	// texture is used in place of procedural surfaces when configured
	texture shading.Texture
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, sc config.ServerData, rc config.RenderData, st store.Store, cs *content.Service, logger *zap.SugaredLogger) (*Controller, error) {
	if st == nil {
		return nil, fmt.Errorf("REST server requires a store")
	}
	if cs == nil {
		return nil, fmt.Errorf("REST server requires a content service")
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if sc.ListenAddr == "" {
		logger.Info("server.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		sc.ListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if sc.Port == 0 {
		logger.Info("server.port not provided; defaulting to 8080")
		sc.Port = 8080
	}

	if rc.Size <= 0 || rc.Size > shading.MaxSize {
		rc.Size = 400
	}

	ctrl := &Controller{
		ctx:          ctx,
		wg:           wg,
		serverConfig: sc,
		renderConfig: rc,
		Store:        st,
		Content:      cs,
		FS:           GetAssets(),
		logger:       logger,
	}

	if rc.TexturePath != "" {
		tex, err := loadTexture(rc.TexturePath)
		if err != nil {
			return nil, fmt.Errorf("error loading texture: %w", err)
		}
		ctrl.texture = tex
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Info("Starting REST server controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.serverConfig.Cert != "" && c.serverConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.serverConfig.Cert, c.serverConfig.Key); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Handler returns the router, for serving without a listener
func (c *Controller) Handler() http.Handler {
	return c.Server.Handler
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.loggingMiddleware)
	router.Use(c.corsMiddleware)

	router.HandleFunc("/phase", c.handlers.GetPhase).Methods(http.MethodGet)
	router.HandleFunc("/names", c.handlers.GetNames).Methods(http.MethodGet)
	router.HandleFunc("/moon.png", c.handlers.GetMoonPNG).Methods(http.MethodGet)
	router.HandleFunc("/transition.gif", c.handlers.GetTransitionGIF).Methods(http.MethodGet)
	router.HandleFunc("/content", c.handlers.GetContent).Methods(http.MethodGet)

	router.HandleFunc("/history", c.handlers.GetHistory).Methods(http.MethodGet)
	router.HandleFunc("/history", c.handlers.AddHistory).Methods(http.MethodPost)
	router.HandleFunc("/favorites", c.handlers.GetFavorites).Methods(http.MethodGet)
	router.HandleFunc("/favorites", c.handlers.AddFavorite).Methods(http.MethodPost)
	router.HandleFunc("/favorites/{date}", c.handlers.RemoveFavorite).Methods(http.MethodDelete)
	router.HandleFunc("/data", c.handlers.ClearData).Methods(http.MethodDelete)

	router.HandleFunc("/settings", c.handlers.GetSettings).Methods(http.MethodGet)
	router.HandleFunc("/settings/api-key", c.handlers.SetAPIKey).Methods(http.MethodPut)

	router.HandleFunc("/logs/http", c.handlers.GetHTTPLogs).Methods(http.MethodGet)

	router.HandleFunc("/", c.handlers.ServeIndex).Methods(http.MethodGet)
	router.PathPrefix("/").Handler(http.FileServer(http.FS(c.FS)))

	return router
}

// statusRecorder captures what a handler wrote for the request log
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// loggingMiddleware records every request except reads of the request log
// itself
func (c *Controller) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if r.URL.Path == "/logs/http" {
			return
		}
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		log.LogHTTPRequest(log.HTTPLogEntry{
			Timestamp:  start,
			Method:     r.Method,
			Path:       r.URL.RequestURI(),
			Status:     rec.status,
			Duration:   time.Since(start),
			Size:       rec.size,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		}, nil)
	})
}

// corsMiddleware adds CORS headers
func (c *Controller) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
