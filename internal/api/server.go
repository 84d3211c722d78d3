package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/larsks/carcontrol/internal/broadcast"
	"github.com/larsks/carcontrol/internal/metrics"
	"github.com/larsks/carcontrol/internal/mqtt"
	"github.com/larsks/carcontrol/internal/pindriver"
	"github.com/larsks/carcontrol/internal/registry"
	"github.com/larsks/carcontrol/internal/store"
	"github.com/larsks/carcontrol/internal/ui"
)

// Server is the control surface: HTTP routes, the websocket push channel
// and the optional MQTT mirror, all driving one switch store.
type Server struct {
	listenAddr      string
	driverName      string
	shutdownTimeout time.Duration

	backend     pindriver.Backend
	store       *store.Store
	broadcaster *broadcast.Broadcaster
	control     *controller
	router      *chi.Mux
	upgrader    websocket.Upgrader

	mqttClient mqtt.Client
	mirror     *mqtt.Mirror

	closing   chan struct{}
	closeOnce sync.Once
}

type serverOptions struct {
	listenAddr      string
	driverName      string
	shutdownTimeout time.Duration
	corsOrigins     []string
	production      bool
}

// NewServer validates the switch table, selects the pin driver and builds
// the server. Every switch is off when it returns.
func NewServer(cfg *Config) (*Server, error) {
	reg, err := registry.Load(cfg.Switches)
	if err != nil {
		return nil, err
	}

	backend, err := pindriver.Open(cfg.Driver, pindriver.Options{Chip: cfg.GPIOChip})
	if err != nil {
		return nil, fmt.Errorf("failed to open pin driver: %w", err)
	}

	b := broadcast.New(cfg.ObserverQueue)
	st, err := store.New(reg, backend, store.Options{
		WriteTimeout: cfg.WriteTimeout,
		Publisher:    b,
	})
	if err != nil {
		backend.Close() //nolint:errcheck
		return nil, err
	}

	s := newServer(st, b, serverOptions{
		listenAddr:      cfg.ListenAddr(),
		driverName:      backend.Name(),
		shutdownTimeout: cfg.ShutdownTimeout,
		corsOrigins:     cfg.CORSOrigins,
		production:      true,
	})
	s.backend = backend

	if cfg.MQTT.Server != "" {
		if err := s.startMirror(cfg.MQTT); err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

// newServer wires the transports to an existing store. Tests call it
// directly with production=false to skip request logging.
func newServer(st *store.Store, b *broadcast.Broadcaster, opts serverOptions) *Server {
	if opts.shutdownTimeout <= 0 {
		opts.shutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		listenAddr:      opts.listenAddr,
		driverName:      opts.driverName,
		shutdownTimeout: opts.shutdownTimeout,
		store:           st,
		broadcaster:     b,
		control:         newController(st),
		router:          chi.NewRouter(),
		closing:         make(chan struct{}),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.corsOrigins),
	}

	s.setupRoutes(opts)
	return s
}

func (s *Server) setupRoutes(opts serverOptions) {
	if opts.production {
		s.router.Use(middleware.Logger)
	}
	s.router.Use(middleware.Recoverer)

	origins := opts.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/healthz", s.healthHandler)
	s.router.Handle("/metrics", metrics.Handler())
	s.router.Get("/ws", s.websocketHandler)

	s.router.Route("/switches", func(r chi.Router) {
		r.Get("/", s.listSwitchesHandler)
		r.Post("/all-off", s.allOffHandler)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.switchStatusHandler)
			r.Post("/toggle", s.toggleHandler)
			r.With(s.validateJSONRequest, s.validateSwitchRequest).Post("/", s.switchHandler)
		})
	})

	page := ui.NewHandler("")
	s.router.Handle("/", page)
	s.router.Handle("/static/*", page)
}

// originChecker applies the CORS origin list to websocket upgrades.
func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[origin] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed[origin] {
			return true
		}
		// Same-origin requests are always allowed.
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}

func (s *Server) startMirror(cfg MQTTConfig) error {
	var mirror *mqtt.Mirror
	ready := make(chan struct{})
	client, err := mqtt.NewClient(mqtt.Config{
		ServerURL: cfg.Server,
		ClientID:  cfg.ClientID,
		Username:  cfg.Username,
		Password:  cfg.Password,
		OnConnect: func() {
			<-ready
			mirror.Resync()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create mqtt client: %w", err)
	}

	mirror = mqtt.NewMirror(client, cfg.TopicPrefix, mqttControl{s.control})
	close(ready)
	s.mqttClient = client
	s.mirror = mirror
	go s.runMirror()
	return nil
}

// runMirror keeps the MQTT mirror subscribed. If it is evicted for falling
// behind it is subscribed again, which resends the full state.
func (s *Server) runMirror() {
	for {
		observer := s.broadcaster.Subscribe("mqtt", s.store, s.mirror)
		select {
		case <-observer.Done():
			s.broadcaster.Unsubscribe(observer)
			log.Printf("mqtt mirror dropped (%v), resubscribing", observer.Err())
		case <-s.closing:
			s.broadcaster.Unsubscribe(observer)
			return
		}

		select {
		case <-s.closing:
			return
		case <-time.After(time.Second):
		}
	}
}

// Handler returns the http handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT or SIGTERM, then shuts down. Every switch is
// driven off before Start returns.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		s.Close()
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}

	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("starting server on %s", listener.Addr())
		serveErr <- srv.Serve(listener)
	}()

	var err error
	select {
	case <-ctx.Done():
		log.Printf("shutting down server")
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			log.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Printf("%v: %v", ErrServerShutdownFailed, shutdownErr)
	}

	if closeErr := s.Shutdown(); closeErr != nil && err == nil {
		err = closeErr
	}

	log.Printf("server stopped")
	return err
}

// Shutdown turns every switch off (within the shutdown timeout), disconnects
// all observers and releases the hardware. It is safe to call more than once.
func (s *Server) Shutdown() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		s.control.stopTimers()

		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err = s.store.Shutdown(ctx); err != nil {
			log.Printf("failed to turn off all switches: %v", err)
		}

		s.broadcaster.Close()

		if s.mqttClient != nil {
			s.mqttClient.Disconnect()
		}
		switch {
		case s.backend == nil:
		case errors.Is(err, context.DeadlineExceeded):
			// Writes are still pending on the backend's pins.
			log.Printf("leaving pin driver open: switches not confirmed off")
		default:
			if closeErr := s.backend.Close(); closeErr != nil {
				log.Printf("failed to close pin driver: %v", closeErr)
			}
		}
	})
	return err
}

// Close is Shutdown without the error.
func (s *Server) Close() {
	s.Shutdown() //nolint:errcheck
}
