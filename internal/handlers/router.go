package handlers

import (
	"net/http"
	"strings"

	"flightbooking/internal/config"
	"flightbooking/internal/middleware"
	"flightbooking/internal/models"
	"flightbooking/internal/validator"
	"flightbooking/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Handler struct {
	cfg      config.Config
	log      *zap.Logger
	validate *validator.Validator
	accounts AccountService
	flights  FlightService
	bookings BookingService
	messages MessageService
	realtime *websocket.Endpoint
}

func New(cfg config.Config, log *zap.Logger, accounts AccountService, flights FlightService, bookings BookingService, messages MessageService, hub *websocket.Hub) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		cfg:      cfg,
		log:      log,
		validate: validator.New(),
		accounts: accounts,
		flights:  flights,
		bookings: bookings,
		messages: messages,
		realtime: websocket.NewEndpoint(hub, allowedOrigins(cfg.AllowedOrigins), log.Named("ws")),
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(h.log))
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := middleware.Auth(h.cfg.JWTSecret)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authenticate).Post("/logout", h.Logout)
		r.With(authenticate).Get("/me", h.Me)
	})

	router.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/profile", h.Me)
		r.Put("/profile", h.UpdateProfile)
		r.Get("/transactions", h.ListTransactions)
		r.Post("/messages", h.SendMessage)
		r.Get("/messages", h.ListMessages)
	})

	router.Route("/company", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.RequireUserType(models.UserTypeCompany))
		r.Post("/flights", h.AddFlight)
		r.Get("/flights", h.ListCompanyFlights)
		r.Get("/flights/{id}", h.CompanyFlightDetails)
		r.Put("/flights/{id}", h.UpdateFlight)
		r.Post("/flights/{id}/cancel", h.CancelFlight)
		r.Post("/flights/{id}/complete", h.CompleteFlight)
		r.Post("/bookings/{id}/cancel", h.CancelBooking)
	})

	router.Route("/passenger", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.RequireUserType(models.UserTypePassenger))
		r.Get("/flights/search", h.SearchFlights)
		r.Get("/flights/{id}", h.PassengerFlightInfo)
		r.Post("/flights/{id}/book", h.BookFlight)
		r.Get("/bookings", h.ListPassengerBookings)
		r.Post("/bookings/{id}/cancel", h.CancelBooking)
	})

	router.Get("/ws", h.ServeRealtime)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

func allowedOrigins(raw string) []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
