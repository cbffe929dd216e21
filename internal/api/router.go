package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"wassist-backend/internal/config"
	"wassist-backend/internal/handlers"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	ConversationHandlers   *handlers.ConversationHandlers
	RuleHandlers           *handlers.RuleHandlers
	AnalyticsHandlers      *handlers.AnalyticsHandlers
	CredentialsHandlers    *handlers.CredentialsHandlers
	WhatsAppWebhookHandler *handlers.WhatsAppWebhookHandlers
	WidgetHandlers         *handlers.WidgetHandlers
	Config                 *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173", "https://*.vercel.app"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Org-ID", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Cloud API webhook: must be public for Meta to deliver events. The
	// signature check inside the handler secures it.
	r.Route("/whatsapp-webhook", func(r chi.Router) {
		r.Get("/{orgID}", deps.WhatsAppWebhookHandler.HandleVerify)
		r.Post("/{orgID}", deps.WhatsAppWebhookHandler.HandleEvent)
	})

	// Embeddable widget websocket: end users are anonymous, identified only
	// by their session id.
	r.Get("/widget/ws", deps.WidgetHandlers.HandleWebsocket)

	// --- Authenticated Routes ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(deps.Config.JWTSecret, deps.Config.OperatorAPIKeyHash))

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", deps.ConversationHandlers.HandleListConversations)
			r.Get("/thread", deps.ConversationHandlers.HandleGetThread)
			r.Post("/send", deps.ConversationHandlers.HandleSendManualMessage)
			r.Patch("/messages/{messageID}", deps.ConversationHandlers.HandleEnrichMessage)
			r.Post("/delete", deps.ConversationHandlers.HandleDeleteConversations)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Post("/", deps.RuleHandlers.HandleCreateRule)
			r.Get("/", deps.RuleHandlers.HandleListRules)
			r.Get("/{ruleID}", deps.RuleHandlers.HandleGetRule)
			r.Put("/{ruleID}", deps.RuleHandlers.HandleUpdateRule)
			r.Patch("/{ruleID}/status", deps.RuleHandlers.HandleUpdateRuleStatus)
			r.Delete("/{ruleID}", deps.RuleHandlers.HandleDeleteRule)
		})

		r.Get("/analytics", deps.AnalyticsHandlers.HandleGetAnalytics)

		r.Route("/channels/whatsapp", func(r chi.Router) {
			r.Put("/", deps.CredentialsHandlers.HandleSetWhatsAppCredential)
			r.Get("/", deps.CredentialsHandlers.HandleGetWhatsAppCredential)
		})
	})

	return r
}
