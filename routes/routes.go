package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"agency-billing-backend/controllers"
	"agency-billing-backend/ledger"
	"agency-billing-backend/middlewares"
	"agency-billing-backend/services"
)

// Options configure route registration.
type Options struct {
	DB        *gorm.DB
	Services  *services.Services
	JWTSecret string
}

// Register wires all HTTP routes.
func Register(app *fiber.App, opts Options) {
	h := controllers.New(opts.Services)
	api := app.Group("/api")

	// Public endpoints
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	api.Post("/webhooks/stripe", h.StripeWebhook)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader(opts.JWTSecret))

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency(opts.DB))

	// Then per-request tenant transaction (commits/rolls back)
	protected.Use(middlewares.TenantTx(opts.DB, opts.Services.Tenants))

	// Tenant
	protected.Get("/tenant", h.GetTenant)
	protected.Put("/tenant", h.UpdateTenant)
	protected.Put("/tenant/plan", h.ChangePlan)
	protected.Get("/tenant/usage/:kind", h.GetUsage)

	// Clients
	protected.Post("/clients", h.CreateClient)
	protected.Get("/clients", h.GetClients)
	protected.Get("/clients/:id", h.GetClient)
	protected.Patch("/clients/:id", h.UpdateClient)

	// Price list
	protected.Post("/services", h.CreateServices) // batch create
	protected.Get("/services", h.GetServices)
	protected.Patch("/services/:id", h.UpdateService)

	// Reports
	protected.Get("/reports/tax", h.GetTaxReport)

	// Payments (invoices only)
	protected.Post("/invoices/:id/payments", h.CreatePayment)
	protected.Get("/invoices/:id/payments", h.ListPayments)
	protected.Delete("/invoices/:id/payments/:paymentId", h.DeletePayment)

	// Proposals and invoices (versioned)
	for _, kind := range []ledger.Kind{ledger.KindProposal, ledger.KindInvoice} {
		docs := protected.Group("/"+string(kind)+"s", controllers.WithKind(kind))
		docs.Post("", h.CreateDocument)
		docs.Get("", h.GetDocuments)
		docs.Get("/:id", h.GetDocument)
		docs.Put("/:id", h.UpdateDocument)
		docs.Delete("/:id", h.DeleteDocument)
		docs.Post("/:id/status", h.ChangeDocumentStatus)
		docs.Get("/:id/versions", h.GetDocumentVersions)
	}
}
