package server

import (
	"strings"
	"time"

	"flockkeeper-backend/internal/apperr"
	"flockkeeper-backend/internal/audit"
	"flockkeeper-backend/internal/auth"
	"flockkeeper-backend/internal/batch"
	"flockkeeper-backend/internal/batchevent"
	"flockkeeper-backend/internal/config"
	"flockkeeper-backend/internal/dashboard"
	"flockkeeper-backend/internal/expense"
	"flockkeeper-backend/internal/flockevent"
	"flockkeeper-backend/internal/logger"
	"flockkeeper-backend/internal/mirror"
	"flockkeeper-backend/internal/mortality"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps carries what the HTTP surface is built from. Store defaults to the
// gorm-backed mirror store on DB.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	Runner *mirror.Runner
	Store  mirror.Store
}

// New assembles the fiber app with middleware and every route.
func New(d Deps) *fiber.App {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	store := d.Store
	if store == nil {
		store = mirror.NewGormStore(d.DB)
	}
	runner := d.Runner
	if runner == nil {
		runner = mirror.NewRunner(logger.Named(log, "mirror"), d.Config.SideEffectTimeout)
	}
	m := mirror.New(store, runner)

	batchSvc := batch.NewService(d.DB, m, logger.Named(log, "svc.batch"))
	eventSvc := batchevent.NewService(d.DB, m, logger.Named(log, "svc.batchevent"))
	mortalitySvc := mortality.NewService(d.DB, runner, logger.Named(log, "svc.mortality"))

	app := fiber.New(fiber.Config{
		AppName:      "flockkeeper",
		ErrorHandler: apperr.ErrorHandler(logger.Named(log, "http")),
	})

	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))
	// accessLog wraps recover so recovered panics are logged with their 500.
	app.Use(accessLog(logger.Named(log, "http.access")))
	app.Use(recover.New())

	corsOrigins := strings.Split(d.Config.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register", auth.RegisterHandler(d.DB))
	api.Post("/auth/login", auth.LoginHandler(d.DB, d.Config.JWTSecret, d.Config.TokenTTL))

	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(d.Config.JWTSecret))

	protected.Get("/auth/me", auth.MeHandler(d.DB))

	// Batches
	protected.Get("/batches", batch.ListBatchesHandler(batchSvc))
	protected.Get("/batches/:id", batch.GetBatchHandler(batchSvc))
	protected.Post("/batches", batch.CreateBatchHandler(batchSvc))
	protected.Put("/batches/:id", batch.UpdateBatchHandler(batchSvc))
	protected.Delete("/batches/:id", batch.DeactivateBatchHandler(batchSvc))

	// Batch timeline
	protected.Get("/batch-events", batchevent.ListEventsHandler(eventSvc))
	protected.Get("/batch-events/:id", batchevent.GetEventHandler(eventSvc))
	protected.Post("/batch-events", batchevent.CreateEventHandler(eventSvc))
	protected.Put("/batch-events/:id", batchevent.UpdateEventHandler(eventSvc))
	protected.Delete("/batch-events/:id", batchevent.DeleteEventHandler(eventSvc))

	// Mortality
	protected.Get("/death-records", mortality.ListDeathRecordsHandler(mortalitySvc))
	protected.Get("/death-records/:id", mortality.GetDeathRecordHandler(mortalitySvc))
	protected.Post("/death-records", mortality.CreateDeathRecordHandler(mortalitySvc))
	protected.Put("/death-records/:id", mortality.UpdateDeathRecordHandler(mortalitySvc))
	protected.Delete("/death-records/:id", mortality.DeleteDeathRecordHandler(mortalitySvc))

	// Read sides
	protected.Get("/flock-events", flockevent.ListFlockEventsHandler(d.DB))
	protected.Get("/expenses", expense.ListExpensesHandler(d.DB))
	protected.Get("/expenses/summary/monthly", expense.MonthlyExpenseSummaryHandler(d.DB))
	protected.Get("/audit-logs", audit.ListAuditLogsHandler(d.DB))

	// Dashboard
	protected.Get("/dashboard/flock-summary", dashboard.FlockSummaryHandler(d.DB))
	protected.Get("/dashboard/mortality-chart", dashboard.MortalityChartHandler(d.DB))

	return app
}

// accessLog renders chain errors itself so the logged status is the one
// the client sees.
func accessLog(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		rid, _ := c.Locals("requestid").(string)
		log.Info("http request",
			zap.String("request_id", rid),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Int("bytes", len(c.Response().Body())),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}
}
