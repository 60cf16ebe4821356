package climate

import (
	"database/sql"
	"log/slog"
	"net/http"

	"climate-api/internal/config"
	"climate-api/internal/modules/climate/controller"
	"climate-api/internal/modules/climate/repository"
	"climate-api/internal/modules/climate/service"
)

func RegisterFeature(mux *http.ServeMux, db *sql.DB, cfg config.Config, logger *slog.Logger) {
	climateRepository := repository.WithBreaker(
		repository.NewRepository(db, cfg.Driver),
		repository.BreakerSettings{MaxFailures: cfg.BreakerMaxFailures, OpenTimeout: cfg.BreakerOpenTimeout},
		logger,
	)
	climateService := service.NewService(climateRepository, service.Window{Reference: cfg.ReferenceDate, Days: cfg.TrailingDays})
	climateController := controller.NewClimateController(climateService)
	climateController.RegisterRoutes(mux)
}
