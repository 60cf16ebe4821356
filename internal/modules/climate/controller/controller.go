package controller

import (
	"net/http"

	"climate-api/internal/modules/climate/service"
)

type ClimateController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type climateControllerImpl struct {
	service *service.Service
}

func NewClimateController(service *service.Service) ClimateController {
	return &climateControllerImpl{service: service}
}

func (c *climateControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleIndex)
	mux.HandleFunc("GET /api/v1.0/precipitation", c.handlePrecipitation)
	mux.HandleFunc("GET /api/v1.0/stations", c.handleStations)
	mux.HandleFunc("GET /api/v1.0/tobs", c.handleTobs)
	mux.HandleFunc("GET /api/v1.0/{start}", c.handleTemperatureSummary)
	mux.HandleFunc("GET /api/v1.0/{start}/{end}", c.handleTemperatureSummary)
}
