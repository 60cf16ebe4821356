package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"climate-api/internal/modules/climate/types"
	"climate-api/internal/utils"
)

const indexText = "Available Routes:\n" +
	"/api/v1.0/precipitation\n" +
	"/api/v1.0/stations\n" +
	"/api/v1.0/tobs\n" +
	"/api/v1.0/<start>\n" +
	"/api/v1.0/<start>/<end>\n"

func (c *climateControllerImpl) handleIndex(w http.ResponseWriter, r *http.Request) {
	utils.WriteText(w, http.StatusOK, indexText)
}

func (c *climateControllerImpl) handlePrecipitation(w http.ResponseWriter, r *http.Request) {
	byDate, err := c.service.Precipitation(r.Context())
	if err != nil {
		writeServiceError(w, r, "precipitation", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, byDate)
}

func (c *climateControllerImpl) handleStations(w http.ResponseWriter, r *http.Request) {
	ids, err := c.service.StationIDs(r.Context())
	if err != nil {
		writeServiceError(w, r, "stations", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ids)
}

func (c *climateControllerImpl) handleTobs(w http.ResponseWriter, r *http.Request) {
	station, tobs, err := c.service.MostActiveTemperatures(r.Context())
	if err != nil {
		writeServiceError(w, r, "tobs", err)
		return
	}
	slog.Debug("tobs: most active station", "station", station, "observations", len(tobs))
	utils.WriteJSON(w, http.StatusOK, tobs)
}

func (c *climateControllerImpl) handleTemperatureSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := c.service.TemperatureSummary(r.Context(), r.PathValue("start"), r.PathValue("end"))
	if err != nil {
		writeServiceError(w, r, "temperature summary", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}

// writeServiceError maps service errors onto status codes. Store failures
// are logged; the client only sees a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidDate):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNoRows):
		utils.WriteError(w, http.StatusNotFound, "no matching measurements")
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn(op+": request timed out", "path", r.URL.Path, "error", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "request timed out")
	case errors.Is(err, types.ErrStoreUnavailable), errors.Is(err, context.Canceled):
		slog.Error(op+": data store unavailable", "path", r.URL.Path, "error", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "data store unavailable")
	default:
		slog.Error(op+" failed", "path", r.URL.Path, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
