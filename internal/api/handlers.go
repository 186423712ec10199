package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/iancoleman/orderedmap"

	"github.com/yegors/stand-status/internal/geo"
	"github.com/yegors/stand-status/internal/monitor"
	"github.com/yegors/stand-status/internal/stands"
	"github.com/yegors/stand-status/internal/storage/sqlite"
	"github.com/yegors/stand-status/pkg/logger"
)

// StandService is the part of the monitor the API reads from
type StandService interface {
	Stands() *stands.Status
	Refresh(ctx context.Context) (stands.CycleInfo, error)
	ReloadStands(ctx context.Context) error
	History(ctx context.Context, stand string, limit int) ([]sqlite.OccupancyEvent, error)
	Status() monitor.ServiceStatus
}

// AirportInfo describes the configured airport
type AirportInfo struct {
	ICAO          string  `json:"icao"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	ElevationFeet float64 `json:"elevation_feet"`
}

// Handler contains the API handlers
type Handler struct {
	service StandService
	airport AirportInfo
	logger  *logger.Logger
	now     func() time.Time
}

// NewHandler creates a new API handler
func NewHandler(service StandService, airport AirportInfo, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		airport: airport,
		logger:  log.Named("api-handler"),
		now:     time.Now,
	}
}

type standListResponse struct {
	Stands []stands.Stand   `json:"stands"`
	Count  int              `json:"count"`
	Cycle  stands.CycleInfo `json:"cycle"`
}

type keyedStandResponse struct {
	Stands *orderedmap.OrderedMap `json:"stands"`
	Count  int                    `json:"count"`
	Cycle  stands.CycleInfo       `json:"cycle"`
}

// writeStands renders a stand list, or a name-keyed object in the same order with ?keyed=true
func (h *Handler) writeStands(w http.ResponseWriter, r *http.Request, list []stands.Stand) {
	cycle := h.service.Stands().LastCycle()

	if keyed, _ := strconv.ParseBool(r.URL.Query().Get("keyed")); keyed {
		m := orderedmap.New()
		for _, st := range list {
			m.Set(st.Name(), st)
		}
		WriteJSON(w, http.StatusOK, keyedStandResponse{Stands: m, Count: len(list), Cycle: cycle})
		return
	}

	if list == nil {
		list = []stands.Stand{}
	}
	WriteJSON(w, http.StatusOK, standListResponse{Stands: list, Count: len(list), Cycle: cycle})
}

// GetStands returns the display list, hiding group sides when configured
func (h *Handler) GetStands(w http.ResponseWriter, r *http.Request) {
	h.writeStands(w, r, h.service.Stands().Stands())
}

// GetAllStands returns every loaded stand
func (h *Handler) GetAllStands(w http.ResponseWriter, r *http.Request) {
	h.writeStands(w, r, h.service.Stands().AllStands())
}

// GetOccupiedStands returns the occupied stands of the display list
func (h *Handler) GetOccupiedStands(w http.ResponseWriter, r *http.Request) {
	h.writeStands(w, r, h.service.Stands().OccupiedStands())
}

// GetUnoccupiedStands returns the free stands of the display list
func (h *Handler) GetUnoccupiedStands(w http.ResponseWriter, r *http.Request) {
	h.writeStands(w, r, h.service.Stands().UnoccupiedStands())
}

// GetStand returns one stand and the other members of its group
func (h *Handler) GetStand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status := h.service.Stands()
	stand, ok := status.Stand(id)
	if !ok {
		writeError(w, http.StatusNotFound, "stand not found")
		return
	}

	group := status.Group(id)
	if group == nil {
		group = []stands.Stand{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"stand": stand,
		"group": group,
	})
}

// GetStandHistory returns the stored occupancy events of a stand
func (h *Handler) GetStandHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, ok := h.service.Stands().Stand(id); !ok {
		writeError(w, http.StatusNotFound, "stand not found")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := h.service.History(r.Context(), id, limit)
	if errors.Is(err, monitor.ErrHistoryDisabled) {
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Failed to read stand history", logger.Error(err), logger.String("stand", id))
		writeError(w, http.StatusInternalServerError, "failed to read stand history")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"stand":  id,
		"events": events,
		"count":  len(events),
	})
}

// GetAircraft returns the candidate aircraft of the latest cycle
func (h *Handler) GetAircraft(w http.ResponseWriter, r *http.Request) {
	aircraft := h.service.Stands().AllAircraft()
	if aircraft == nil {
		aircraft = []stands.Aircraft{}
	}

	if onStand, _ := strconv.ParseBool(r.URL.Query().Get("on_stand")); onStand {
		filtered := make([]stands.Aircraft, 0, len(aircraft))
		for _, a := range aircraft {
			if a.OnStand() {
				filtered = append(filtered, a)
			}
		}
		aircraft = filtered
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"aircraft": aircraft,
		"count":    len(aircraft),
	})
}

// GetStatus returns the monitor status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.service.Status())
}

// GetAirport returns the airport reference point, the active options and the
// current magnetic variation.
func (h *Handler) GetAirport(w http.ResponseWriter, r *http.Request) {
	opts := h.service.Stands().Options()

	WriteJSON(w, http.StatusOK, map[string]any{
		"airport":            h.airport,
		"magnetic_variation": geo.MagneticVariation(h.airport.Latitude, h.airport.Longitude, h.airport.ElevationFeet, h.now()),
		"options": map[string]any{
			"max_stand_distance_km":          opts.MaxStandDistance,
			"hide_stand_sides_when_occupied": opts.HideStandSidesWhenOccupied,
			"max_distance_from_airport_km":   opts.MaxDistanceFromAirport,
			"max_aircraft_altitude_ft":       opts.MaxAircraftAltitude,
			"max_aircraft_groundspeed_kts":   opts.MaxAircraftGroundspeed,
			"stand_extensions":               opts.StandExtensions,
			"stand_extension_pattern":        opts.StandExtensionPattern,
		},
	})
}

// Refresh runs a cycle immediately
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.service.Refresh(r.Context())
	if errors.Is(err, stands.ErrNoStandData) {
		writeError(w, http.StatusConflict, "no stand data loaded")
		return
	}
	if err != nil {
		h.logger.Error("Manual refresh failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	WriteJSON(w, http.StatusOK, cycle)
}

// ReloadStands reloads the stand source
func (h *Handler) ReloadStands(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ReloadStands(r.Context()); err != nil {
		h.logger.Error("Stand reload failed", logger.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"stands_loaded": h.service.Stands().Count(),
	})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
