package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vigia.dev/patroltrack/internal/store"
	"vigia.dev/patroltrack/internal/util"
)

type LocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
	Speed     *float64 `json:"speed"`
}

type ActiveUnitsResponse struct {
	Success bool               `json:"success"`
	Count   int                `json:"count"`
	Units   []store.ActiveUnit `json:"units"`
}

type RouteResponse struct {
	Success bool           `json:"success"`
	Count   int            `json:"count"`
	Route   []store.Sample `json:"route"`
}

type StatsResponse struct {
	Success bool        `json:"success"`
	Stats   store.Stats `json:"stats"`
}

// SaveLocation is the ingestion write path. It persists and acknowledges;
// the reporting client emits the stream event only after this ack, which
// keeps the durable write ahead of the broadcast.
func (api *Api) SaveLocation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	req_body := LocationRequest{}
	err := json.NewDecoder(r.Body).Decode(&req_body)
	if err != nil {
		util.JsonError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	err = api.vld.Struct(req_body)
	if err != nil {
		util.JsonError(w, http.StatusBadRequest, "latitude and longitude are required", "")
		return
	}
	speed := 0.0
	if req_body.Speed != nil {
		speed = *req_body.Speed
	}
	util.Pan1c(api.locs.Append(r.Context(), claims.PrincipalId, *req_body.Latitude, *req_body.Longitude, speed))
	api.log.Debug().Str("employee_number", claims.EmployeeNumber).
		Float64("lat", *req_body.Latitude).Float64("lon", *req_body.Longitude).Msg("location saved")
	util.JsonWrite(w, BasicResponse{Success: true, Message: "location saved"})
}

func (api *Api) ActiveUnits(w http.ResponseWriter, r *http.Request) {
	cutoff := time.Now().Add(-api.config.StalenessWindow)
	units, err := api.locs.LatestActive(r.Context(), store.RolePatrol, cutoff)
	util.Pan1c(err)
	util.JsonWrite(w, ActiveUnitsResponse{Success: true, Count: len(units), Units: units})
}

func (api *Api) Route(w http.ResponseWriter, r *http.Request) {
	principalId, err := strconv.ParseUint(chi.URLParam(r, "principalId"), 10, 64)
	if err != nil {
		util.JsonError(w, http.StatusBadRequest, "invalid principal id", "")
		return
	}
	q := r.URL.Query()
	now := time.Now()
	var from, to time.Time
	if q.Get("start") != "" && q.Get("end") != "" {
		from, err = time.Parse(time.RFC3339, q.Get("start"))
		if err != nil {
			util.JsonError(w, http.StatusBadRequest, "invalid start time", "")
			return
		}
		to, err = time.Parse(time.RFC3339, q.Get("end"))
		if err != nil {
			util.JsonError(w, http.StatusBadRequest, "invalid end time", "")
			return
		}
	} else if q.Get("hours") != "" {
		hours, err := strconv.Atoi(q.Get("hours"))
		if err != nil || hours <= 0 {
			util.JsonError(w, http.StatusBadRequest, "invalid hours", "")
			return
		}
		from, to = now.Add(-time.Duration(hours)*time.Hour), now
	} else {
		from, to = now.Add(-api.config.RouteLookback), now
	}

	route, err := api.locs.Range(r.Context(), principalId, from, to)
	util.Pan1c(err)
	util.JsonWrite(w, RouteResponse{Success: true, Count: len(route), Route: route})
}

func (api *Api) Stats(w http.ResponseWriter, r *http.Request) {
	principalId, err := strconv.ParseUint(chi.URLParam(r, "principalId"), 10, 64)
	if err != nil {
		util.JsonError(w, http.StatusBadRequest, "invalid principal id", "")
		return
	}
	stats, err := api.locs.Stats(r.Context(), principalId, time.Now().Add(-api.config.RouteLookback))
	util.Pan1c(err)
	util.JsonWrite(w, StatsResponse{Success: true, Stats: stats})
}
