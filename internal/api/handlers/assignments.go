package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"field-route-service/internal/api/dto"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"field-route-service/internal/services"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// AssignmentHandler runs the assignment engine for one area and date.
type AssignmentHandler struct {
	Repo      ports.ReferenceRepository
	Engine    *services.Engine
	Publisher ports.ResultPublisher
	// Timeout bounds a single run; zero means the request context only.
	Timeout time.Duration

	validate *validator.Validate
}

func NewAssignmentHandler(
	repo ports.ReferenceRepository,
	engine *services.Engine,
	publisher ports.ResultPublisher,
	timeout time.Duration,
) *AssignmentHandler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &AssignmentHandler{
		Repo:      repo,
		Engine:    engine,
		Publisher: publisher,
		Timeout:   timeout,
		validate:  validate,
	}
}

func (h *AssignmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAssignmentsRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	req.Area = strings.TrimSpace(req.Area)
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	mode, err := services.ParseSequenceMode(req.Mode)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	svcReq := services.PlanAssignmentsRequest{Area: req.Area, Date: req.Date, Mode: mode}
	if req.Center != nil {
		svcReq.Center = &domain.Coordinates{Lat: *req.Center.Lat, Lon: *req.Center.Lon}
	}

	ctx := r.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	run, err := services.PlanAssignments(ctx, svcReq, h.Repo, h.Engine, h.Publisher)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoCandidateAgents):
			writeError(w, r, http.StatusUnprocessableEntity, "no candidate agents for area")
		case errors.Is(err, context.DeadlineExceeded):
			slog.WarnContext(r.Context(), "assignment run timed out", "area", req.Area, "date", req.Date, "err", err)
			writeError(w, r, http.StatusGatewayTimeout, "assignment run timed out")
		default:
			slog.ErrorContext(r.Context(), "plan assignments failed", "area", req.Area, "date", req.Date, "err", err)
			writeError(w, r, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, toRunResponse(run))
}

func toRunResponse(run *domain.AssignmentRun) dto.AssignmentRunResponse {
	res := dto.AssignmentRunResponse{
		RunID:           run.RunID,
		Area:            run.Area,
		Date:            run.Date,
		CreatedAt:       run.CreatedAt,
		AgentsNeeded:    run.AgentsNeeded,
		AverageWorkload: run.AverageWorkload,
		Agents:          make([]dto.AgentResponse, 0, len(run.Agents)),
		Visits:          make([]dto.VisitResponse, 0, len(run.Visits)),
		Routes:          make([]dto.RouteResponse, 0, len(run.Routes)),
		Overflow:        nonNil(run.Overflow),
		Unresolved:      nonNil(run.Unresolved),
		Warnings:        nonNil(run.Warnings),
	}

	for _, a := range run.Agents {
		res.Agents = append(res.Agents, dto.AgentResponse{
			AgentID:  a.AgentID,
			Workload: a.Workload,
			Miles:    a.Distance,
			VisitIDs: a.VisitIDs,
		})
	}
	for _, v := range run.Visits {
		res.Visits = append(res.Visits, dto.VisitResponse(v))
	}
	for _, rt := range run.Routes {
		stops := make([]dto.StopResponse, 0, len(rt.Stops))
		for _, s := range rt.Stops {
			stops = append(stops, dto.StopResponse{
				Kind:          string(s.Kind),
				RefID:         s.RefID,
				Sequence:      s.Sequence,
				Lat:           s.Location.Lat,
				Lon:           s.Location.Lon,
				LegMiles:      s.LegMiles,
				TravelMinutes: s.TravelTime.Minutes(),
				VisitIDs:      s.VisitIDs,
				Geometry:      s.Geometry,
			})
		}
		res.Routes = append(res.Routes, dto.RouteResponse{
			AgentID:            rt.AgentID,
			TotalMiles:         rt.TotalMiles,
			TotalTravelMinutes: rt.TotalTravelTime.Minutes(),
			Stops:              stops,
		})
	}

	return res
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
