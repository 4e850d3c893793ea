package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/star/searoute/internal/fleet"
	"github.com/star/searoute/internal/panels"
	"github.com/star/searoute/internal/planner"
	"github.com/star/searoute/internal/route"
	"github.com/star/searoute/internal/simclock"
	"github.com/star/searoute/internal/stats"
	"github.com/star/searoute/internal/stream"
	"github.com/star/searoute/internal/tracker"
	"github.com/star/searoute/internal/traffic"
)

// shipView is one ship in a positions response. Trail points are [lat, lon].
type shipView struct {
	fleet.ShipPosition
	Trail [][2]float64 `json:"trail"`
}

type positionsResponse struct {
	SimulationTime float64    `json:"simulation_time"`
	ComputedAt     time.Time  `json:"computed_at"`
	Running        bool       `json:"running"`
	Ships          []shipView `json:"ships"`
}

type timelineFrame struct {
	SimulationTime float64              `json:"t"`
	Ships          []fleet.ShipPosition `json:"ships"`
}

func routesHandler(store *route.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs := store.Get()
		if rs == nil {
			writeError(w, http.StatusServiceUnavailable, fleet.ErrNoRouteSet.Error())
			return
		}
		body, err := route.FeatureCollection(rs).MarshalJSON()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "encoding routes failed")
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Write(body)
	}
}

// routePositionHandler interpolates one route at ?t= (default 0).
// GET /api/v1/routes/{name}/position?t=42.5
func routePositionHandler(store *route.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs := store.Get()
		if rs == nil {
			writeError(w, http.StatusServiceUnavailable, fleet.ErrNoRouteSet.Error())
			return
		}
		name := r.PathValue("name")
		rt, ok := rs.Find(name)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("route %q not found", name))
			return
		}
		t, err := queryFloat(r, "t", 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, fleet.ShipPosition{
			Route:    rt.Name,
			Vessel:   rt.Vessel,
			Position: route.Interpolate(rt, t),
		})
	}
}

func positionsHandler(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := tr.Snapshot()
		if snap.Frame == nil {
			writeError(w, http.StatusServiceUnavailable, "no frame computed yet")
			return
		}
		resp := positionsResponse{
			SimulationTime: snap.Frame.SimTime,
			ComputedAt:     snap.Frame.ComputedAt,
			Running:        snap.Clock.Running,
			Ships:          make([]shipView, len(snap.Frame.Ships)),
		}
		for i, s := range snap.Frame.Ships {
			trail := snap.Trails[s.Route]
			pts := make([][2]float64, len(trail))
			for j, p := range trail {
				pts[j] = [2]float64{p.Latitude, p.Longitude}
			}
			resp.Ships[i] = shipView{ShipPosition: s, Trail: pts}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func positionsGeoJSONHandler(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame := tr.Latest()
		if frame == nil {
			writeError(w, http.StatusServiceUnavailable, "no frame computed yet")
			return
		}
		fc := geojson.NewFeatureCollection()
		for _, s := range frame.Ships {
			f := route.PointFeature(s.Route, s.Position)
			f.SetProperty("simulation_time", frame.SimTime)
			if s.Vessel != "" {
				f.SetProperty("vessel", s.Vessel)
			}
			fc.AddFeature(f)
		}
		body, err := fc.MarshalJSON()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "encoding positions failed")
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Write(body)
	}
}

// timelineHandler computes frames over a range of simulation times.
// GET /api/v1/positions/timeline?from=0&to=100&step=1
func timelineHandler(logger *slog.Logger, pos *fleet.Positioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := queryFloat(r, "from", route.ProgressStart)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		to, err := queryFloat(r, "to", route.ProgressEnd)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		step, err := queryFloat(r, "step", 1)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		frames, err := pos.GenerateFrames(r.Context(), from, to, step)
		switch {
		case errors.Is(err, fleet.ErrNoRouteSet):
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			if r.Context().Err() != nil {
				return
			}
			logger.Debug("timeline rejected", "from", from, "to", to, "step", step, "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":      err.Error(),
				"max_frames": fleet.MaxTimelineFrames,
			})
			return
		}

		out := make([]timelineFrame, len(frames))
		for i, f := range frames {
			out[i] = timelineFrame{SimulationTime: f.SimTime, Ships: f.Ships}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"from":   from,
			"to":     to,
			"step":   step,
			"frames": out,
		})
	}
}

func simulationHandler(tr *tracker.Tracker, sh *stream.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streams := 0
		if sh != nil {
			streams = sh.ActiveStreams()
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"clock":   tr.Clock().State(),
			"tracker": tr.Stats(),
			"streams": streams,
		})
	}
}

func simulationStartHandler(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tr.StartClock()
		writeJSON(w, http.StatusOK, tr.Clock().State())
	}
}

func simulationStopHandler(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tr.StopClock()
		writeJSON(w, http.StatusOK, tr.Clock().State())
	}
}

func simulationResetHandler(logger *slog.Logger, tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := tr.Reset(r.Context()); err != nil {
			logger.Warn("reset frame failed", "component", "api", "error", err)
		}
		writeJSON(w, http.StatusOK, tr.Clock().State())
	}
}

// simulationSpeedHandler sets the clock speed multiplier.
// POST /api/v1/simulation/speed {"speed": 2}
func simulationSpeedHandler(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Speed *float64 `json:"speed"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Speed == nil {
			writeError(w, http.StatusBadRequest, "speed is required")
			return
		}
		if err := tr.SetSpeed(*req.Speed); err != nil {
			if errors.Is(err, simclock.ErrUnsupportedSpeed) {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error":  err.Error(),
					"speeds": tr.Clock().State().Speeds,
				})
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, tr.Clock().State())
	}
}

// trafficHandler bins current positions and trails into a density grid.
// GET /api/v1/traffic?cell=1
func trafficHandler(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cell, err := queryFloat(r, "cell", traffic.DefaultCellDegrees)
		if err != nil || cell <= 0 || cell > 90 {
			writeError(w, http.StatusBadRequest, "invalid cell parameter, must be in (0, 90]")
			return
		}
		snap := tr.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"traffic_density": traffic.Density(snap.Frame, snap.Trails, cell),
		})
	}
}

func panelsHandler(s *panels.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		states := []panels.State{}
		if s != nil {
			states = s.States()
		}
		writeJSON(w, http.StatusOK, map[string]any{"panels": states})
	}
}

func panelHandler(s *panels.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if s == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("panel %q not found", name))
			return
		}
		st, err := s.State(name)
		if errors.Is(err, panels.ErrUnknownPanel) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("panel %q not found", name))
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func predictRouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req planner.RouteRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pred, err := planner.PredictRoute(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, pred)
	}
}

func speedPredictionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req planner.SpeedRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pred, err := planner.PredictSpeed(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, pred)
	}
}

func portsHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req planner.PortsRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ack, err := planner.SubmitPorts(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Info("port selection accepted",
			"component", "api",
			"request_id", ack.RequestID,
			"ports", ack.Ports,
			"distance_nm", ack.DistanceNM,
		)
		writeJSON(w, http.StatusAccepted, ack)
	}
}

func impactHandler(store *route.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, stats.FromSet(store.Get()))
	}
}
