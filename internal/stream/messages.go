package stream

import (
	"time"

	"github.com/star/searoute/internal/route"
	"github.com/star/searoute/internal/simclock"
	"github.com/star/searoute/internal/tracker"
)

// Stream message payload types. SSE and websocket carry the same JSON.

type metadataMessage struct {
	Type             string         `json:"type"`
	ConnectionID     string         `json:"connection_id"`
	RouteSetLoadedAt string         `json:"route_set_loaded_at,omitempty"`
	RouteSetAge      int            `json:"route_set_age_seconds"`
	Ships            int            `json:"ships"`
	Clock            simclock.State `json:"clock"`
}

type frameMessage struct {
	Type       string        `json:"type"`
	T          float64       `json:"t"`
	ComputedAt string        `json:"computed_at"`
	Running    bool          `json:"running"`
	Speed      float64       `json:"speed"`
	Ships      []shipPayload `json:"ships"`
}

type shipPayload struct {
	Route   string       `json:"route"`
	Vessel  string       `json:"vessel,omitempty"`
	Lat     float64      `json:"lat"`
	Lon     float64      `json:"lon"`
	Heading float64      `json:"heading"`
	Tr      [][2]float64 `json:"tr,omitempty"`
}

type ackMessage struct {
	Type   string         `json:"type"`
	Action string         `json:"action"`
	Clock  simclock.State `json:"clock"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// controlMessage is a websocket client request.
type controlMessage struct {
	Action string  `json:"action"`
	Value  float64 `json:"value,omitempty"`
}

func buildMetadataMessage(connID string, rs *route.RouteSet, clock simclock.State) metadataMessage {
	meta := metadataMessage{
		Type:         "metadata",
		ConnectionID: connID,
		RouteSetAge:  -1,
		Clock:        clock,
	}
	if rs != nil {
		meta.RouteSetLoadedAt = rs.LoadedAt.UTC().Format(time.RFC3339)
		meta.RouteSetAge = int(time.Since(rs.LoadedAt).Seconds())
		meta.Ships = len(rs.Routes)
	}
	return meta
}

// buildFrameMessage formats an update into the frame payload. If trail > 0,
// each ship carries up to its trail most recent samples, oldest first.
func buildFrameMessage(u tracker.Update, trail int) frameMessage {
	f := u.Frame
	ships := make([]shipPayload, len(f.Ships))
	for i, s := range f.Ships {
		ships[i] = shipPayload{
			Route:   s.Route,
			Vessel:  s.Vessel,
			Lat:     s.Latitude,
			Lon:     s.Longitude,
			Heading: s.HeadingDegrees,
		}
		if trail <= 0 {
			continue
		}
		samples := u.Trails[s.Route]
		if len(samples) > trail {
			samples = samples[len(samples)-trail:]
		}
		if len(samples) == 0 {
			continue
		}
		tr := make([][2]float64, len(samples))
		for j, p := range samples {
			tr[j] = [2]float64{p.Latitude, p.Longitude}
		}
		ships[i].Tr = tr
	}
	return frameMessage{
		Type:       "frame",
		T:          f.SimTime,
		ComputedAt: f.ComputedAt.UTC().Format(time.RFC3339Nano),
		Running:    u.Clock.Running,
		Speed:      u.Clock.Speed,
		Ships:      ships,
	}
}
