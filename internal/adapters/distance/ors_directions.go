package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
	"fmt"
	"net/http"
)

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
	Units       string      `json:"units"`
}

type directionsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Summary struct {
				Distance *float64 `json:"distance"`
				Duration *float64 `json:"duration"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

// Route retrieves the road distance (miles) and path geometry between two
// points using the OpenRouteService directions endpoint.
func (o *ORSClient) Route(
	ctx context.Context,
	from domain.Coordinates,
	to domain.Coordinates,
) (_ ports.RouteLeg, err error) {
	defer obs.Time(ctx, "ors.Route")(&err)

	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", o.baseURL, o.profile)

	payload, err := json.Marshal(directionsRequest{
		Coordinates: [][]float64{from.CoordsToList(), to.CoordsToList()},
		Units:       "mi",
	})
	if err != nil {
		return ports.RouteLeg{}, fmt.Errorf("marshal directions request: %w", err)
	}

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return ports.RouteLeg{}, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return ports.RouteLeg{}, fmt.Errorf("decode directions response: %w", err)
	}

	if len(dr.Features) == 0 {
		return ports.RouteLeg{}, errors.New("directions response has no features")
	}

	feature := dr.Features[0]
	if feature.Properties.Summary.Distance == nil {
		return ports.RouteLeg{}, errors.New("directions response has no distance summary")
	}

	geometry := make([][2]float64, 0, len(feature.Geometry.Coordinates))
	for i, c := range feature.Geometry.Coordinates {
		if len(c) < 2 {
			return ports.RouteLeg{}, fmt.Errorf("invalid geometry coordinate at index %d", i)
		}
		geometry = append(geometry, [2]float64{c[0], c[1]})
	}

	return ports.RouteLeg{
		Miles:    *feature.Properties.Summary.Distance,
		Geometry: geometry,
	}, nil
}
