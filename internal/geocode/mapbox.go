package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tognee/librephotos/internal/models"
)

// Geocoder resolves coordinates into an ordered place-feature hierarchy,
// finest to coarsest.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*models.Geolocation, error)
}

// Mapbox is a reverse-geocoding client for the Mapbox places API.
type Mapbox struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewMapbox(baseURL, token string) *Mapbox {
	return &Mapbox{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type mapboxFeature struct {
	Text      string `json:"text"`
	PlaceName string `json:"place_name"`
}

type mapboxResponse struct {
	Features []mapboxFeature `json:"features"`
}

// ReverseGeocode queries Mapbox. The coarse place_name of the finest
// feature doubles as the search text facet.
func (m *Mapbox) ReverseGeocode(ctx context.Context, lat, lon float64) (*models.Geolocation, error) {
	endpoint := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%f,%f.json?%s",
		m.baseURL, lon, lat, url.Values{"access_token": {m.token}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reverse geocode: unexpected status %d", resp.StatusCode)
	}

	var body mapboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}

	result := &models.Geolocation{}
	for _, f := range body.Features {
		result.Features = append(result.Features, models.PlaceFeature{Text: f.Text})
	}
	if len(body.Features) > 0 {
		result.SearchText = strings.ReplaceAll(body.Features[0].PlaceName, ",", " ")
	}
	return result, nil
}
