package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrNotFound means the geocoding service had no result for the query.
var ErrNotFound = errors.New("place not found")

// Geocoder converts place names to coordinates using Nominatim.
type Geocoder struct {
	url    string
	client *http.Client
}

func NewGeocoder(url string) *Geocoder {
	return &Geocoder{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type nominatimResult struct {
	Lat        string  `json:"lat"`
	Lon        string  `json:"lon"`
	Type       string  `json:"type"`
	Class      string  `json:"class"`
	Importance float64 `json:"importance"`
}

// Geocode looks up a place name and returns the best-scored result.
// Specific features (buildings, amenities, historic sites) beat streets,
// streets beat neighbourhoods, and importance breaks ties.
func (g *Geocoder) Geocode(ctx context.Context, place string) (Position, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", g.url, nil)
	if err != nil {
		return Position{}, err
	}
	q := req.URL.Query()
	q.Add("q", place)
	q.Add("format", "json")
	q.Add("limit", "5")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", "Wayfact/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return Position{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return Position{}, fmt.Errorf("nominatim returned %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Position{}, err
	}
	if len(results) == 0 {
		return Position{}, ErrNotFound
	}

	best := -1
	bestScore := -1.0
	for i, r := range results {
		score := r.Importance
		switch r.Type {
		case "building", "house", "amenity", "historic", "attraction":
			score += 3
		case "street", "road":
			score += 2
		case "suburb", "neighbourhood":
			score += 1
		}
		if score > bestScore {
			bestScore = score
			best = i
		}
	}

	lat, err := strconv.ParseFloat(results[best].Lat, 64)
	if err != nil {
		return Position{}, err
	}
	lon, err := strconv.ParseFloat(results[best].Lon, 64)
	if err != nil {
		return Position{}, err
	}

	pos := Position{Lat: lat, Lon: lon}
	if !pos.Valid() {
		return Position{}, ErrNotFound
	}
	return pos, nil
}
