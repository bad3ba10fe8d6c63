package geo

import (
	"context"
	"errors"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnresolved means every stage of the fallback chain missed; callers
// degrade to the original query position.
var ErrUnresolved = errors.New("coordinates unresolved")

// maxResolveDistanceKm rejects results absurdly far from the querying
// position - a mis-geocode, not the place the fact is about.
const maxResolveDistanceKm = 50

// Query describes the place to resolve.
type Query struct {
	// Place is the surfaced place name
	Place string
	// Keywords are the generator's search keywords, usually more
	// geocodable than the display name
	Keywords string
	// RawHint is generator output that may embed an explicit coordinate
	RawHint string
	// Origin is the position the query was made from, used for sanity
	// checking results
	Origin Position
}

// Stage is one strategy in the fallback chain.
type Stage interface {
	Name() string
	Resolve(ctx context.Context, q Query) (Position, error)
}

// Resolver tries each stage in order and short-circuits on the first hit.
// A stage that errors or times out is a miss, never fatal.
type Resolver struct {
	stages       []Stage
	stageTimeout time.Duration
}

func NewResolver(stageTimeout time.Duration, stages ...Stage) *Resolver {
	return &Resolver{stages: stages, stageTimeout: stageTimeout}
}

// Resolve runs the chain. Returns ErrUnresolved when every stage misses.
func (r *Resolver) Resolve(ctx context.Context, q Query) (Position, error) {
	for _, stage := range r.stages {
		sctx, cancel := context.WithTimeout(ctx, r.stageTimeout)
		pos, err := stage.Resolve(sctx, q)
		cancel()

		if err != nil {
			if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrUnresolved) {
				log.Printf("[resolver] %s miss for %q: %v", stage.Name(), q.Place, err)
			}
			continue
		}
		if !pos.Valid() {
			continue
		}
		if q.Origin.Valid() {
			if km := HaversineMeters(q.Origin.Lat, q.Origin.Lon, pos.Lat, pos.Lon) / 1000; km > maxResolveDistanceKm {
				log.Printf("[resolver] %s result %.1fkm from origin, rejecting", stage.Name(), km)
				continue
			}
		}
		return pos, nil
	}
	return Position{}, ErrUnresolved
}

//
// Stage 1: direct extraction from the generator's own output
//

var coordPattern = regexp.MustCompile(`(-?\d{1,3}\.\d+)\s*,\s*(-?\d{1,3}\.\d+)`)

// HintStage parses an explicit coordinate pair embedded in the
// generator's answer. Free - no network call.
type HintStage struct{}

func (HintStage) Name() string { return "hint" }

func (HintStage) Resolve(ctx context.Context, q Query) (Position, error) {
	m := coordPattern.FindStringSubmatch(q.RawHint)
	if m == nil {
		return Position{}, ErrUnresolved
	}

	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Position{}, ErrUnresolved
	}
	lon, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Position{}, ErrUnresolved
	}

	if looksImprecise(m[1], m[2], lat, lon) {
		return Position{}, ErrUnresolved
	}

	pos := Position{Lat: lat, Lon: lon}
	if !pos.Valid() {
		return Position{}, ErrUnresolved
	}
	return pos, nil
}

// Known placeholder points models fall back to: big city centers.
// A hint matching one is a guess, not knowledge.
var placeholderPoints = []Position{
	{Lat: 55.7558, Lon: 37.6173}, // Moscow center
	{Lat: 59.9311, Lon: 30.3609}, // Saint Petersburg center
	{Lat: 48.8566, Lon: 2.3522},  // Paris center
	{Lat: 51.5074, Lon: -0.1278}, // London center
}

func looksImprecise(latStr, lonStr string, lat, lon float64) bool {
	if decimals(latStr) < 2 || decimals(lonStr) < 2 {
		return true
	}
	// suspiciously round usually means "somewhere in the city"
	if lat == math.Round(lat*10)/10 && lon == math.Round(lon*10)/10 {
		return true
	}
	for _, p := range placeholderPoints {
		if math.Abs(lat-p.Lat) < 0.01 && math.Abs(lon-p.Lon) < 0.01 {
			return true
		}
	}
	return false
}

func decimals(s string) int {
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return len(s) - i - 1
}

//
// Stage 2: verified lookup via the generator
//

// CoordinateAsker is a narrow secondary query to the language model for
// the coordinate of a named place. More expensive, higher accuracy.
type CoordinateAsker interface {
	AskCoordinates(ctx context.Context, place string) (Position, error)
}

type VerifiedStage struct {
	Asker CoordinateAsker
}

func (VerifiedStage) Name() string { return "verified" }

func (s VerifiedStage) Resolve(ctx context.Context, q Query) (Position, error) {
	if q.Place == "" {
		return Position{}, ErrUnresolved
	}
	return s.Asker.AskCoordinates(ctx, q.Place)
}

//
// Stage 3: geocoding service
//

type GeocodeStage struct {
	Geocoder *Geocoder
}

func (GeocodeStage) Name() string { return "geocode" }

func (s GeocodeStage) Resolve(ctx context.Context, q Query) (Position, error) {
	// keywords geocode better than display names; try them first
	for _, query := range []string{q.Keywords, q.Place} {
		if query == "" {
			continue
		}
		pos, err := s.Geocoder.Geocode(ctx, query)
		if err == nil {
			return pos, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Position{}, err
		}
	}
	return Position{}, ErrNotFound
}
