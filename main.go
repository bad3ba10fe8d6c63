package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"wayfact.ai/config"
	"wayfact.ai/data"
	"wayfact.ai/fact"
	"wayfact.ai/geo"
	"wayfact.ai/server"
	"wayfact.ai/tracker"
)

func main() {
	configPath := flag.String("config", "wayfact.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.OpenAI.Key == "" {
		log.Fatal("missing OPENAI_API_KEY")
	}

	// cache persistence, in-memory when no path is set
	var store data.Store
	if cfg.Data.Path != "" {
		store, err = data.OpenSQLite(cfg.Data.Path)
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()
	} else {
		store = data.NewMemoryStore()
	}

	cache := geo.NewCache(
		time.Duration(cfg.Geo.CacheTTLHours)*time.Hour,
		cfg.Geo.CacheMaxEntries,
		store,
	)
	log.Printf("[main] cache loaded with %d cells", cache.Len())

	generator := fact.NewOpenAI(cfg.OpenAI.Key, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	geocoder := geo.NewGeocoder(cfg.Geo.NominatimURL)

	resolver := geo.NewResolver(
		time.Duration(cfg.Track.ResolveTimeoutSecs)*time.Second,
		geo.HintStage{},
		geo.VerifiedStage{Asker: generator},
		geo.GeocodeStage{Geocoder: geocoder},
	)

	pipeline := fact.NewPipeline(generator, resolver, fact.NewImageLookup())

	srv := server.New()
	registry := tracker.NewRegistry(pipeline, srv,
		time.Duration(cfg.Track.ProduceTimeoutSecs)*time.Second)

	handler := server.NewHandler(registry, pipeline, cache, srv, cfg.Track)

	mux := http.NewServeMux()
	handler.Register(mux)

	log.Printf("[main] listening on %s", cfg.Server.Address)
	if err := http.ListenAndServe(cfg.Server.Address, mux); err != nil {
		log.Fatal(err)
	}
}
