package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/skywatch/opensky-scope/pkg/config"
	"github.com/skywatch/opensky-scope/pkg/geodesy"
	"github.com/skywatch/opensky-scope/pkg/opensky"
	"github.com/skywatch/opensky-scope/pkg/tracking"
)

// nearest-aircraft fetches one snapshot, dead-reckons it to now, and prints
// the closest aircraft to the given point.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	lat := flag.Float64("lat", 0, "Reference latitude in decimal degrees")
	lon := flag.Float64("lon", 0, "Reference longitude in decimal degrees")
	count := flag.Int("n", 10, "Number of aircraft to list")
	horizon := flag.Duration("horizon", 0, "Extra time to project ahead of the snapshot")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ref := geodesy.Point{Latitude: *lat, Longitude: *lon}
	if *lat == 0 && *lon == 0 {
		ref = geodesy.Point{Latitude: cfg.Observer.Latitude, Longitude: cfg.Observer.Longitude}
	}

	client := opensky.NewClient(opensky.Config{
		BaseURL:        cfg.OpenSky.BaseURL,
		Username:       cfg.OpenSky.Username,
		Password:       cfg.OpenSky.Password,
		Timeout:        time.Duration(cfg.OpenSky.TimeoutSeconds) * time.Second,
		ObservationLag: time.Duration(cfg.OpenSky.ObservationLagSeconds) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req := opensky.StatesRequest{}
	if cfg.Poll.Region != nil {
		req.Bounds = &opensky.BoundingBox{
			MinLat: cfg.Poll.Region.MinLat,
			MaxLat: cfg.Poll.Region.MaxLat,
			MinLon: cfg.Poll.Region.MinLon,
			MaxLon: cfg.Poll.Region.MaxLon,
		}
	}

	snap, err := client.FetchStates(ctx, req)
	if err != nil {
		if rle, ok := opensky.IsRateLimited(err); ok {
			log.Fatalf("Rate limited, retry in %d seconds", rle.RetryAfterSeconds)
		}
		log.Fatalf("Fetch failed: %v", err)
	}

	if snap.Len() == 0 {
		fmt.Println("No aircraft in the current snapshot.")
		os.Exit(0)
	}

	target := time.Now().UTC().Add(*horizon)
	projected := tracking.ProjectSnapshot(snap, target)
	ranked := tracking.Nearest(projected.Vectors(), ref, *count)

	fmt.Printf("Snapshot at %s, %d aircraft, reference %.4f, %.4f\n\n",
		snap.Time.UTC().Format(time.RFC3339), snap.Len(), ref.Latitude, ref.Longitude)
	fmt.Printf("%-8s %-10s %-16s %10s %8s %9s %8s\n",
		"ICAO24", "CALLSIGN", "COUNTRY", "DIST KM", "BRG", "ALT M", "SPD M/S")

	for _, sv := range ranked {
		country := sv.OriginCountry
		if len(country) > 16 {
			country = country[:16]
		}
		fmt.Printf("%-8s %-10s %-16s %10.1f %7.0f° %9.0f %8.1f\n",
			sv.ICAO24, sv.Callsign, country,
			sv.DistanceKm, sv.BearingDeg, sv.BaroAltitude, sv.Velocity)
	}
}
