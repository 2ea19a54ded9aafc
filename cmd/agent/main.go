// The agent is the device-side tracker: it runs one tracking session for an
// incident, either as the responding unit (reporting simulated GPS fixes and
// mirroring them to the server) or as the patient (watching the responder
// approach).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ambutrack/internal/client"
	"ambutrack/internal/config"
	"ambutrack/internal/domain"
	natsevents "ambutrack/internal/events/nats"
	"ambutrack/internal/geo"
	"ambutrack/internal/route"
	"ambutrack/internal/track"
)

func main() {
	var (
		roleFlag   = flag.String("role", "patient", "tracking role: responder or patient")
		incidentID = flag.String("incident", "", "incident id to track")
		serverURL  = flag.String("server", "http://127.0.0.1:8080", "API base URL")
		token      = flag.String("token", os.Getenv("AMBUTRACK_TOKEN"), "bearer token")
		startLat   = flag.Float64("lat", 37.7749, "responder start latitude")
		startLng   = flag.Float64("lng", -122.4194, "responder start longitude")
	)
	flag.Parse()

	if *incidentID == "" {
		log.Fatal("-incident is required")
	}
	if *token == "" {
		log.Fatal("-token or AMBUTRACK_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := config.LoadAgent()
	logger := log.Default()
	api := client.New(*serverURL, *token, *roleFlag, env.DirectionsTimeout)

	incident, err := api.GetIncident(ctx, *incidentID)
	if err != nil {
		log.Fatalf("load incident: %v", err)
	}

	fetcher := route.NewClient(env.DirectionsBaseURL, env.DirectionsAPIKey, env.DirectionsTimeout, logger)

	cfg := track.Config{
		IncidentID:    *incidentID,
		FixedEndpoint: incident.PatientPosition,
		Gate:          route.NewRefreshGate(env.RouteMinInterval, env.RouteMinDisplacementKm),
		WriteInterval: env.PositionWriteInterval,
		Fetcher:       fetcher,
		Logger:        logger,
	}

	switch *roleFlag {
	case "responder":
		cfg.Role = track.RoleResponder
		cfg.Fixes = &simFixSource{
			start:  domain.Coordinate{Lat: *startLat, Lng: *startLng},
			target: incident.PatientPosition,
		}
		cfg.Writer = api
	case "patient":
		cfg.Role = track.RolePatient
		cfg.FallbackNotifier = &track.PollingNotifier{Reader: api, Interval: env.PollInterval, Logger: logger}
		sub, err := natsevents.NewSubscriber(env.NATSURL, env.NATSSubjectPrefix, logger)
		if err != nil {
			logger.Printf("nats unavailable, will poll: %v", err)
			cfg.Notifier = cfg.FallbackNotifier
		} else {
			defer sub.Close()
			cfg.Notifier = sub
		}
	default:
		log.Fatalf("unknown role %q", *roleFlag)
	}

	session := track.NewSession(cfg)
	if err := session.Start(ctx); err != nil {
		log.Fatalf("session start: %v", err)
	}
	defer session.Stop()

	camera := track.NewCamera(0)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-session.Done():
			return
		case <-ticker.C:
			printSnapshot(logger, camera, session.Snapshot())
		}
	}
}

func printSnapshot(logger *log.Logger, camera *track.Camera, snap track.Snapshot) {
	if snap.AwaitingDispatch {
		logger.Printf("status=%s awaiting dispatch", snap.Status)
		return
	}
	var markers []domain.Coordinate
	if snap.Self.Position != nil {
		markers = append(markers, *snap.Self.Position)
	}
	if snap.Peer.Position != nil {
		markers = append(markers, *snap.Peer.Position)
	}
	region, moved := camera.Frame(markers, snap.Route)
	if snap.Route != nil {
		logger.Printf("status=%s route=%s eta=%s fallback=%t moved=%t center=%.5f,%.5f",
			snap.Status, snap.Route.DistanceLabel, snap.Route.DurationLabel, snap.Route.IsFallback, moved, region.Center.Lat, region.Center.Lng)
		return
	}
	logger.Printf("status=%s no route yet", snap.Status)
}

// simFixSource emits fixes walking the responder toward the incident at
// roughly ambulance speed. It stands in for a real GPS source.
type simFixSource struct {
	start  domain.Coordinate
	target domain.Coordinate
}

func (s *simFixSource) Subscribe(ctx context.Context) (<-chan track.Fix, error) {
	ch := make(chan track.Fix)
	go func() {
		defer close(ch)
		pos := s.start
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pos = stepToward(pos, s.target, 0.04)
				select {
				case ch <- track.Fix{Position: pos, At: time.Now().UTC()}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func stepToward(from, to domain.Coordinate, stepKm float64) domain.Coordinate {
	dist := geo.DistanceKm(from, to)
	if dist <= stepKm || dist == 0 {
		return to
	}
	frac := stepKm / dist
	return domain.Coordinate{
		Lat: from.Lat + (to.Lat-from.Lat)*frac,
		Lng: from.Lng + (to.Lng-from.Lng)*frac,
	}
}
