package main

import (
	"context"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nishaa-11/Nurse/internal/alertapi"
	"github.com/nishaa-11/Nurse/internal/config"
	"github.com/nishaa-11/Nurse/internal/dispatch"
	"github.com/nishaa-11/Nurse/internal/geo"
	"github.com/nishaa-11/Nurse/internal/httpapi"
	"github.com/nishaa-11/Nurse/internal/hub"
	"github.com/nishaa-11/Nurse/internal/store/postgres"
	"github.com/nishaa-11/Nurse/internal/telemetry"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("alert-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	st := postgres.NewStore(pool, postgres.Options{
		DefaultEmergencyTTL: cfg.DefaultEmergencyTTL,
	})
	index := geo.NewIndex()
	h := hub.New()
	dispatcher := dispatch.New(index, h, st)
	handler := alertapi.NewHandler(st, dispatcher, index, alertapi.Options{
		DefaultRadiusMeters: cfg.DefaultRadiusMeters,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute: cfg.RateLimitPerMinute,
		IPBurst:     cfg.RateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/", handler.Routes())

	sockjsHandler := sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, cfg.ClientSendBufferSize)}
		h.Register(client)
		defer func() {
			// A dropped connection stops contributing to the geo index
			// and stops receiving alerts immediately.
			if client.NurseID != "" {
				index.Remove(client.NurseID)
			}
			h.Unregister(client)
		}()

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseInbound([]byte(msg))
			if !ok {
				continue
			}
			switch parsed.Action {
			case "register":
				h.Bind(client, parsed.NurseID)
				select {
				case client.Send <- hub.EncodeEnvelope("registered", map[string]string{"nurse_id": parsed.NurseID}):
				default:
				}
			case "update_location":
				if client.NurseID == "" {
					h.Bind(client, parsed.NurseID)
				}
				available := true
				if parsed.Available != nil {
					available = *parsed.Available
				}
				index.Update(parsed.NurseID, parsed.Latitude, parsed.Longitude, available)
			case "unregister":
				index.Remove(parsed.NurseID)
				h.Bind(client, "")
			}
		}
	})
	mux.Handle("/realtime/", sockjsHandler)

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "alert-service")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("alert-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	go func() {
		if cfg.ExpirySweepInterval <= 0 {
			return
		}
		ticker := time.NewTicker(cfg.ExpirySweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			count, err := st.ExpireEmergencies(ctx, time.Now().UTC())
			cancel()
			if err != nil {
				log.Printf("expiry sweep error: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("expired %d emergency requests", count)
			}
		}
	}()

	go func() {
		if cfg.StaleSweepInterval <= 0 || cfg.LocationStaleWindow <= 0 {
			return
		}
		ticker := time.NewTicker(cfg.StaleSweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			if removed := index.EvictStale(cfg.LocationStaleWindow); removed > 0 {
				log.Printf("evicted %d stale locations", removed)
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
