package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"authgrid.org/internal/auth"
	"authgrid.org/internal/httpapi"
	"authgrid.org/internal/obs"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("AUTHGRID_COMMIT"))

	dsn := os.Getenv("AUTHGRID_PG_DSN")
	if dsn == "" {
		log.Fatal("AUTHGRID_PG_DSN is required")
	}
	secret := os.Getenv("AUTHGRID_AUTH_SECRET")
	if secret == "" {
		log.Fatal("AUTHGRID_AUTH_SECRET is required")
	}

	store, err := auth.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	opts := []auth.ServiceOption{
		auth.WithSigningKey(secret, os.Getenv("AUTHGRID_AUTH_ALG"), "authgrid"),
		auth.WithWildcard(os.Getenv("AUTHGRID_ADMIN_WILDCARD")),
	}
	if ttl := durationEnv("AUTHGRID_ACCESS_TTL"); ttl > 0 {
		opts = append(opts, auth.WithAccessTTL(ttl))
	}
	if ttl := durationEnv("AUTHGRID_SESSION_TTL"); ttl > 0 {
		opts = append(opts, auth.WithSessionTTL(ttl))
	}
	if boolEnv("AUTHGRID_REVOKE_ON_REUSE") {
		opts = append(opts, auth.WithRevokeOnReuse(true))
	}

	svc, err := auth.NewService(store, opts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	if err := svc.EnsureBuiltins(startupCtx); err != nil {
		cancelStartup()
		log.Fatalf("seed permissions: %v", err)
	}
	if err := bootstrapSuperuser(startupCtx, svc); err != nil {
		cancelStartup()
		log.Fatalf("bootstrap superuser: %v", err)
	}
	cancelStartup()

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: store.DB()}, version)

	addr := os.Getenv("AUTHGRID_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting authgrid-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

// bootstrapSuperuser creates the initial superuser when the configured account
// does not exist yet. Without it a fresh deployment has no principal able to
// reach the admin surface.
func bootstrapSuperuser(ctx context.Context, svc *auth.Service) error {
	email := os.Getenv("AUTHGRID_BOOTSTRAP_EMAIL")
	password := os.Getenv("AUTHGRID_BOOTSTRAP_PASSWORD")
	if email == "" || password == "" {
		return nil
	}
	_, err := svc.CreateUser(ctx, auth.CreateUserInput{
		Email:       email,
		FullName:    "Bootstrap Admin",
		Password:    password,
		IsActive:    true,
		IsSuperuser: true,
	})
	if errors.Is(err, auth.ErrConflict) {
		return nil
	}
	return err
}

func durationEnv(name string) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("%s: invalid duration %q", name, raw)
	}
	return d
}

func boolEnv(name string) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Fatalf("%s: invalid boolean %q", name, raw)
	}
	return v
}
