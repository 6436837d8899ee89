package main

import (
	"context"
	"flag"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/realtime"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/store"
)

func main() {
	log.SetPrefix("[roomchat] ")
	log.Println("Starting roomchat server...")

	cfg, err := server.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	if err := db.Seed(context.Background()); err != nil {
		log.Fatalf("Failed to seed store: %v", err)
	}

	srv := server.New(*cfg, realtime.Deps{
		Verifier: auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Rooms:    db,
		Messages: db,
		Profiles: db,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return srv.ShutdownHTTP(ctx)
			},
			"hub": func(ctx context.Context) error {
				return srv.ShutdownHub(ctx)
			},
		},
	)

	exitCode := <-wait
	if err := db.Close(); err != nil {
		log.Printf("Error closing store: %v", err)
	}
	log.Printf("Server exited with code: %d", exitCode)
	os.Exit(exitCode)
}
