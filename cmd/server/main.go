package main

import (
	"context"
	"flag"
	"log" // Standard log for critical startup/shutdown messages before/after zap is active
	"os"
	"os/signal"
	"syscall"
	"time"

	"donation_match_backend/internal/config"
)

func main() {
	syncCmd := flag.NewFlagSet("sync-verification", flag.ExitOnError)
	timeout := syncCmd.Duration("timeout", 10*time.Minute, "Maximum duration of the sync run")

	if len(os.Args) > 1 && os.Args[1] == "sync-verification" {
		_ = syncCmd.Parse(os.Args[2:])
		runVerificationSync(*timeout)
		return
	}

	startServer()
}

// runVerificationSync marks every profile whose email the provider has
// confirmed as verified, once, without starting the HTTP server.
func runVerificationSync(timeout time.Duration) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration for sync: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	job, cleanup, err := initializeVerificationSync(ctx, cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize verification sync: %v", err)
	}
	defer cleanup()

	verified, err := job.Run(ctx)
	if err != nil {
		log.Printf("ERROR: Verification sync failed after verifying %d profiles: %v", verified, err)
		cleanup()
		os.Exit(1)
	}
	log.Printf("INFO: Verification sync completed, %d profiles verified.", verified)
}

func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	server, cleanup, err := initializeServer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize server: %v", err)
	}
	defer cleanup()

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("FATAL: Server failed to start or crashed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("INFO: Received signal '%s'. Shutting down server...", sig)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server forced to shutdown due to error: %v", err)
	} else {
		log.Println("INFO: Server shutdown complete.")
	}
	log.Println("INFO: Application exiting.")
}
