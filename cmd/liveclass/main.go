package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"liveclass/internal/app"
	"liveclass/internal/auth"
	"liveclass/internal/config"
	"liveclass/pkg/logger"
	"liveclass/pkg/types"
)

func main() {
	if err := run(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run() error {
	mintID := flag.String("mint-token", "", "print a dev token for the given participant id and exit")
	mintRole := flag.String("mint-role", string(types.RoleStudent), "role claim for -mint-token")
	mintTTL := flag.Duration("mint-ttl", time.Hour, "lifetime for -mint-token")
	flag.Parse()

	cfg := config.Load()
	log := logger.Default

	if *mintID != "" {
		return mintToken(cfg, *mintID, *mintRole, *mintTTL)
	}

	application, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	sig := <-signalCh
	log.Info("received signal %v, shutting down", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := application.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// mintToken prints a signed dev token for local clients. Production tokens
// come from the platform's auth provider.
func mintToken(cfg *config.Config, id, role string, ttl time.Duration) error {
	if len(cfg.Auth.JWTSecret) == 0 {
		return fmt.Errorf("LIVECLASS_JWT_SECRET is required to mint tokens")
	}
	identity := types.Identity{ID: id, DisplayName: id, Role: types.Role(role)}
	if !identity.Role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	token, err := auth.NewService(cfg.Auth.JWTSecret).Mint(identity, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
