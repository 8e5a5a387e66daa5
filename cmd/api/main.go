package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/auth"
	credentialrepo "github.com/OsmanovRuslan/EcoSharing-sub000/internal/credential/repo"
	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/profile"
	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/router"
	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/telegram"
	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/token"
	tokenrepo "github.com/OsmanovRuslan/EcoSharing-sub000/internal/token/repo"
	"github.com/OsmanovRuslan/EcoSharing-sub000/pkg/database"
	"github.com/OsmanovRuslan/EcoSharing-sub000/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting eco-auth service")

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	credRepo := credentialrepo.NewCredentialRepo(db)
	refreshRepo := tokenrepo.NewRefreshRepo(db)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer bootCancel()
	if err := credRepo.EnsureTable(bootCtx); err != nil {
		sugar.Fatalf("ensure credentials table: %v", err)
	}
	if err := refreshRepo.EnsureTable(bootCtx); err != nil {
		sugar.Fatalf("ensure refresh_tokens table: %v", err)
	}

	mgr, err := token.NewManager(token.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("token manager: %v", err)
	}
	verifier, err := telegram.NewVerifier(telegram.ConfigFromEnv(), sugar)
	if err != nil {
		sugar.Fatalf("telegram verifier: %v", err)
	}
	ids, err := utilities.NewUserIDAllocator()
	if err != nil {
		sugar.Fatalf("user id allocator: %v", err)
	}

	profiles := profile.NewHTTPClient(profile.ConfigFromEnv())
	rotation := token.NewRotationService(mgr, refreshRepo, credRepo, sugar)
	svc := auth.NewService(credRepo, rotation, mgr, verifier, profiles, nil, ids, sugar, auth.ConfigFromEnv())
	handler := auth.NewHandler(svc, mgr, sugar)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: router.RegisterRoutes(sugar, handler),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		sugar.Infow("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
