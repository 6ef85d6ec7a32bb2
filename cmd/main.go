package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sealshare/sealshare-server/database"
	"github.com/sealshare/sealshare-server/internal/api/rest"
	"github.com/sealshare/sealshare-server/internal/config"
	"github.com/sealshare/sealshare-server/internal/logger"
	"github.com/sealshare/sealshare-server/internal/model"
	"github.com/sealshare/sealshare-server/internal/repository/postgres"
	"github.com/sealshare/sealshare-server/internal/server"
	"github.com/sealshare/sealshare-server/internal/service"
	storage "github.com/sealshare/sealshare-server/internal/storage/minio"
	"github.com/sealshare/sealshare-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const challengeSweepInterval = time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	if err := database.Migrate(ctx, cfg.Database.DSN); err != nil {
		logger.Fatal("failed to run migrations", "error", err)
	}

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	challengeRepo := postgres.NewChallengeRepository(db)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(db)
	recordRepo := postgres.NewRecordRepository(db)
	grantRepo := postgres.NewGrantRepository(db)
	inviteRepo := postgres.NewInviteRepository(db)
	friendRepo := postgres.NewFriendRepository(db)

	tokenManager := token.NewJWT(cfg.JWT.Secret)

	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatal("failed to create minio client", "error", err)
	}
	storageClient, err := storage.NewClient(ctx, minioClient, cfg.Storage.Bucket)
	if err != nil {
		logger.Fatal("failed to initialize storage client", "error", err)
	}

	authService := service.NewAuth(userRepo, challengeRepo, refreshTokenRepo, tokenManager, []byte(cfg.Auth.DecoySecret), logger)
	recordService := service.NewRecord(recordRepo, grantRepo, storageClient, cfg.Auth.BlobThreshold, logger)
	grantService := service.NewGrant(grantRepo, recordRepo, userRepo, friendRepo, logger)
	inviteService := service.NewInvite(inviteRepo, recordRepo, userRepo, friendRepo, logger)
	friendService := service.NewFriend(friendRepo, userRepo, logger)

	router := rest.New(authService, recordService, grantService, inviteService, friendService, logger)
	httpServer := rest.NewHTTPServer(router.Register(), cfg.HTTP.Address)

	var sl model.SecurityLayer

	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.KeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		err := s.Start(sl)
		if err != nil {
			logger.Error("failed to start server", "error", err)
		}
	}(httpServer)

	wg.Add(1)
	go func() {
		defer wg.Done()
		sweepChallenges(ctx, authService, logger)
	}()

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

// sweepChallenges periodically deletes expired handshake transcripts so
// abandoned logins do not accumulate.
func sweepChallenges(ctx context.Context, auth *service.Auth, logger *logger.Logger) {
	ticker := time.NewTicker(challengeSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := auth.SweepChallenges(ctx)
			if err != nil {
				logger.Error("failed to sweep challenges", "error", err)
				continue
			}
			if removed > 0 {
				logger.Debug("swept expired challenges", "count", removed)
			}
		}
	}
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
