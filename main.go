package main

import (
	"context"

	"github.com/cppla/postboard/config"
	"github.com/cppla/postboard/realtime"
	"github.com/cppla/postboard/routes"
	"github.com/cppla/postboard/storage"
	"github.com/cppla/postboard/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg.LogOptions()); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	rdb := utils.InitRedis(cfg.RedisOptions())

	db, err := config.InitDatabase(cfg)
	if err != nil {
		utils.Sugar.Fatalf("database init failed: %v", err)
	}

	var blobs storage.ObjectStorage
	if cfg.StorageBackend == "minio" {
		mc, err := storage.NewMinioClient(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			utils.Sugar.Fatalf("minio init failed: %v", err)
		}
		if err := mc.EnsureBucket(context.Background()); err != nil {
			utils.Sugar.Fatalf("minio bucket %s unavailable: %v", mc.Bucket(), err)
		}
		blobs = mc
	}

	var relay realtime.Relay
	if rdb != nil {
		relay = realtime.NewRedisRelay(rdb, cfg.RealtimeChannel)
	}
	hub := realtime.NewHub(relay)
	hub.Start(context.Background())

	r := routes.SetupRouter(cfg, db, hub, blobs)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r, hub.Stop); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
	// requests have drained by now
	utils.CloseRedis()
}
