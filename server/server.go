package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"melodex/cache"
	"melodex/config"
	"melodex/core/audio"
	"melodex/core/ingest"
	"melodex/core/provider/jamendo"
	"melodex/db"
	"melodex/logger"
	"melodex/model"
	"melodex/repository"
	"melodex/storage"

	"github.com/gorilla/mux"
)

// APIHandler handles all API requests.
type APIHandler struct {
	userRepo    repository.UserRepository
	artistRepo  repository.ArtistRepository
	albumRepo   repository.AlbumRepository
	songRepo    repository.SongRepository
	controller  *ingest.Controller
	reportCache *cache.ReportCache
	analyzer    audio.Analyzer
	cfg         *config.Config
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	userRepo repository.UserRepository,
	artistRepo repository.ArtistRepository,
	albumRepo repository.AlbumRepository,
	songRepo repository.SongRepository,
	controller *ingest.Controller,
	reportCache *cache.ReportCache,
	analyzer audio.Analyzer,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		userRepo:    userRepo,
		artistRepo:  artistRepo,
		albumRepo:   albumRepo,
		songRepo:    songRepo,
		controller:  controller,
		reportCache: reportCache,
		analyzer:    analyzer,
		cfg:         cfg,
	}
}

// Start initializes dependencies and runs the HTTP server until interrupted.
func Start() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	})

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database with GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrateModels(&model.Artist{}, &model.Album{}, &model.Song{}); err != nil {
		logger.Fatal("Failed to migrate catalog models", logger.ErrorField(err))
	}

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("Failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()

	store, err := storage.NewMinioStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize MinIO", logger.ErrorField(err))
	}

	userRepo := repository.NewMySQLUserRepository(db.DB)
	artistRepo := repository.NewArtistRepository(db.GormDB)
	albumRepo := repository.NewAlbumRepository(db.GormDB)
	songRepo := repository.NewSongRepository(db.GormDB)

	provider := jamendo.NewClient(cfg)
	normalizer := ingest.NewNormalizer(cfg.DefaultGenre, cfg.DefaultReleaseDate)
	materializer := ingest.NewMaterializer(store, cfg.MaxAssetFetchBytes)
	reconciler := ingest.NewReconciler(artistRepo, albumRepo, songRepo, normalizer, materializer, jamendo.Source)

	reportCache := cache.NewReportCache(db.RedisClient, 24*time.Hour)
	controller := ingest.NewController(provider, reconciler, songRepo, reportCache,
		cfg.IngestWorkers, cfg.MaxFetchLimit, cfg.DefaultGenre)

	analyzer := audio.NewFFprobeAnalyzer(cfg.FFprobePath)

	apiHandler := NewAPIHandler(userRepo, artistRepo, albumRepo, songRepo,
		controller, reportCache, analyzer, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, "ok", nil)
	}).Methods(http.MethodGet)

	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware)
	api.HandleFunc("/songs", apiHandler.SongsHandler).Methods(http.MethodGet)
	api.HandleFunc("/artists", apiHandler.ArtistsHandler).Methods(http.MethodGet)
	api.HandleFunc("/albums", apiHandler.AlbumsHandler).Methods(http.MethodGet)
	api.HandleFunc("/discover", apiHandler.DiscoverHandler).Methods(http.MethodGet)
	api.HandleFunc("/discover/report", apiHandler.LastSyncHandler).Methods(http.MethodGet)
	api.HandleFunc("/audio/tags", apiHandler.TagsHandler).Methods(http.MethodPost)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server stopped")
}
