package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		Dataset   Dataset   `envPrefix:"DATASET_"`
		Tiles     Tiles     `envPrefix:"TILES_"`
		Camera    Camera    `envPrefix:"CAMERA_"`
		Textures  Textures  `envPrefix:"TEXTURES_"`
		Cache     Cache     `envPrefix:"CACHE_"`
		Redis     Redis     `envPrefix:"REDIS_"`
	}

	HTTP struct {
		Server Server `envPrefix:"SERVER_"`
	}

	Server struct {
		Port         string        `env:"PORT,required"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level string `env:"LEVEL,required"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"guide-helper-pointcloud"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	Dataset struct {
		BaseURL string `env:"BASE_URL" envDefault:"https://s3.us-east-2.wasabisys.com/washingtonthree/bintiles_resampled"`
		XMin    int64  `env:"XMIN" envDefault:"389400"`
		XMax    int64  `env:"XMAX" envDefault:"408600"`
		YMin    int64  `env:"YMIN" envDefault:"124200"`
		YMax    int64  `env:"YMAX" envDefault:"148200"`
	}

	Tiles struct {
		// size:radius:maxVisibleHeight, comma separated
		Tiers                string        `env:"TIERS" envDefault:"100:8:100000000"`
		FetchTimeout         time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
		MaxConcurrentFetches int           `env:"MAX_CONCURRENT_FETCHES" envDefault:"0"`
		AbortStale           bool          `env:"ABORT_STALE" envDefault:"false"`
		Strict               bool          `env:"STRICT" envDefault:"false"`
		PointSize            float64       `env:"POINT_SIZE" envDefault:"1.5"`
	}

	Camera struct {
		UpdateInterval time.Duration `env:"UPDATE_INTERVAL" envDefault:"500ms"`
		StartX         float64       `env:"START_X" envDefault:"399400"`
		StartY         float64       `env:"START_Y" envDefault:"135900"`
		StartZ         float64       `env:"START_Z" envDefault:"300"`
	}

	Textures struct {
		Enabled    bool   `env:"ENABLED" envDefault:"true"`
		GroundURL  string `env:"GROUND_URL" envDefault:"https://s3.us-east-2.wasabisys.com/washingtonthree/textures/ground_heightmap_small.png"`
		CeilingURL string `env:"CEILING_URL" envDefault:"https://s3.us-east-2.wasabisys.com/washingtonthree/textures/ceiling_heightmap_small.png"`
	}

	Cache struct {
		// none, memory, filesystem, sqlite or redis
		Backend    string `env:"BACKEND" envDefault:"memory"`
		SQLitePath string `env:"SQLITE_PATH" envDefault:"file:tiles.db?cache=shared&mode=memory"`
		FSDir      string `env:"FS_DIR" envDefault:"./tile_cache"`
		Compress   bool   `env:"COMPRESS" envDefault:"false"`
	}

	Redis struct {
		Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
		Password string        `env:"PASSWORD" envDefault:""`
		DB       int           `env:"DB" envDefault:"0"`
		TTL      time.Duration `env:"TTL" envDefault:"24h"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	if _, err := cfg.Tiles.TierSpecs(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (t Tiles) TierSpecs() ([]TierSpec, error) {
	return ParseTiers(t.Tiers)
}
