package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cppla/postboard/utils"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	TokenTTLHours      int
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis for caching and realtime relay
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Image ingestion
	ImageMaxWidth    int
	ImageJPEGQuality int
	ImageMaxPixels   int
	UploadMaxMB      int
	// Blob storage: "database" or "minio"
	StorageBackend string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	// Realtime
	RealtimeChannel string
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: .env -> config/config.json -> defaults -> environment variable overrides
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Printf("invalid config/config.json: %v", err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// TokenTTL is the bearer token lifetime; zero means tokens never expire.
func (c AppConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// LogOptions projects the logging section for utils.InitLogger.
func (c AppConfig) LogOptions() utils.LogOptions {
	return utils.LogOptions{
		Level:      c.LogLevel,
		Path:       c.LogPath,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
		Compress:   c.LogCompress,
	}
}

// GinLogOptions is LogOptions redirected to the gin access log.
func (c AppConfig) GinLogOptions() utils.LogOptions {
	opts := c.LogOptions()
	opts.Path = c.GinPath
	return opts
}

// RedisOptions projects the redis section for utils.InitRedis.
func (c AppConfig) RedisOptions() utils.RedisOptions {
	return utils.RedisOptions{Host: c.RedisHost, Port: c.RedisPort, DB: c.RedisDB, Password: c.RedisPassword}
}

// TranscodeOptions projects the image section for utils.TranscodeImage.
func (c AppConfig) TranscodeOptions() utils.TranscodeOptions {
	return utils.TranscodeOptions{MaxWidth: c.ImageMaxWidth, Quality: c.ImageJPEGQuality, MaxPixels: c.ImageMaxPixels}
}

// UploadMaxBytes is the accepted multipart upload size.
func (c AppConfig) UploadMaxBytes() int64 {
	return int64(c.UploadMaxMB) << 20
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads grouped sections into out if the file is present.
// Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		s, _ := m[key].(string)
		return s
	}
	getInt := func(m map[string]any, key string) int {
		f, _ := m[key].(float64)
		return int(f)
	}
	getBool := func(m map[string]any, key string) bool {
		b, _ := m[key].(bool)
		return b
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, _ := m[key].([]any)
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}

	if app, ok := raw["app"]; ok {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		out.TokenTTLHours = getInt(app, "TokenTTLHours")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
		out.GinMode = getString(app, "GinMode")
		out.GinPath = getString(app, "GinPath")
	}
	if dbs, ok := raw["database"]; ok {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}
	if rds, ok := raw["redis"]; ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
	}
	if lg, ok := raw["log"]; ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}
	if img, ok := raw["images"]; ok {
		out.ImageMaxWidth = getInt(img, "MaxWidth")
		out.ImageJPEGQuality = getInt(img, "JPEGQuality")
		out.ImageMaxPixels = getInt(img, "MaxPixels")
		out.UploadMaxMB = getInt(img, "UploadMaxMB")
	}
	if st, ok := raw["storage"]; ok {
		out.StorageBackend = getString(st, "Backend")
		out.MinioEndpoint = getString(st, "MinioEndpoint")
		out.MinioAccessKey = getString(st, "MinioAccessKey")
		out.MinioSecretKey = getString(st, "MinioSecretKey")
		out.MinioBucket = getString(st, "MinioBucket")
		out.MinioUseSSL = getBool(st, "MinioUseSSL")
	}
	if rt, ok := raw["realtime"]; ok {
		out.RealtimeChannel = getString(rt, "Channel")
	}
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "3001"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		if c.DBDriver == "postgres" {
			c.DBPort = "5432"
		} else {
			c.DBPort = "3306"
		}
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "postboard"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.ImageMaxWidth == 0 {
		c.ImageMaxWidth = 800
	}
	if c.ImageJPEGQuality == 0 {
		c.ImageJPEGQuality = 80
	}
	if c.ImageMaxPixels == 0 {
		c.ImageMaxPixels = 25_000_000
	}
	if c.UploadMaxMB == 0 {
		c.UploadMaxMB = 10
	}
	if c.StorageBackend == "" {
		c.StorageBackend = "database"
	}
	if c.RealtimeChannel == "" {
		c.RealtimeChannel = "postboard:realtime"
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("TOKEN_TTL_HOURS", ""); v != "" {
		c.TokenTTLHours = mustParseInt(v)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.DBDriver = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("IMAGE_MAX_WIDTH", ""); v != "" {
		c.ImageMaxWidth = mustParseInt(v)
	}
	if v := getEnv("IMAGE_JPEG_QUALITY", ""); v != "" {
		c.ImageJPEGQuality = mustParseInt(v)
	}
	if v := getEnv("IMAGE_MAX_PIXELS", ""); v != "" {
		c.ImageMaxPixels = mustParseInt(v)
	}
	if v := getEnv("UPLOAD_MAX_MB", ""); v != "" {
		c.UploadMaxMB = mustParseInt(v)
	}
	if v := getEnv("STORAGE_BACKEND", ""); v != "" {
		c.StorageBackend = v
	}
	if v := getEnv("MINIO_ENDPOINT", ""); v != "" {
		c.MinioEndpoint = v
	}
	if v := getEnv("MINIO_ACCESS_KEY", ""); v != "" {
		c.MinioAccessKey = v
	}
	if v := getEnv("MINIO_SECRET_KEY", ""); v != "" {
		c.MinioSecretKey = v
	}
	if v := getEnv("MINIO_BUCKET", ""); v != "" {
		c.MinioBucket = v
	}
	if v := getEnv("MINIO_USE_SSL", ""); v != "" {
		c.MinioUseSSL = v == "true"
	}
	if v := getEnv("REALTIME_CHANNEL", ""); v != "" {
		c.RealtimeChannel = v
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
