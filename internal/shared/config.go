package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	StatusAddr  string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration

	CitiesFile string
	OutputCSV  string
	Locale     string
	ChromePath string
	Headless   bool

	RateLimit      time.Duration
	ActionTimeout  time.Duration
	NavTimeout     time.Duration
	MaxPerCity     int
	ExpandAttempts int
	PageTurns      int
	StallLimit     int
	MaxScrollSteps int
	FlushEvery     int
	PreviewMax     int
	DefaultZoom    int

	GeocoderBase      string
	GeocoderUserAgent string
	GeocoderRPS       float64
}

// Load reads the process environment, after a best-effort .env load.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg(".env not loaded")
	}
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	ms := func(k string, def int) time.Duration { return time.Duration(atoi(k, def)) * time.Millisecond }

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		StatusAddr:  os.Getenv("STATUS_ADDR"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    os.Getenv("MYSQL_DSN"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,

		CitiesFile: env("CITIES_FILE", "config/cities.toml"),
		OutputCSV:  env("OUTPUT_CSV", "OUTPUT.csv"),
		Locale:     env("MAPS_LOCALE", "en"),
		ChromePath: os.Getenv("CHROME_PATH"),
		Headless:   envBool("HEADLESS", true),

		RateLimit:      ms("RATE_LIMIT_MS", 800),
		ActionTimeout:  ms("ACTION_TIMEOUT_MS", 15000),
		NavTimeout:     ms("NAV_TIMEOUT_MS", 60000),
		MaxPerCity:     atoi("MAX_PER_CITY", 400),
		ExpandAttempts: atoi("EXPAND_ATTEMPTS", 1),
		PageTurns:      atoi("MAX_PAGE_TURNS", 10),
		StallLimit:     atoi("STALL_LIMIT", 1),
		MaxScrollSteps: atoi("MAX_SCROLL_STEPS", 200),
		FlushEvery:     atoi("FLUSH_EVERY", 10),
		PreviewMax:     atoi("PREVIEW_MAX", 40),
		DefaultZoom:    atoi("DEFAULT_ZOOM", 12),

		GeocoderBase:      os.Getenv("GEOCODER_BASE_URL"),
		GeocoderUserAgent: env("GEOCODER_USER_AGENT", "placeharvest/1.0"),
		GeocoderRPS:       envFloat("GEOCODER_RPS", 1),
	}
	if c.MySQLDSN == "" {
		log.Info().Msg("MYSQL_DSN is empty, mirror disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
