package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/go-linkboard/internal/catalog"
)

const defaultImage = "https://images.unsplash.com/photo-1507525428034-b723cf961d3e?q=80&w=2073"

type Config struct {
	Port          int
	DBDSN         string
	AdminPassword string
	Title         string
	Subtitle      string
	ContactURL    string
	Images        []string
	Catalog       catalog.Catalog

	DisplayOffsetHours int
	ClickBuffer        int
	LoginRateRPS       float64
	LoginRateBurst     int
	SessionMaxAgeDays  int
	SecureCookie       bool

	// TrustProxyHeader lets forwarded client-address headers key the login
	// limiter. Enable only behind a proxy that overwrites them.
	TrustProxyHeader bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from the environment, after applying a .env file
// if one exists in the working directory.
func Load() Config {
	_ = godotenv.Load()

	links, err := catalog.ParseLinks(os.Getenv("LINKS"))
	if err != nil {
		log.Warn().Err(err).Msg("invalid LINKS json, no links configured")
	}
	friends, err := catalog.ParseFriends(os.Getenv("FRIENDS"))
	if err != nil {
		log.Warn().Err(err).Msg("invalid FRIENDS json, no partner links configured")
	}

	images := splitList(getenv("IMG", defaultImage))
	if len(images) == 0 {
		images = []string{defaultImage}
	}

	return Config{
		Port:               getint("PORT", 8080),
		DBDSN:              getenv("DB_DSN", "file:linkboard.db?_txlock=immediate&_busy_timeout=5000"),
		AdminPassword:      getenv("ADMIN_PASSWORD", getenv("admin", "")),
		Title:              getenv("TITLE", "Cloud Portal · Curated Links"),
		Subtitle:           getenv("SUBTITLE", "Hand-picked resources, always reachable"),
		ContactURL:         getenv("CONTACT_URL", ""),
		Images:             images,
		Catalog:            catalog.Catalog{Links: links, Friends: friends},
		DisplayOffsetHours: getint("DISPLAY_OFFSET_HOURS", 8),
		ClickBuffer:        getint("CLICK_BUFFER", 10000),
		LoginRateRPS:       getfloat("LOGIN_RATE_RPS", 0.2),
		LoginRateBurst:     getint("LOGIN_RATE_BURST", 5),
		SessionMaxAgeDays:  getint("SESSION_MAX_AGE_DAYS", 30),
		SecureCookie:       getbool("SECURE_COOKIE", true),
		TrustProxyHeader:   getbool("TRUST_PROXY_HEADER", false),
	}
}
