package issuer

import (
	"os"
	"strconv"
	"strings"
)

// Config is a configuration for the issuer application
type Config struct {
	HTTPAddr    string
	ISO8583Addr string
	// RepoBackend selects the repository: "mem" or "pg".
	RepoBackend string
	DBDSN       string
	// PANHashKey peppers the PAN hashes stored by the pg backend.
	PANHashKey string
	// PINKey keys the default PIN verifier.
	PINKey string
	// ExpiryTZ is an IANA timezone name for expiry computations (e.g., "Australia/Sydney").
	ExpiryTZ string
	// ProductYears maps card product to validity years (e.g., credit=3, debit=5).
	ProductYears map[string]int
	// CardProduct is the default product used by auto-issued cards (e.g., "debit").
	CardProduct string
	// BINPrefix sets the issuer BIN prefix used to generate PANs (6/8/9 digits). Demo default: 421234
	BINPrefix string
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:    "localhost:9090",
		ISO8583Addr: "localhost:8583",
		RepoBackend: "mem",
		PANHashKey:  "dev-secret-pepper",
		PINKey:      "dev-pin-key",
		CardProduct: "debit",
		BINPrefix:   defaultBIN,
	}
}

// ConfigFromEnv builds a Config from the process environment. The runtime
// default backend is pg.
func ConfigFromEnv() *Config {
	def := DefaultConfig()
	return &Config{
		HTTPAddr:     getenv("ISSUER_HTTP_ADDR", def.HTTPAddr),
		ISO8583Addr:  getenv("ISSUER_ISO8583_ADDR", def.ISO8583Addr),
		RepoBackend:  getenv("REPO_BACKEND", "pg"),
		DBDSN:        getenv("DB_DSN", ""),
		PANHashKey:   getenv("PAN_HASH_KEY", def.PANHashKey),
		PINKey:       getenv("PIN_KEY", def.PINKey),
		ExpiryTZ:     getenv("EXPIRY_TZ", ""),
		ProductYears: parseProductYears(getenv("PRODUCT_YEARS", "")),
		CardProduct:  getenv("CARD_PRODUCT", def.CardProduct),
		BINPrefix:    getenv("BIN_PREFIX", def.BINPrefix),
	}
}

// parseProductYears reads "credit=3,debit=5". Malformed pairs are skipped.
func parseProductYears(s string) map[string]int {
	if s == "" {
		return nil
	}
	out := make(map[string]int)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		years, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || years <= 0 {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = years
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
