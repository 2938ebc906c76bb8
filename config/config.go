package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultInventoryURL is the collection listing the tool was built for.
const DefaultInventoryURL = "https://www.tcdb.com/ViewCollectionMode.cfm?Member=RSmith1217&MODE=&Type=Baseball&CollectionID=1"

// Config holds sync configuration.
type Config struct {
	InventoryURL     string
	CookieFile       string
	UserAgent        string
	OutputFile       string
	OutputFormat     string // json, csv, or dual
	MaxPages         int
	PageDelay        time.Duration
	MaxAttempts      int
	RetryBase        time.Duration
	Timeout          time.Duration
	PriceCards       bool
	MaxCards         int // 0 = price every card
	CardDelay        time.Duration
	MetricsAddr      string
	Verbose          bool
	RespectRobotsTxt bool
}

// DefaultConfig returns conservative defaults for tcdb.com.
func DefaultConfig() *Config {
	return &Config{
		InventoryURL: DefaultInventoryURL,
		CookieFile:   "",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		OutputFile:       "data/tcdb_inventory.json",
		OutputFormat:     "json",
		MaxPages:         80,
		PageDelay:        350 * time.Millisecond,
		MaxAttempts:      6,
		RetryBase:        1500 * time.Millisecond,
		Timeout:          30 * time.Second,
		PriceCards:       false,
		MaxCards:         0,
		CardDelay:        450 * time.Millisecond,
		MetricsAddr:      "",
		Verbose:          false,
		RespectRobotsTxt: false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.InventoryURL == "" {
		return fmt.Errorf("inventory URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.InventoryURL)
	if err != nil {
		return fmt.Errorf("invalid inventory URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("inventory URL must include a host")
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.RetryBase < 0 {
		return fmt.Errorf("retry base cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxCards < 0 {
		return fmt.Errorf("max cards cannot be negative")
	}
	if c.CardDelay < 0 {
		return fmt.Errorf("card delay cannot be negative")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "json" && c.OutputFormat != "csv" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be json, csv, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// ReadCookie loads a session cookie header value from a file. It accepts a
// raw Cookie header value or a copy-pasted curl snippet: a leading
// "Cookie:" label, surrounding quotes, and a "cookie=" prefix are stripped.
// An empty path yields an empty cookie.
func ReadCookie(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read cookie file: %w", err)
	}

	text := strings.TrimSpace(string(raw))
	text = strings.TrimSpace(strings.Replace(text, "Cookie:", "", 1))
	text = strings.Trim(text, `'"`)
	if strings.HasPrefix(strings.ToLower(text), "cookie=") {
		text = strings.TrimSpace(text[len("cookie="):])
	}
	return text, nil
}

// EnvString returns the value of an environment variable and whether it was
// set to a non-empty value.
func EnvString(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

// EnvInt parses an integer environment variable.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, true, nil
}

// EnvBool parses a boolean environment variable.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return value, true, nil
}
