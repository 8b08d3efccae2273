package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
)

// QuranConfig is read from config.json in the data directory.
type QuranConfig struct {
	InstanceName string `json:"instance_name"`
	DataDir      string `json:"-"`

	// Language and text type used to build the word index. The word
	// extraction splits this exact rendition on single spaces.
	CanonicalLanguage string `json:"canonical_language"`
	CanonicalTextType string `json:"canonical_text_type"`

	// Upper bound on text rows scanned by a substring search.
	SearchScanLimit int `json:"search_scan_limit"`

	Hostnames      []string `json:"hostnames"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	LogLatency     bool     `json:"log_latency"`
}

// ServerRuntimeConfig holds flags that only make sense for one server
// invocation, as opposed to QuranConfig which describes the instance.
type ServerRuntimeConfig struct {
	Addr               string
	Port               int
	CertDir            string
	AcmeEnabled        bool
	BehindLoadBalancer bool
	RateLimit          int
	GzipLevel          int
}

const (
	DefaultCanonicalLanguage = "arabic"
	DefaultCanonicalTextType = "simple-clean"
	DefaultSearchScanLimit   = 1000
)

// Load reads config.json from dataDir and fills in defaults.
func Load(dataDir string) (*QuranConfig, error) {
	confPath := path.Join(dataDir, "config.json")
	confFile, err := os.Open(confPath)
	if err != nil {
		return nil, fmt.Errorf("error opening config.json: %w", err)
	}
	defer confFile.Close()

	var conf QuranConfig
	dec := json.NewDecoder(confFile)
	if err := dec.Decode(&conf); err != nil {
		return nil, fmt.Errorf("error reading config.json: %w", err)
	}

	conf.DataDir = dataDir
	conf.ApplyDefaults()
	return &conf, nil
}

func (c *QuranConfig) ApplyDefaults() {
	if c.CanonicalLanguage == "" {
		c.CanonicalLanguage = DefaultCanonicalLanguage
	}
	if c.CanonicalTextType == "" {
		c.CanonicalTextType = DefaultCanonicalTextType
	}
	if c.SearchScanLimit <= 0 {
		c.SearchScanLimit = DefaultSearchScanLimit
	}
}

// DBPath is the location of the graph database within the data directory.
func (c *QuranConfig) DBPath() string {
	return path.Join(c.DataDir, "quranref.db")
}
