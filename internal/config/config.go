package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/lcalzada-xor/eapsul/internal/core/domain"
)

// ErrMissingParameter is returned by Validate for a required setting left empty.
var ErrMissingParameter = errors.New("missing required parameter")

// ModeSocket selects the TCP learner transport; any other mode is a batch file path.
const ModeSocket = "socket"

// Config holds all application configuration.
type Config struct {
	InjectInterface string `yaml:"inject_interface"`
	SniffInterface  string `yaml:"sniff_interface"`
	SSID            string `yaml:"ssid"`
	PSK             string `yaml:"psk"`
	UserID          string `yaml:"user_id"`
	AnonID          string `yaml:"anon_id"`
	Gateway         string `yaml:"gateway"`
	Mode            string `yaml:"mode"`

	ListenAddr     string  `yaml:"listen_addr"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
	Injection      string  `yaml:"injection"`
	OptimizeRates  bool    `yaml:"optimize_rates"`

	StrictOrder   bool `yaml:"strict_order"`
	ResetAssoc    bool `yaml:"reset_assoc"`
	ResetAttempts int  `yaml:"reset_attempts"`
	ReportElapsed bool `yaml:"report_elapsed"`

	DiscoveryAttempts int  `yaml:"discovery_attempts"`
	DiscoveryDwellMS  int  `yaml:"discovery_dwell_ms"`
	DiscoveryProbe    bool `yaml:"discovery_probe"`

	LogFile     string `yaml:"log_file"`
	LogFormat   string `yaml:"log_format"`
	Debug       bool   `yaml:"debug"`
	PcapPath    string `yaml:"pcap_path"`
	MetricsAddr string `yaml:"metrics_addr"`
	TracePath   string `yaml:"trace_path"`
	Progress    bool   `yaml:"progress"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Gateway:           domain.DefaultGateway,
		ListenAddr:        "0.0.0.0:4444",
		TimeoutSeconds:    0.5,
		Injection:         "auto",
		ResetAttempts:     5,
		DiscoveryAttempts: 100,
		DiscoveryDwellMS:  100,
		LogFormat:         "json",
	}
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays EAPSUL_* environment variables onto c.
func (c *Config) ApplyEnv() {
	c.InjectInterface = getEnv("EAPSUL_INJECT_IFACE", c.InjectInterface)
	c.SniffInterface = getEnv("EAPSUL_SNIFF_IFACE", c.SniffInterface)
	c.SSID = getEnv("EAPSUL_SSID", c.SSID)
	c.PSK = getEnv("EAPSUL_PSK", c.PSK)
	c.UserID = getEnv("EAPSUL_USER", c.UserID)
	c.AnonID = getEnv("EAPSUL_ANON", c.AnonID)
	c.Gateway = getEnv("EAPSUL_GATEWAY", c.Gateway)
	c.Mode = getEnv("EAPSUL_MODE", c.Mode)
	c.ListenAddr = getEnv("EAPSUL_LISTEN", c.ListenAddr)
	c.TimeoutSeconds = getEnvFloat("EAPSUL_TIMEOUT", c.TimeoutSeconds)
	c.Injection = getEnv("EAPSUL_INJECTION", c.Injection)
	c.StrictOrder = getEnvBool("EAPSUL_STRICT_ORDER", c.StrictOrder)
	c.ResetAssoc = getEnvBool("EAPSUL_RESET_ASSOC", c.ResetAssoc)
	c.ReportElapsed = getEnvBool("EAPSUL_REPORT_ELAPSED", c.ReportElapsed)
	c.DiscoveryAttempts = getEnvInt("EAPSUL_DISCOVERY_ATTEMPTS", c.DiscoveryAttempts)
	c.LogFile = getEnv("EAPSUL_LOG", c.LogFile)
	c.LogFormat = getEnv("EAPSUL_LOG_FORMAT", c.LogFormat)
	c.Debug = getEnvBool("EAPSUL_DEBUG", c.Debug)
	c.PcapPath = getEnv("EAPSUL_PCAP", c.PcapPath)
	c.MetricsAddr = getEnv("EAPSUL_METRICS_ADDR", c.MetricsAddr)
	c.TracePath = getEnv("EAPSUL_TRACE", c.TracePath)
}

// RegisterFlags binds every setting to a flag on fs, using c's current values
// as defaults.
func RegisterFlags(fs *pflag.FlagSet, c *Config) {
	fs.StringVarP(&c.InjectInterface, "inject", "i", c.InjectInterface, "Interface used to inject frames (monitor mode)")
	fs.StringVarP(&c.SniffInterface, "sniff", "t", c.SniffInterface, "Interface used to capture frames (monitor mode)")
	fs.StringVarP(&c.SSID, "ssid", "s", c.SSID, "SSID of the target network")
	fs.StringVarP(&c.PSK, "psk", "p", c.PSK, "Pre-shared key of the target network")
	fs.StringVarP(&c.UserID, "user", "u", c.UserID, "EAP user identity (enables EAP queries)")
	fs.StringVarP(&c.AnonID, "anon", "a", c.AnonID, "EAP anonymous outer identity")
	fs.StringVarP(&c.Gateway, "gateway", "g", c.Gateway, "Gateway IP address")
	fs.StringVarP(&c.Mode, "mode", "m", c.Mode, `"socket" or the path of a batch query file`)

	fs.StringVar(&c.ListenAddr, "listen", c.ListenAddr, "Learner listen address in socket mode")
	fs.Float64Var(&c.TimeoutSeconds, "timeout", c.TimeoutSeconds, "Response timeout in seconds")
	fs.StringVar(&c.Injection, "injection", c.Injection, "Injection mechanism: auto|raw|pcap")
	fs.BoolVar(&c.OptimizeRates, "optimize-rates", c.OptimizeRates, "Force legacy bitrates on the inject interface")

	fs.BoolVar(&c.StrictOrder, "strict-order", c.StrictOrder, "Reject EAP queries sent out of protocol order")
	fs.BoolVar(&c.ResetAssoc, "reset-assoc", c.ResetAssoc, "Authenticate and associate on every RESET")
	fs.IntVar(&c.ResetAttempts, "reset-attempts", c.ResetAttempts, "Association attempts per RESET")
	fs.BoolVar(&c.ReportElapsed, "report-elapsed", c.ReportElapsed, "Report measured response time instead of 0.0")

	fs.IntVar(&c.DiscoveryAttempts, "discovery-attempts", c.DiscoveryAttempts, "Channel dwells before giving up on discovery")
	fs.IntVar(&c.DiscoveryDwellMS, "discovery-dwell", c.DiscoveryDwellMS, "Discovery dwell per channel in milliseconds")
	fs.BoolVar(&c.DiscoveryProbe, "discovery-probe", c.DiscoveryProbe, "Send probe requests while discovering")

	fs.StringVar(&c.LogFile, "log", c.LogFile, "Append one JSON line per query to this file")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Diagnostic log format: json|text")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable verbose debug logging")
	fs.StringVar(&c.PcapPath, "pcap", c.PcapPath, "Path to save PCAP file (empty to disable)")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Telemetry HTTP address (empty to disable)")
	fs.StringVar(&c.TracePath, "trace", c.TracePath, "Write OpenTelemetry spans to this file (empty to disable)")
	fs.BoolVar(&c.Progress, "progress", c.Progress, "Show a progress bar on stderr in batch mode")
}

// Resolve builds the effective configuration: defaults, then the YAML file at
// configPath (if any), then EAPSUL_* variables, then flags explicitly set on fs.
func Resolve(fs *pflag.FlagSet, configPath string) (*Config, error) {
	cfg := Default()
	if configPath != "" {
		if err := cfg.LoadFile(configPath); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()

	shadow := pflag.NewFlagSet("resolve", pflag.ContinueOnError)
	RegisterFlags(shadow, cfg)
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil || shadow.Lookup(f.Name) == nil {
			return
		}
		if setErr := shadow.Set(f.Name, f.Value.String()); setErr != nil {
			err = fmt.Errorf("flag --%s: %w", f.Name, setErr)
		}
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required parameters and value ranges.
func (c *Config) Validate() error {
	required := []struct {
		name, value string
	}{
		{"inject interface (-i)", c.InjectInterface},
		{"sniff interface (-t)", c.SniffInterface},
		{"ssid (-s)", c.SSID},
		{"psk (-p)", c.PSK},
		{"mode (-m)", c.Mode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingParameter, r.name)
		}
	}
	if c.AnonID != "" && c.UserID == "" {
		return fmt.Errorf("%w: user (-u) is required with an anonymous identity", ErrMissingParameter)
	}
	if math.IsNaN(c.TimeoutSeconds) || math.IsInf(c.TimeoutSeconds, 0) || c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout must be a positive number of seconds, got %v", c.TimeoutSeconds)
	}
	if c.DiscoveryAttempts <= 0 {
		return fmt.Errorf("discovery attempts must be positive, got %d", c.DiscoveryAttempts)
	}
	if c.DiscoveryDwellMS <= 0 {
		return fmt.Errorf("discovery dwell must be positive, got %d", c.DiscoveryDwellMS)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// IsSocket reports whether the learner connects over TCP.
func (c *Config) IsSocket() bool {
	return strings.EqualFold(strings.TrimSpace(c.Mode), ModeSocket)
}

// Credential returns the EAP identity, or nil when EAP is disabled.
func (c *Config) Credential() *domain.Credential {
	if c.UserID == "" {
		return nil
	}
	return &domain.Credential{UserID: c.UserID, AnonID: c.AnonID}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
