package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rugwirobaker/flowsink/internal/flag"
)

// Config is the on-disk settings for a flowsink daemon: which delegate
// backs the sink, where it listens, and how it logs.
type Config struct {
	SocketFilePath  string        `yaml:"socket_file_path"`  // /var/run/flowsink.sock
	Delegate        string        `yaml:"delegate"`          // "stream", "vsock", "ssh" or "terminal"
	VsockCID        uint32        `yaml:"vsock_cid"`         // used when delegate == "vsock"
	VsockPort       uint32        `yaml:"vsock_port"`        // used when delegate == "vsock"
	InitialWritable bool          `yaml:"initial_writable"`  // sink's writability before any SetWritable call
	ReconnectMin    time.Duration `yaml:"reconnect_min"`     // backoff.Min for delegate.Stream
	ReconnectMax    time.Duration `yaml:"reconnect_max"`     // backoff.Max for delegate.Stream
	CompressionMin  int           `yaml:"compression_min"`   // bytes; batches smaller than this skip zstd
	Log             Log           `yaml:"log"`
}

type Log struct {
	Format    string  `yaml:"format"`         // "text", "json"
	Timestamp bool    `yaml:"timestamp"`      // show timestamp
	Debug     bool    `yaml:"debug"`          // include debug logging
	Path      *string `yaml:"path,omitempty"` // /var/log/flowsink.log
}

func Default() *Config {
	return &Config{
		SocketFilePath:  "/var/run/flowsink.sock",
		Delegate:        "stream",
		InitialWritable: true,
		ReconnectMin:    100 * time.Millisecond,
		ReconnectMax:    10 * time.Second,
		CompressionMin:  512,
		Log: Log{
			Format:    "text",
			Timestamp: true,
			Debug:     false,
		},
	}
}

func (cfg *Config) Write(w io.Writer) error {
	encoder := yaml.NewEncoder(w)

	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

func FromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg = new(Config)

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) OverrideWithFlags(ctx context.Context) {
	if socketFile := flag.GetString(ctx, "socket-file"); socketFile != "" {
		cfg.SocketFilePath = socketFile
	}
	if delegate := flag.GetString(ctx, "delegate"); delegate != "" {
		cfg.Delegate = delegate
	}
	if cid := flag.GetInt(ctx, "vsock-cid"); cid != 0 {
		cfg.VsockCID = uint32(cid)
	}
	if port := flag.GetInt(ctx, "vsock-port"); port != 0 {
		cfg.VsockPort = uint32(port)
	}
	if logFormat := flag.GetString(ctx, "log-format"); logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if logTimestamp := flag.GetBool(ctx, "log-timestamp"); logTimestamp {
		cfg.Log.Timestamp = logTimestamp
	}
	if logBaseDir := flag.GetString(ctx, "log-path"); logBaseDir != "" {
		cfg.Log.Path = &logBaseDir
	}
}
