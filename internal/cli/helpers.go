package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/stridefit/stride/internal/daemon"
	"github.com/stridefit/stride/internal/logger"
)

var buildVersion = "dev"

// loadConfig reads --config or the default path.
func loadConfig() (daemon.Config, error) {
	if configPath != "" {
		return daemon.LoadConfigFrom(configPath)
	}
	return daemon.LoadConfig()
}

// newLogger builds the process logger. One-shot commands only log warnings
// unless --verbose is set.
func newLogger(cfg daemon.Config, quiet bool) (*zap.Logger, error) {
	lc := cfg.Logging
	switch {
	case verbose:
		lc.Level = "debug"
	case quiet:
		lc.Level = "warn"
	}
	return logger.New(lc, buildVersion)
}

// openDaemon wires the services for a one-shot command. The caller closes it.
func openDaemon(ctx context.Context) (*daemon.Daemon, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg, true)
	if err != nil {
		return nil, err
	}
	return daemon.NewWithConfig(ctx, cfg, log)
}

// withDaemon runs fn with freshly wired services and closes them after.
func withDaemon(cmd *cobra.Command, fn func(ctx context.Context, d *daemon.Daemon) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := openDaemon(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = d.Close()
		_ = d.Log.Sync()
	}()
	return fn(ctx, d)
}

// render writes v as JSON or YAML, or calls text for the default format.
func render(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	out := cmd.OutOrStdout()
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// Round-trip through JSON so YAML keys match the API field names.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		return text(out)
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", outputFormat)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
