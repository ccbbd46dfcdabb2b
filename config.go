/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	acceptedNames       []string
	bind                string
	celebrationDuration time.Duration
	frameInterval       time.Duration
	maxImageSize        int64
	metrics             bool
	pingInterval        time.Duration
	port                int
	prefix              string
	presetImage         string
	profile             bool
	sessionTimeout      time.Duration
	tlsCert             string
	tlsKey              string
	verbose             bool
	version             bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if len(newAllowList(c.acceptedNames)) == 0 {
		return errors.New("at least one non-empty --accepted-names entry is required")
	}
	if c.celebrationDuration <= 0 {
		return fmt.Errorf("invalid celebration duration (must be positive): %s", c.celebrationDuration)
	}
	if c.frameInterval <= 0 {
		return fmt.Errorf("invalid frame interval (must be positive): %s", c.frameInterval)
	}
	if c.pingInterval <= 0 {
		return fmt.Errorf("invalid ping interval (must be positive): %s", c.pingInterval)
	}
	if c.sessionTimeout > 0 && c.pingInterval >= c.sessionTimeout {
		return fmt.Errorf("ping interval (%s) must be shorter than session timeout (%s)", c.pingInterval, c.sessionTimeout)
	}
	if c.maxImageSize < 1 {
		return fmt.Errorf("invalid max image size (must be positive): %d", c.maxImageSize)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// presetImagePath resolves the preset partner image under the URL prefix,
// leaving absolute URLs untouched.
func (c *Config) presetImagePath() string {
	if c.presetImage == "" {
		return ""
	}
	if strings.Contains(c.presetImage, "://") {
		return c.presetImage
	}
	return c.prefix + "/" + strings.TrimPrefix(c.presetImage, "/")
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SWEETHEART")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "sweetheart",
		Short:         "A tiny interactive greeting card, served as a single webapp.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringSliceVar(&cfg.acceptedNames, "accepted-names", []string{"bubu", "celia"}, "names allowed past the entry screen, case-insensitive (env: SWEETHEART_ACCEPTED_NAMES)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SWEETHEART_BIND)")
	fs.DurationVar(&cfg.celebrationDuration, "celebration-duration", 4*time.Second, "how long confetti is emitted after a yes (env: SWEETHEART_CELEBRATION_DURATION)")
	fs.DurationVar(&cfg.frameInterval, "frame-interval", 50*time.Millisecond, "time between confetti frames (env: SWEETHEART_FRAME_INTERVAL)")
	fs.Int64Var(&cfg.maxImageSize, "max-image-size", 8<<20, "largest accepted websocket message, in bytes, including uploaded images (env: SWEETHEART_MAX_IMAGE_SIZE)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "expose prometheus metrics at /metrics (env: SWEETHEART_METRICS)")
	fs.DurationVar(&cfg.pingInterval, "ping-interval", 30*time.Second, "time between websocket keepalive pings (env: SWEETHEART_PING_INTERVAL)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SWEETHEART_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SWEETHEART_PREFIX)")
	fs.StringVar(&cfg.presetImage, "preset-image", "assets/dudu.svg", "image shown for the sender, relative to the prefix or an absolute URL (env: SWEETHEART_PRESET_IMAGE)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SWEETHEART_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 30*time.Minute, "time before idle visits are disconnected (env: SWEETHEART_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SWEETHEART_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SWEETHEART_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SWEETHEART_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SWEETHEART_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("sweetheart v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
