package cli

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/cv-container/internal/config"
	"github.com/shinji-kodama/cv-container/internal/cvp"
	"github.com/shinji-kodama/cv-container/internal/model"
)

// connFlags are the connection overrides shared by apply and watch. They
// win over the config file and CVP_* variables.
type connFlags struct {
	hosts    []string
	port     int
	username string
	insecure bool
	timeout  int
}

func (f *connFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.hosts, "host", nil,
		"CloudVision node(s), tried in order (overrides config and CVP_HOST)")
	cmd.Flags().IntVar(&f.port, "port", 0, "HTTPS port (default: 443)")
	cmd.Flags().StringVarP(&f.username, "username", "u", "",
		"CloudVision user (the password is read from the config or CVP_PASSWORD)")
	cmd.Flags().BoolVarP(&f.insecure, "insecure", "k", false, "Skip TLS certificate verification")
	cmd.Flags().IntVar(&f.timeout, "timeout", 0, "Per-request timeout in seconds (default: 30)")
}

// loadConnection layers the flags on top of the config file and
// environment.
func loadConnection(flags *connFlags) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, model.WrapCLIError(model.ExitGeneralError, "cannot load connection settings", err)
	}

	if len(flags.hosts) > 0 {
		cfg.Hosts = flags.hosts
	}
	if flags.port != 0 {
		cfg.Port = flags.port
	}
	if flags.username != "" {
		cfg.Username = flags.username
	}
	if flags.insecure {
		cfg.ValidateCerts = false
	}
	if flags.timeout != 0 {
		cfg.Timeout = flags.timeout
	}
	return cfg, nil
}

// connect opens a CloudVision session.
func connect(ctx context.Context, flags *connFlags, logger zerolog.Logger) (*cvp.Client, error) {
	cfg, err := loadConnection(flags)
	if err != nil {
		return nil, err
	}

	client, err := cvp.NewClient(cfg, cvp.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, model.WrapCLIError(model.ExitCVPUnreachable, "cannot connect to CloudVision", err)
	}
	logger.Debug().Str("host", client.Host()).Msg("CloudVision session open")
	return client, nil
}
