package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/MrEthical07/goIdem/identity"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "idemd",
		Short:         "Demo payments API behind the idempotency coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfigSources(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig(v)
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg.LogEnv, cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			ln, err := net.Listen("tcp", cfg.Listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Listen, err)
			}
			err = a.serve(cmd.Context(), ln)
			logger.Info("idemd stopped", zap.Error(err))
			return err
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "optional YAML config file")
	registerFlags(flags)
	cobra.CheckErr(bindFlags(v, flags))

	cmd.AddCommand(newLintCommand(v), newTokenCommand(v))
	return cmd
}

// loadConfigSources layers .env and the optional config file beneath flags
// and IDEMD_* environment variables.
func loadConfigSources(v *viper.Viper) error {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	path := strings.TrimSpace(v.GetString("config"))
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func newLintCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Validate the resolved configuration and print advisory warnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig(v)
			if err != nil {
				return err
			}
			ec := cfg.engineConfig()
			if err := ec.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			out := cmd.OutOrStdout()
			warnings := ec.Lint()
			if len(warnings) == 0 {
				fmt.Fprintln(out, "ok")
				return nil
			}
			for _, w := range warnings {
				fmt.Fprintf(out, "%-5s %s: %s\n", w.Severity, w.Code, w.Message)
			}
			return nil
		},
	}
}

func newTokenCommand(v *viper.Viper) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the configured jwt-secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := v.GetString("jwt-secret")
			if secret == "" {
				return errors.New("jwt-secret is required")
			}
			if subject == "" {
				return errors.New("--subject is required")
			}
			bearer, err := identity.NewBearerJWT(identity.JWTConfig{
				SigningMethod: identity.MethodHS256,
				Secret:        []byte(secret),
				Issuer:        v.GetString("jwt-issuer"),
				Audience:      v.GetString("jwt-audience"),
			})
			if err != nil {
				return err
			}
			token, err := bearer.Issue(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject (caller identity)")
	cmd.Flags().DurationVar(&ttl, "token-ttl", time.Hour, "token lifetime")
	return cmd
}

