package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/etpamelo/gallerybox/internal/server"
	"github.com/etpamelo/gallerybox/internal/server/generation"
	"github.com/etpamelo/gallerybox/internal/server/manifest"
	"github.com/etpamelo/gallerybox/internal/server/store"
	"github.com/etpamelo/gallerybox/internal/utils"
	"github.com/etpamelo/gallerybox/internal/version"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "GALLERYBOX"
	configFileName = "gallerybox"
)

// legacyEnv maps config keys to the plain variable names older deployments use.
var legacyEnv = map[string]string{
	"admin.secret":               "ADMIN_SECRET",
	"store.github.token":         "GITHUB_TOKEN",
	"store.github.repo":          "GITHUB_REPO",
	"store.github.branch":        "GITHUB_BRANCH",
	"generation.api_url":         "SEEDREAM_API_URL",
	"generation.api_key":         "SEEDREAM_API_KEY",
	"generation.model":           "SEEDREAM_MODEL",
	"generation.default_size":    "SEEDREAM_DEFAULT_SIZE",
	"generation.default_quality": "SEEDREAM_DEFAULT_QUALITY",
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gallerybox",
		Short:   "GalleryBox catalog server",
		Version: version.Detailed(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			debug, _ := cmd.Flags().GetBool("debug")
			closeLog, err := setupLogger(cfg.LogFile, debug)
			if err != nil {
				return err
			}
			defer closeLog()

			cmd.SilenceUsage = true
			logConfig(cfg)

			srv, err := server.New(cfg)
			if err != nil {
				return err
			}

			defer slog.Info("Bye!")
			return srv.Start(cmd.Context())
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	cmd.Flags().String("cert", "", "Path to the TLS certificate file")
	cmd.Flags().String("key", "", "Path to the TLS key file")
	cmd.Flags().String("backend", store.BackendGitHub, "Storage backend (github, s3, memory)")
	cmd.Flags().Bool("debug", false, "Enable debug logs")
	cmd.PersistentFlags().StringP("config", "c", "", "Config file (yaml or json)")
	cmd.PersistentFlags().String("env-file", ".env", "Dotenv file loaded before reading the environment")
	return cmd
}

func main() {
	if _, err := setupLogger("", false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	// dotenv never overrides variables already set
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file '%s': %w", envFile, err)
		}
	}

	v := viper.New()

	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("http.allow_origins", []string{"*"})
	v.SetDefault("http.max_body_bytes", server.DefaultMaxBodyBytes)
	v.SetDefault("http.generate_rate", server.DefaultGenerateRate)
	v.SetDefault("admin.secret", "")
	v.SetDefault("manifest_path", manifest.DefaultPath)
	v.SetDefault("log_file", "")

	v.SetDefault("store.backend", store.BackendGitHub)
	v.SetDefault("store.github.api_url", store.DefaultGitHubAPIURL)
	v.SetDefault("store.github.token", "")
	v.SetDefault("store.github.repo", "")
	v.SetDefault("store.github.branch", store.DefaultBranch)
	v.SetDefault("store.github.timeout", store.DefaultTimeout)
	v.SetDefault("store.s3.bucket_name", "")
	v.SetDefault("store.s3.prefix", "")
	v.SetDefault("store.s3.region", "")
	v.SetDefault("store.s3.access_key", "")
	v.SetDefault("store.s3.secret_key", "")
	v.SetDefault("store.s3.endpoint", "")

	v.SetDefault("generation.api_url", "")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.model", generation.DefaultModel)
	v.SetDefault("generation.default_size", generation.DefaultSize)
	v.SetDefault("generation.default_quality", generation.DefaultQuality)
	v.SetDefault("generation.max_image_bytes", generation.DefaultMaxImageBytes)
	v.SetDefault("generation.timeout", generation.DefaultTimeout)

	// config path
	if configFilePath, _ := cmd.Flags().GetString("config"); configFilePath != "" {
		v.SetConfigFile(configFilePath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(userHomeDir(), ".config", configFileName))
		v.SetConfigName(configFileName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	// flags win over the config file only when set explicitly
	v.BindPFlag("http.addr", cmd.Flags().Lookup("bind"))
	v.BindPFlag("http.cert_file", cmd.Flags().Lookup("cert"))
	v.BindPFlag("http.key_file", cmd.Flags().Lookup("key"))
	v.BindPFlag("store.backend", cmd.Flags().Lookup("backend"))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy)
	}

	var cfg server.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}
	return &cfg, nil
}

func setupLogger(logFile string, debug bool) (func() error, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	if logFile == "" {
		slog.SetDefault(slog.New(stdoutHandler))
		return func() error { return nil }, nil
	}

	logFile, err := utils.ResolvePath(logFile)
	if err != nil {
		return nil, fmt.Errorf("resolve log file: %w", err)
	}
	if err := utils.EnsureParent(logFile); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))
	return file.Close, nil
}

func logConfig(cfg *server.Config) {
	slog.Info("config",
		"addr", cfg.HTTP.Addr,
		"tls", cfg.HTTP.TLS(),
		"backend", cfg.Store.Backend,
		"repo", cfg.Store.GitHub.Repo,
		"branch", cfg.Store.GitHub.Branch,
		"github_token", utils.MaskSecret(cfg.Store.GitHub.Token),
		"admin_secret", utils.MaskSecret(cfg.Admin.Secret),
		"generation_url", cfg.Generation.APIURL,
		"generation_timeout", cfg.Generation.Timeout.Round(time.Second),
	)
}

func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
