package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hashbeam/librarian"
	"github.com/hashbeam/librarian/mirror"
	"github.com/hashbeam/librarian/resolve"
)

var rootCmd = &cobra.Command{
	Use:   "librarian",
	Short: "Replicated archive library CLI",
	Long:  "CLI for managing a library of archives replicated through an OCI registry.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/librarian/config.yaml)")
	rootCmd.PersistentFlags().String("library-dir", "", "library directory (default: ~/.local/share/librarian)")
	rootCmd.PersistentFlags().String("registry", "", "registry repository prefix, e.g. ttl.sh/archives")
	rootCmd.PersistentFlags().Bool("plain-http", false, "use plain HTTP for the registry")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")

	viper.BindPFlag("library_dir", rootCmd.PersistentFlags().Lookup("library-dir"))
	viper.BindPFlag("registry", rootCmd.PersistentFlags().Lookup("registry"))
	viper.BindPFlag("plain_http", rootCmd.PersistentFlags().Lookup("plain-http"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LIBRARIAN")
	viper.AutomaticEnv()
	viper.SetDefault("library_dir", defaultLibraryDir())

	viper.ReadInConfig()
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "librarian")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "librarian")
	}
	return ".librarian"
}

func defaultLibraryDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "librarian")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "librarian")
	}
	return ".librarian"
}

func logger() *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newLibrarian builds a librarian over the configured registry mirror.
func newLibrarian() (*librarian.Librarian, error) {
	registry := viper.GetString("registry")
	if registry == "" {
		return nil, fmt.Errorf("no registry configured (use --registry or LIBRARIAN_REGISTRY)")
	}

	log := logger()

	mirrorOpts := []mirror.Option{mirror.WithLogger(log)}
	if viper.GetBool("plain_http") {
		mirrorOpts = append(mirrorOpts, mirror.WithPlainHTTP())
	}
	if username := viper.GetString("registry_username"); username != "" {
		mirrorOpts = append(mirrorOpts,
			mirror.WithAuth(mirror.StaticAuth(username, viper.GetString("registry_password"))))
	}

	backend, err := mirror.New(registry, mirrorOpts...)
	if err != nil {
		return nil, err
	}

	return librarian.New(viper.GetString("library_dir"),
		librarian.WithBackend(backend),
		librarian.WithResolver(newResolver()),
		librarian.WithLogger(log),
	)
}

// newResolver handles literal keys locally and falls back to DNS TXT and
// well-known HTTPS lookups for named links, memoizing network answers.
func newResolver() librarian.Resolver {
	return resolve.Chain(
		librarian.KeyResolver(),
		resolve.Memo(resolve.Chain(resolve.DNS(), resolve.WellKnown()), 5*time.Minute, 256),
	)
}
