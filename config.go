package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aaronzipp/who-is-the-impostor/internal/game"
)

type Config struct {
	bind            string
	port            int
	shutdownTimeout time.Duration

	store     string
	dsn       string
	notifier  string
	redisAddr string
	migrate   bool

	wordsFile     string
	minPlayers    int
	maxPlayers    int
	maxImpostors  int
	maxRounds     int
	maxNameLength int
	maxClueLength int
	rotateWord    bool

	identityFile string

	logFormat string
	verbose   bool
}

func (c *Config) validate() error {
	switch c.store {
	case "memory":
	case "postgres":
		if c.dsn == "" {
			return errors.New("--dsn is required with --store postgres")
		}
	default:
		return fmt.Errorf("unknown store %q (memory or postgres)", c.store)
	}
	switch c.notifier {
	case "memory":
	case "redis":
		if c.redisAddr == "" {
			return errors.New("--redis-addr is required with --notifier redis")
		}
	default:
		return fmt.Errorf("unknown notifier %q (memory or redis)", c.notifier)
	}
	if c.logFormat != "text" && c.logFormat != "json" {
		return fmt.Errorf("unknown log format %q (text or json)", c.logFormat)
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	return nil
}

// settings builds the game bounds, reading the word list if one is configured
func (c *Config) settings() (game.Settings, error) {
	s := game.DefaultSettings()
	s.MinPlayers = c.minPlayers
	s.MaxPlayers = c.maxPlayers
	s.MaxImpostors = c.maxImpostors
	s.MaxRounds = c.maxRounds
	s.MaxNameLength = c.maxNameLength
	s.MaxClueLength = c.maxClueLength
	s.RotateWord = c.rotateWord
	if c.wordsFile != "" {
		words, err := game.LoadWords(c.wordsFile)
		if err != nil {
			return s, err
		}
		s.Words = words
	}
	return s, s.Validate()
}

func (c *Config) logger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if c.logFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: logDate})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: logDate})
	}
	if c.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logrus.NewEntry(logger).WithField("version", releaseVersion)
}

func defaultIdentityFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".impostor-identity.json"
	}
	return filepath.Join(dir, "impostor", "identity.json")
}

// bindEnv lets IMPOSTOR_* variables fill in flags not given on the command line
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("IMPOSTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "impostor",
		Short:         "Who is the impostor? A social deduction party game over a shared store.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.validate()
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&cfg.store, "store", "memory", "room store: memory or postgres (env: IMPOSTOR_STORE)")
	fs.StringVar(&cfg.dsn, "dsn", "", "postgres connection string (env: IMPOSTOR_DSN)")
	fs.StringVar(&cfg.notifier, "notifier", "memory", "change notifications: memory or redis (env: IMPOSTOR_NOTIFIER)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "localhost:6379", "redis address for --notifier redis (env: IMPOSTOR_REDIS_ADDR)")
	fs.StringVar(&cfg.wordsFile, "words", "", "JSON array of secret words, built-in list if empty (env: IMPOSTOR_WORDS)")
	fs.IntVar(&cfg.minPlayers, "min-players", game.MinPlayers, "players needed to start (env: IMPOSTOR_MIN_PLAYERS)")
	fs.IntVar(&cfg.maxPlayers, "max-players", 12, "largest allowed room (env: IMPOSTOR_MAX_PLAYERS)")
	fs.IntVar(&cfg.maxImpostors, "max-impostors", 3, "most impostors a room may have (env: IMPOSTOR_MAX_IMPOSTORS)")
	fs.IntVar(&cfg.maxRounds, "max-rounds", 10, "most rounds a room may have (env: IMPOSTOR_MAX_ROUNDS)")
	fs.IntVar(&cfg.maxNameLength, "max-name-length", 24, "longest player name (env: IMPOSTOR_MAX_NAME_LENGTH)")
	fs.IntVar(&cfg.maxClueLength, "max-clue-length", 60, "longest clue (env: IMPOSTOR_MAX_CLUE_LENGTH)")
	fs.BoolVar(&cfg.rotateWord, "rotate-word", false, "pick a new secret word every round (env: IMPOSTOR_ROTATE_WORD)")
	fs.StringVar(&cfg.identityFile, "identity", defaultIdentityFile(), "file remembering which player you are in each room, empty to keep it in memory (env: IMPOSTOR_IDENTITY)")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "log format: text or json (env: IMPOSTOR_LOG_FORMAT)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log debug output (env: IMPOSTOR_VERBOSE)")

	serve := newServeCmd(cfg)
	cmd.AddCommand(serve, newMigrateCmd(cfg))
	cmd.AddCommand(newPlayCmds(cfg)...)

	bindEnv(v, fs)
	bindEnv(v, serve.Flags())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("impostor v{{.Version}}\n")

	return cmd
}
