package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stravella/chatwidget/internal/chatapi"
	"github.com/stravella/chatwidget/internal/config"
	"github.com/stravella/chatwidget/internal/identity"
	"github.com/stravella/chatwidget/internal/store"
	"github.com/stravella/chatwidget/internal/widgetconfig"
)

// app is the state shared by every subcommand, filled in before they run.
type app struct {
	cfg *config.Config
	log zerolog.Logger

	attrs      []string
	globalPath string
	apiBase    string
	dataDir    string
	logLevel   string
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:   "stravella",
		Short: "Embeddable Stravella chat widget: preview server, terminal chat and markup renderer",
		Long: `stravella mounts the Stravella chat widget outside a browser.

Configuration comes from the environment (or a .env file) and may be
overridden by flags. Widget settings are read the same way a host page
supplies them: data attributes (--attr) and a global config object
(--config, YAML or JSON), the latter winning.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringArrayVar(&a.attrs, "attr", nil, "widget data attribute as key=value, e.g. --attr business-name=Acme (repeatable)")
	flags.StringVar(&a.globalPath, "config", "", "file holding the global widget config object (overrides STRAVELLA_WIDGET_CONFIG)")
	flags.StringVar(&a.apiBase, "api-base", "", "chatbot origin (overrides STRAVELLA_API_BASE)")
	flags.StringVar(&a.dataDir, "data-dir", "", "directory for stravella.db (overrides DATA_DIR)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(newServeCmd(a), newChatCmd(a), newRenderCmd(a))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config")
	}
	if a.apiBase != "" {
		cfg.APIBase = a.apiBase
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if a.globalPath != "" {
		cfg.WidgetConfigPath = a.globalPath
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config")
	}

	a.cfg = cfg
	a.log = newLogger(os.Stderr, cfg.LogLevel)
	return nil
}

// newLogger writes human-readable logs to a terminal and JSON otherwise.
func newLogger(out *os.File, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var w io.Writer = out
	if isatty.IsTerminal(out.Fd()) {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// sources returns widget overrides in increasing precedence: --attr data
// attributes, then page-supplied ones, then the global config object.
func (a *app) sources(page ...widgetconfig.Overrides) ([]widgetconfig.Overrides, error) {
	attrs := make(map[string]string, len(a.attrs))
	for _, kv := range a.attrs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, errors.Errorf("--attr %q: want key=value", kv)
		}
		attrs[strings.TrimSpace(k)] = v
	}

	out := []widgetconfig.Overrides{widgetconfig.FromDataAttributes(attrs)}
	out = append(out, page...)

	global, err := a.globalConfig()
	if err != nil {
		return nil, err
	}
	return append(out, global), nil
}

func (a *app) globalConfig() (widgetconfig.Overrides, error) {
	if a.cfg.WidgetConfigPath == "" {
		return widgetconfig.Overrides{}, nil
	}
	f, err := os.Open(a.cfg.WidgetConfigPath)
	if err != nil {
		return widgetconfig.Overrides{}, errors.Wrap(err, "opening global widget config")
	}
	defer f.Close()
	return widgetconfig.DecodeGlobal(f)
}

func (a *app) configOptions() widgetconfig.Options {
	return widgetconfig.Options{HonorQuickActions: a.cfg.HonorQuickActions}
}

func (a *app) client() *chatapi.Client {
	return chatapi.NewClient(a.cfg.APIBase, chatapi.WithTimeout(a.cfg.RequestTimeout))
}

// openStore opens the thread-id database. When it cannot be opened the
// widget still works with ephemeral ids, so the caller gets nil and a
// warning instead of an error.
func (a *app) openStore() *store.BoltStore {
	db, err := store.NewBoltStore(a.cfg.DBPath())
	if err != nil {
		a.log.Warn().Err(err).Str("path", a.cfg.DBPath()).Msg("thread storage unavailable, ids will not persist")
		return nil
	}
	return db
}

// storageFor returns db scoped to scope, or unavailable storage for a nil db.
func storageFor(db *store.BoltStore, scope string) identity.Storage {
	if db == nil {
		return identity.UnavailableStorage{}
	}
	return db.Scoped(scope)
}
