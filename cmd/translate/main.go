// translate is the command line client of the translation gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pricofy/translation-gateway/internal/config"
	"github.com/pricofy/translation-gateway/internal/engine"
	"github.com/pricofy/translation-gateway/internal/logging"
)

// cli carries the global flags and builds the engine on first use.
type cli struct {
	configFile string
	logLevel   string
	opts       []engine.Option

	engine *engine.Engine
}

func newRootCmd(opts ...engine.Option) *cobra.Command {
	c := &cli{opts: opts}

	root := &cobra.Command{
		Use:   "translate",
		Short: "Translate text through online translation services",
		Long: `translate sends text to one of the supported translation services,
splitting long input into chunks and refreshing service credentials
as needed.

Commands:
  text         Translate text from arguments or stdin
  backends     List the supported services
  credentials  Manage service credentials`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "config file (default is "+filepath.Join(config.Dir(), "config.yaml")+")")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (overrides the config file)")

	root.AddCommand(
		newTextCmd(c),
		newBackendsCmd(c),
		newCredentialsCmd(c),
	)
	return root
}

// load builds the engine from the config file, the environment and the
// preference store.
func (c *cli) load(cmd *cobra.Command) (*engine.Engine, error) {
	if c.engine != nil {
		return c.engine, nil
	}

	file := c.configFile
	if file == "" {
		file = filepath.Join(config.Dir(), "config.yaml")
	}
	v, err := config.NewViper(file)
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		v.Set("logging.level", c.logLevel)
	}
	settings, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(settings.Logging.Level, settings.Logging.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	store, err := config.NewViperStore(settings.PreferencesFile)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithStore(store),
		engine.WithRedirectHandler(func(url string) {
			fmt.Fprintf(cmd.ErrOrStderr(), "The service asks for a manual check, open %s in a browser\n", url)
		}),
	}
	e, err := engine.New(cmd.Context(), settings, append(opts, c.opts...)...)
	if err != nil {
		return nil, err
	}
	c.engine = e
	return e, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
