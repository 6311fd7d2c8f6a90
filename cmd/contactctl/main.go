// Command contactctl is the operator console for the contactdesk API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"contactdesk/internal/client"
)

const (
	defaultAPIURL   = "http://localhost:8080"
	defaultPageSize = 10
	defaultDebounce = 500 * time.Millisecond
)

// app carries per-invocation settings resolved by viper from flags,
// CONTACTCTL_* variables and ~/.contactctl.yaml, in that order.
type app struct {
	v       *viper.Viper
	cfgFile string
}

func (a *app) client() (*client.Client, error) {
	url := a.v.GetString("api_url")
	if url == "" {
		return nil, errors.New("api_url is not set")
	}
	return client.New(url, a.v.GetString("token")), nil
}

func (a *app) pageSize() int           { return a.v.GetInt("page_size") }
func (a *app) debounce() time.Duration { return a.v.GetDuration("debounce") }

func (a *app) loadConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName(".contactctl")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath("$HOME")
		a.v.AddConfigPath(".")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "contactctl",
		Short:         "Manage contact records from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default $HOME/.contactctl.yaml)")
	flags.String("api-url", defaultAPIURL, "API base URL")
	flags.String("token", "", "bearer token")
	flags.Int("page-size", defaultPageSize, "rows per page")
	flags.Duration("debounce", defaultDebounce, "filter debounce delay for browse")

	a.v.SetEnvPrefix("CONTACTCTL")
	a.v.AutomaticEnv()
	for key, flag := range map[string]string{
		"api_url":   "api-url",
		"token":     "token",
		"page_size": "page-size",
		"debounce":  "debounce",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newListCommand(a),
		newGetCommand(a),
		newCreateCommand(a),
		newCreateBatchCommand(a),
		newEditCommand(a),
		newDeleteCommand(a),
		newUploadCommand(a),
		newWatchCommand(a),
		newBrowseCommand(a),
		newTokenCommand(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
