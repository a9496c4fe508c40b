package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/declutter/pkg/client"
	"github.com/jamesainslie/declutter/pkg/declutter/config"
	"github.com/jamesainslie/declutter/pkg/declutter/output"
)

// rpcTimeout bounds a single request to the daemon.
const rpcTimeout = 10 * time.Second

var errDaemonNotRunning = errors.New("daemon is not running (start with: declutter daemon start)")

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "declutter",
		Short: "Close the browser tabs you stopped using",
		Long: `Declutter tracks when each browser tab was last used and offers idle tabs
for closing. Tabs marked important, pinned, active, or playing media are
never offered.

The policy runs in the declutterd daemon; this command talks to it.

Examples:
  declutter daemon start           # Start the daemon
  declutter run                    # Sweep now and open the review page
  declutter review list            # Show tabs waiting for review
  declutter review close           # Close them
  declutter settings set --threshold 120
  declutter important toggle 42    # Never offer tab 42
  declutter watch                  # Follow what the daemon does`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/declutter/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "pretty", "output format ("+strings.Join(output.Available(), ", ")+")")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().Bool("no-autostart", false, "do not start the daemon when it is not running")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("no_autostart", rootCmd.PersistentFlags().Lookup("no-autostart"))
}

// initConfig binds the CLI's own flags to the environment.
func initConfig() {
	viper.SetEnvPrefix("DECLUTTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command and reports its error.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError("%v", err)
	}
	return err
}

// loadConfig reads the config file named by --config, or the default one.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

func daemonPaths(cfg *config.Config) client.DaemonPaths {
	return client.DaemonPaths{
		Binary: cfg.Daemon.BinaryPath,
		Socket: cfg.SocketPath(),
		PID:    cfg.PIDPath(),
	}
}

// withClient connects to the daemon, starting it first when auto-start is
// enabled, and runs fn with a bounded context.
func withClient(fn func(ctx context.Context, c *client.Client) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	paths := daemonPaths(cfg)

	if !client.IsDaemonRunning(paths.PID) {
		if !cfg.Daemon.AutoStart || viper.GetBool("no_autostart") {
			return errDaemonNotRunning
		}
		printVerbose("daemon not running, starting it")
		if err := client.EnsureDaemon(paths); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	c, err := client.ConnectWithContext(ctx, paths.Socket)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(ctx, c)
}

// render writes r in the selected output format.
func render(r *output.Report) error {
	formatter, err := output.Get(viper.GetString("output"))
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, r); err != nil {
		return err
	}
	_, err = os.Stdout.Write(buf.Bytes())
	return err
}

func getVerbose() bool {
	return viper.GetBool("verbose")
}

func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...any) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...any) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
