package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"schoology-export/internal/components/telemetry"
	"schoology-export/pkg/configutil"
	"schoology-export/pkg/serviceutil"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var flags flagValues

// resolved is filled in before any command runs.
var resolved settings

var rootCmd = &cobra.Command{
	Use:   "schoology-export",
	Short: "schoology-export saves every schoology assessment you have access to as a pdf.",
	Long: `schoology-export lists your assignments through the schoology api, then for every
assignment that has no file in the output directory yet it makes the instructor include
every bank question, normalizes the assessment settings, takes the assessment as the
student and saves the result.

Credentials can also be provided through a .env file or schoology-export.json5.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(flags.verbose)

		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}

		file, err := configutil.ReadConfig[Config](flags.config)
		if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
			file = Config{}
		} else if err != nil {
			return fmt.Errorf("read %s: %w", flags.config, err)
		}

		resolved, err = resolveSettings(resolver{
			changed:   cmd.Flags().Changed,
			lookupEnv: os.LookupEnv,
		}, flags, file)
		return err
	},
	Run: func(cmd *cobra.Command, args []string) {
		exportCmd.Run(cmd, args)
	},
}

func init() {
	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&flags.config, "config", defaultConfigPath, "config file, a .local variant next to it overrides its values")
	persistent.BoolVarP(&flags.verbose, "verbose", "v", false, "log debug information")
	persistent.StringVarP(&flags.key, "key", "k", "", "schoology consumer key, can be obtained at https://app.schoology.com/api")
	persistent.StringVarP(&flags.secret, "secret", "s", "", "schoology consumer secret")
	persistent.StringVarP(&flags.instructorEmail, "instructor-email", "e", "", "email of the instructor account")
	persistent.StringVarP(&flags.instructorPassword, "instructor-password", "p", "", "password of the instructor account")
	persistent.StringVarP(&flags.studentEmail, "student-email", "E", "", "email of the student account")
	persistent.StringVarP(&flags.studentPassword, "student-password", "P", "", "password of the student account")
	persistent.StringVarP(&flags.outputDir, "output-dir", "o", "out", "directory to save output files to")
	persistent.StringVar(&flags.format, "format", "pdf", "output format, pdf or html")
	persistent.StringVar(&flags.match, "match", "", "only process assignments with a title matching this")
	persistent.Float64Var(&flags.matchThreshold, "match-threshold", 0.85, "similarity (0-1] a title needs to match --match")
	persistent.StringVar(&flags.browserBin, "browser-bin", "", "chrome binary to launch, downloaded when empty")
	persistent.StringVar(&flags.browserUrl, "browser-url", "", "connect to a running chrome (host:port or devtools url) instead of launching one")
	persistent.BoolVar(&flags.headful, "headful", false, "show the browser window")
	persistent.DurationVar(&flags.waitTimeout, "wait-timeout", 30*time.Second, "how long to wait for the site to reflect a change")
	persistent.DurationVar(&flags.implicitWait, "implicit-wait", 10*time.Second, "how long to wait for an element to appear")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(questionsCmd)
}

// setupTelemetry installs the otel exporters from the config file, the returned
// function flushes them.
func setupTelemetry(ctx context.Context) func() {
	tel, err := telemetry.Setup(ctx, "schoology-export", resolved.Telemetry)
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	if tel.MetricsEnabled() {
		telemetry.InstrumentPerfStats(ctx, telemetry.SlogAPI{}, 15*time.Second)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := tel.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	}
}

func Execute() {
	err := rootCmd.ExecuteContext(serviceutil.SignalContext())
	if err != nil {
		os.Exit(1)
	}
}
