package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Flags shared by every command.
var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tourcast",
		Short: "Malaysian tourist-arrival analytics and 2026 forecast",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./tourcast.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(forecastCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(serveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// viewFlags are the dashboard filters accepted by report and export.
type viewFlags struct {
	mode          string
	from          string
	to            string
	nationalities []string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "trend view: monthly or cumulative")
	cmd.Flags().StringVar(&f.from, "from", "", "first month to include (YYYY-MM)")
	cmd.Flags().StringVar(&f.to, "to", "", "last month to include (YYYY-MM)")
	cmd.Flags().StringSliceVarP(&f.nationalities, "nationality", "n", nil, "restrict views to these nationalities")
}

func reportCmd() *cobra.Command {
	var flags viewFlags
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the dashboard as a text report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.Context(), flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func forecastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forecast",
		Short: "Fit the seasonal model and print the forecast as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runForecast(cmd.Context())
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the dataset and report data-quality findings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd.Context())
		},
	}
}

func exportCmd() *cobra.Command {
	var (
		flags viewFlags
		out   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the workbook and chart images to a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd.Context(), flags, out)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", ".", "output directory")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP server port (overrides server.port)")
	return cmd
}
