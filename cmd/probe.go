package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/spf13/cobra"
)

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var (
		binary   string
		output   string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe codec support",
		Long: `Lists the encoders, decoders and filters of the ffmpeg binary, prints which codecs ` +
			`can be encoded and decoded on this host, and writes the report to the probe cache read by the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initLogging(logLevel)

			query, _, err := NewQuery(cmd.Context(), binary)
			if err != nil {
				return err
			}

			var storage capability.Storage
			if output != "" {
				storage = capability.NewFileStore(output)
			}
			report, err := capability.NewCache(query, storage).Refresh()
			printReport(cmd.OutOrStdout(), report)
			if err != nil {
				return fmt.Errorf("failed to write probe cache: %w", err)
			}
			if output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\nReport written to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&binary, "binary", "ffmpeg", "ffmpeg binary to probe")
	cmd.Flags().StringVarP(&output, "output", "o", "codecs.toml", "Probe cache file, empty to skip writing")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Logging level (debug, info, warn, error)")
	return cmd
}

func printReport(w io.Writer, report capability.Report) {
	fmt.Fprintf(w, "Platform: %s", report.Platform)
	if report.Mobile {
		fmt.Fprint(w, " (mobile)")
	}
	fmt.Fprint(w, "\n\n")

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODEC\tMEDIA\tSUPPORTED\tENCODER\tDECODER\tPARSER")
	for _, c := range report.Codecs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Codec, c.Media, yesNo(c.Supported), dash(c.Encoder), dash(c.Decoder), dash(c.Parser))
	}
	tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
