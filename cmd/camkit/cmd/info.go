package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/camkit/internal/camera"
	"github.com/MeKo-Tech/camkit/internal/device"
)

// InfoReport summarises the platform and the session an open camera gets.
type InfoReport struct {
	Driver      string        `json:"driver" yaml:"driver"`
	Tier        string        `json:"tier" yaml:"tier"`
	Cameras     []device.Info `json:"cameras" yaml:"cameras"`
	Opened      bool          `json:"opened" yaml:"opened"`
	Backend     string        `json:"backend" yaml:"backend"`
	Fallback    bool          `json:"fallback" yaml:"fallback"`
	Ratios      []string      `json:"ratios" yaml:"ratios"`
	AspectRatio string        `json:"aspect_ratio" yaml:"aspect_ratio"`
	PreviewSize camera.Size   `json:"preview_size" yaml:"preview_size"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// infoCmd represents the info command.
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the camera platform and the backend it selects",
	Long: `Query the capability tier of the configured camera driver, list its
cameras, open the camera once and report the backend that ended up active
together with the aspect ratios it supports.

Examples:
  camkit info
  camkit info --format json
  camkit info --no-open`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		noOpen, _ := cmd.Flags().GetBool("no-open")

		st, err := buildStack(cfg, prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		report := InfoReport{
			Driver:  cfg.Device.Driver,
			Tier:    st.platform.Tier().String(),
			Cameras: st.platform.Cameras(),
		}
		if !noOpen {
			if err := st.start(ctx); err != nil {
				report.Error = err.Error()
			}
		}
		if err := st.do(ctx, func() {
			report.Opened = st.ctrl.IsOpened()
			report.Backend = st.ctrl.Variant().String()
			report.Fallback = st.ctrl.FallbackActive()
			report.Ratios = st.ctrl.SupportedAspectRatios().Strings()
			report.AspectRatio = st.ctrl.AspectRatio().String()
			report.PreviewSize = st.ctrl.PreviewSize()
		}); err != nil {
			return err
		}

		return writeInfoReport(cmd.OutOrStdout(), format, report)
	},
}

func writeInfoReport(w io.Writer, format string, r InfoReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		return yaml.NewEncoder(w).Encode(r)
	case "text":
	default:
		return fmt.Errorf("unsupported format: %s (use text, json or yaml)", format)
	}

	_, _ = fmt.Fprintf(w, "Driver:   %s\n", r.Driver)
	_, _ = fmt.Fprintf(w, "Tier:     %s\n", r.Tier)
	_, _ = fmt.Fprintln(w, "Cameras:")
	for _, c := range r.Cameras {
		_, _ = fmt.Fprintf(w, "  - %s (%s, sensor %d°, flash %v, autofocus %t)\n",
			c.ID, c.Facing, int(c.SensorOrientation), c.FlashModes, c.AutoFocus)
	}
	_, _ = fmt.Fprintf(w, "Backend:  %s (fallback: %t)\n", r.Backend, r.Fallback)
	_, _ = fmt.Fprintf(w, "Opened:   %t\n", r.Opened)
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:    %s\n", r.Error)
	}
	_, _ = fmt.Fprintf(w, "Ratio:    %s\n", r.AspectRatio)
	_, _ = fmt.Fprintf(w, "Ratios:   %v\n", r.Ratios)
	_, _ = fmt.Fprintf(w, "Preview:  %dx%d\n", r.PreviewSize.Width, r.PreviewSize.Height)
	return nil
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringP("format", "f", "text", "output format (text, json, yaml)")
	infoCmd.Flags().Bool("no-open", false, "do not open the camera")
}
