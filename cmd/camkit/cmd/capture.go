package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// CaptureRecord describes one written picture.
type CaptureRecord struct {
	Index         int    `json:"index"`
	Thumbnail     string `json:"thumbnail"`
	Original      string `json:"original,omitempty"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	OriginalBytes int    `json:"original_bytes"`
	DurationMs    int64  `json:"duration_ms"`
}

// captureCmd represents the capture command.
var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Open the camera and take pictures",
	Long: `Open the camera, take one or more pictures and write them to disk.

Each picture is written as <prefix>-<n>.jpg (the resized thumbnail) and, with
--original, as <prefix>-<n>-original.jpg (the corrected full picture).

Examples:
  camkit capture
  camkit capture --count 3 --out shots --original
  camkit capture --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}

		count, _ := cmd.Flags().GetInt("count")
		outDir, _ := cmd.Flags().GetString("out")
		prefix, _ := cmd.Flags().GetString("prefix")
		withOriginal, _ := cmd.Flags().GetBool("original")
		format, _ := cmd.Flags().GetString("format")
		if count < 1 {
			return fmt.Errorf("invalid count: %d (must be at least 1)", count)
		}
		if format != "text" && format != "json" {
			return fmt.Errorf("unsupported format: %s (use text or json)", format)
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}

		st, err := buildStack(cfg, prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := st.start(ctx); err != nil {
			return fmt.Errorf("open camera: %w", err)
		}

		records := make([]CaptureRecord, 0, count)
		for i := 1; i <= count; i++ {
			start := time.Now()
			pic, err := st.takePicture(ctx)
			if err != nil {
				return fmt.Errorf("picture %d: %w", i, err)
			}
			rec := CaptureRecord{
				Index:         i,
				Thumbnail:     filepath.Join(outDir, fmt.Sprintf("%s-%d.jpg", prefix, i)),
				Width:         pic.Size.Width,
				Height:        pic.Size.Height,
				OriginalBytes: len(pic.Original),
				DurationMs:    time.Since(start).Milliseconds(),
			}
			if err := os.WriteFile(rec.Thumbnail, pic.Thumbnail, 0o644); err != nil {
				return fmt.Errorf("write picture: %w", err)
			}
			if withOriginal {
				rec.Original = filepath.Join(outDir, fmt.Sprintf("%s-%d-original.jpg", prefix, i))
				if err := os.WriteFile(rec.Original, pic.Original, 0o644); err != nil {
					return fmt.Errorf("write original: %w", err)
				}
			}
			records = append(records, rec)
		}

		return writeCaptureRecords(cmd.OutOrStdout(), format, records)
	},
}

func writeCaptureRecords(w io.Writer, format string, records []CaptureRecord) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d: %s (%dx%d, original %d bytes, %dms)\n",
			r.Index, r.Thumbnail, r.Width, r.Height, r.OriginalBytes, r.DurationMs)
		if r.Original != "" {
			_, _ = fmt.Fprintf(w, "   original: %s\n", r.Original)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().IntP("count", "n", 1, "number of pictures to take")
	captureCmd.Flags().StringP("out", "o", ".", "output directory")
	captureCmd.Flags().String("prefix", "capture", "file name prefix")
	captureCmd.Flags().Bool("original", false, "also write the full-size original")
	captureCmd.Flags().StringP("format", "f", "text", "output format (text, json)")
}
