package main

import (
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tone-curve-agent/internal/guide"
	"tone-curve-agent/internal/imageio"
	"tone-curve-agent/internal/tone"
)

var histogramCmd = &cobra.Command{
	Use:   "histogram",
	Short: "Print per-channel level counts of an image",
	RunE:  runHistogram,
}

func init() {
	histogramCmd.Flags().StringP("input", "i", "", "Input image")
	histogramCmd.Flags().Int("scale", tone.DefaultScale, "Bar height scale")
	histogramCmd.Flags().String("guide", "", "Also write the histogram guide PNG here")
	histogramCmd.Flags().Bool("all", false, "Print levels that were not observed")
	histogramCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(histogramCmd)
}

func runHistogram(cmd *cobra.Command, args []string) error {
	inputPath, _ := cmd.Flags().GetString("input")
	scale, _ := cmd.Flags().GetInt("scale")
	guidePath, _ := cmd.Flags().GetString("guide")
	all, _ := cmd.Flags().GetBool("all")

	buf, err := readImage(inputPath)
	if err != nil {
		return err
	}
	h := tone.BuildHistogram(buf)
	writeHistogram(cmd.OutOrStdout(), h, scale, all)

	if guidePath != "" {
		b, err := guide.RenderPNG(tone.DefaultCurve(), guide.Options{Background: color.White, Histogram: h})
		if err != nil {
			return fmt.Errorf("rendering guide: %w", err)
		}
		if err := os.WriteFile(guidePath, b, 0644); err != nil {
			return fmt.Errorf("writing guide: %w", err)
		}
	}
	return nil
}

func writeHistogram(w io.Writer, h *tone.Histogram, scale int, all bool) {
	bars := h.Bars(scale)
	fmt.Fprintf(w, "pixels=%d max=%d scale=%d\n", h.Total(tone.Red), h.MaxCount(), scale)
	fmt.Fprintf(w, "%5s %10s %10s %10s %5s %5s %5s\n", "level", "r", "g", "b", "bar_r", "bar_g", "bar_b")
	for i := 0; i < tone.Levels; i++ {
		r, g, b := h.Count(tone.Red, uint8(i)), h.Count(tone.Green, uint8(i)), h.Count(tone.Blue, uint8(i))
		if !all && r == 0 && g == 0 && b == 0 {
			continue
		}
		fmt.Fprintf(w, "%5d %10d %10d %10d %5d %5d %5d\n", i, r, g, b, bars[tone.Red][i], bars[tone.Green][i], bars[tone.Blue][i])
	}
}

func readImage(path string) (tone.PixelBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tone.PixelBuffer{}, fmt.Errorf("reading input: %w", err)
	}
	buf, err := imageio.Decode(data)
	if err != nil {
		return tone.PixelBuffer{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return buf, nil
}
