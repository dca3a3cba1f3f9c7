package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tone-curve-agent/internal/imageio"
	"tone-curve-agent/internal/tone"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Remap R, G and B of an image through a two-point tone curve",
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().StringP("input", "i", "", "Input image")
	applyCmd.Flags().StringP("output", "o", "", "Output image (.png or .jpg)")
	applyCmd.Flags().Int("enter-in", tone.MinLevel, "Enter point input level")
	applyCmd.Flags().Int("enter-out", tone.MinLevel, "Enter point output level")
	applyCmd.Flags().Int("exit-in", tone.MaxLevel, "Exit point input level")
	applyCmd.Flags().Int("exit-out", tone.MaxLevel, "Exit point output level")
	applyCmd.Flags().Int("quality", 90, "JPEG quality (1-100)")
	applyCmd.MarkFlagRequired("input")
	applyCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	inputPath, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")
	quality, _ := cmd.Flags().GetInt("quality")

	var edits []curveEdit
	for _, e := range []struct {
		flag  string
		point tone.Point
		field tone.Field
	}{
		{"enter-in", tone.PointEnter, tone.FieldIn},
		{"enter-out", tone.PointEnter, tone.FieldOut},
		{"exit-in", tone.PointExit, tone.FieldIn},
		{"exit-out", tone.PointExit, tone.FieldOut},
	} {
		v, _ := cmd.Flags().GetInt(e.flag)
		edits = append(edits, curveEdit{e.point, e.field, v})
	}
	curve, err := buildCurve(edits)
	if err != nil {
		return err
	}

	format, err := imageio.ParseFormat(strings.TrimPrefix(filepath.Ext(outputPath), "."))
	if err != nil {
		return err
	}

	src, err := readImage(inputPath)
	if err != nil {
		return err
	}
	m := tone.DeriveMapping(curve)
	out := tone.Apply(src, m)

	data, err := imageio.Encode(out, format, quality)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Applied curve %s to %dx%d image\n", curve, src.Width, src.Height)
	if m.Step {
		fmt.Fprintf(cmd.OutOrStdout(), "Mapping: step at %d\n", m.X1)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Mapping: slope=%.4f intercept=%.4f\n", m.Slope, m.Intercept)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Output: %s (%d bytes)\n", outputPath, len(data))
	return nil
}

type curveEdit struct {
	point tone.Point
	field tone.Field
	value int
}

// buildCurve replays edits on the default curve in order and fails on the
// first one the ordering rule rejects.
func buildCurve(edits []curveEdit) (tone.CurveState, error) {
	curve := tone.DefaultCurve()
	for _, e := range edits {
		next, ok, err := curve.SetControlPoint(e.point, e.field, e.value)
		if err != nil {
			return tone.CurveState{}, err
		}
		if !ok {
			return tone.CurveState{}, fmt.Errorf("%s.%s=%d rejected: enter.in must not exceed exit.in (curve %s)", e.point, e.field, e.value, curve)
		}
		curve = next
	}
	return curve, nil
}
