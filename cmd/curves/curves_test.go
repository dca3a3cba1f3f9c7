package main

import (
	"bytes"
	"strings"
	"testing"

	"tone-curve-agent/internal/tone"
)

func TestBuildCurveAppliesEditsInOrder(t *testing.T) {
	c, err := buildCurve([]curveEdit{
		{tone.PointEnter, tone.FieldIn, 50},
		{tone.PointExit, tone.FieldIn, 150},
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.Enter.In != 50 || c.Exit.In != 150 || c.Enter.Out != 0 || c.Exit.Out != 255 {
		t.Fatalf("curve=%s", c)
	}
}

func TestBuildCurveFailsOnRejectedEdit(t *testing.T) {
	_, err := buildCurve([]curveEdit{
		{tone.PointExit, tone.FieldIn, 100},
		{tone.PointEnter, tone.FieldIn, 120},
	})
	if err == nil || !strings.Contains(err.Error(), "rejected") {
		t.Fatalf("err=%v", err)
	}
}

func TestBuildCurveFailsOnRange(t *testing.T) {
	if _, err := buildCurve([]curveEdit{{tone.PointEnter, tone.FieldOut, 300}}); err == nil {
		t.Fatal("expected range error")
	}
}

func TestWriteHistogramSkipsEmptyLevels(t *testing.T) {
	buf := tone.NewPixelBuffer(2, 1)
	copy(buf.Pix, []byte{10, 20, 30, 255, 10, 20, 30, 255})
	var out bytes.Buffer
	writeHistogram(&out, tone.BuildHistogram(buf), 100, false)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("lines=%d\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "pixels=2 max=2") {
		t.Fatalf("header=%q", lines[0])
	}
	if f := strings.Fields(lines[2]); f[0] != "10" || f[1] != "2" || f[4] != "100" {
		t.Fatalf("row=%q", lines[2])
	}
}
