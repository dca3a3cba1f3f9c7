package tone

// LinearMap is the tone curve reduced to a lookup table. Slope and
// Intercept describe the linear segment between the control points and are
// informational; remapping always goes through the table.
//
// When both control points share an input level the curve is a hard step:
// levels up to X1 map to Y1 and everything above maps to Y2. Step is set and
// Slope is reported as 0 in that case.
type LinearMap struct {
	X1, Y1    int
	X2, Y2    int
	Slope     float64
	Intercept float64
	Step      bool

	lut [Levels]uint8
}

// DeriveMapping builds the remap function for c.
func DeriveMapping(c CurveState) LinearMap {
	m := LinearMap{
		X1: c.Enter.In,
		Y1: c.Enter.Out,
		X2: c.Exit.In,
		Y2: c.Exit.Out,
	}
	if m.X2 > m.X1 {
		m.Slope = float64(m.Y2-m.Y1) / float64(m.X2-m.X1)
		m.Intercept = float64(m.Y1) - m.Slope*float64(m.X1)
	} else {
		m.Step = true
		m.Intercept = float64(m.Y1)
	}
	for v := 0; v < Levels; v++ {
		m.lut[v] = m.eval(v)
	}
	return m
}

// eval computes round(slope*v + intercept) on the open segment using
// integers: y1 + floor(((y2-y1)*(v-x1) + dx/2) / dx), which is rounding half
// up without float error at exact .5 points.
func (m LinearMap) eval(v int) uint8 {
	switch {
	case v <= m.X1:
		return clampLevel(m.Y1)
	case v >= m.X2:
		return clampLevel(m.Y2)
	}
	dx := m.X2 - m.X1
	num := 2*(m.Y2-m.Y1)*(v-m.X1) + dx
	return clampLevel(m.Y1 + floorDiv(num, 2*dx))
}

// Map remaps a single channel value.
func (m LinearMap) Map(v uint8) uint8 {
	return m.lut[v]
}

// Table returns the full 256-entry remap table.
func (m LinearMap) Table() [Levels]uint8 {
	return m.lut
}

// Apply remaps R, G and B of every pixel through m and copies alpha. The
// result is a new buffer of the same size; buf is not modified. It panics if
// buf is malformed.
func Apply(buf PixelBuffer, m LinearMap) PixelBuffer {
	buf.mustValidate()
	out := PixelBuffer{Width: buf.Width, Height: buf.Height, Pix: make([]byte, len(buf.Pix))}
	src, dst := buf.Pix, out.Pix
	for i := 0; i+3 < len(src); i += BytesPerPixel {
		dst[i] = m.lut[src[i]]
		dst[i+1] = m.lut[src[i+1]]
		dst[i+2] = m.lut[src[i+2]]
		dst[i+3] = src[i+3]
	}
	return out
}

// ApplyCurve is DeriveMapping followed by Apply.
func ApplyCurve(buf PixelBuffer, c CurveState) PixelBuffer {
	return Apply(buf, DeriveMapping(c))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func clampLevel(v int) uint8 {
	if v < MinLevel {
		return MinLevel
	}
	if v > MaxLevel {
		return MaxLevel
	}
	return uint8(v)
}
