package tone

import "math/bits"

// Levels is the number of intensity levels of an 8-bit channel.
const Levels = 256

// DefaultScale is the vertical resolution of the reference histogram guide.
const DefaultScale = 256

type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

func (c Channel) String() string {
	switch c {
	case Red:
		return "r"
	case Green:
		return "g"
	case Blue:
		return "b"
	}
	return "?"
}

// Channels lists the histogrammed channels in display order.
var Channels = [...]Channel{Red, Green, Blue}

// Histogram holds dense per-channel occurrence counts. A zero slot means
// the level was not observed.
type Histogram struct {
	counts [3][Levels]uint64
}

// BuildHistogram counts every pixel's R, G and B level once. Alpha is
// ignored. It panics if buf is malformed.
func BuildHistogram(buf PixelBuffer) *Histogram {
	buf.mustValidate()
	h := &Histogram{}
	pix := buf.Pix
	for i := 0; i+3 < len(pix); i += BytesPerPixel {
		h.counts[Red][pix[i]]++
		h.counts[Green][pix[i+1]]++
		h.counts[Blue][pix[i+2]]++
	}
	return h
}

// Counts returns a copy of one channel's table.
func (h *Histogram) Counts(c Channel) [Levels]uint64 {
	return h.counts[c]
}

func (h *Histogram) Count(c Channel, level uint8) uint64 {
	return h.counts[c][level]
}

// Total is the sum of one channel's counts, which equals the pixel count.
func (h *Histogram) Total(c Channel) uint64 {
	var n uint64
	for _, v := range h.counts[c] {
		n += v
	}
	return n
}

// MaxCount is the largest single-level count across all three channels.
func (h *Histogram) MaxCount() uint64 {
	var m uint64
	for c := range h.counts {
		for _, v := range h.counts[c] {
			if v > m {
				m = v
			}
		}
	}
	return m
}

// Bars scales the counts to bar heights in [0, scale]:
// floor(count*scale/MaxCount). All channels share one max so the overlaid
// bars are comparable. Every bar is 0 when nothing was counted.
func (h *Histogram) Bars(scale int) [3][Levels]int {
	var bars [3][Levels]int
	if scale <= 0 {
		return bars
	}
	peak := h.MaxCount()
	if peak == 0 {
		return bars
	}
	// v <= peak, so hi < peak and Div64 cannot overflow.
	for c := range h.counts {
		for i, v := range h.counts[c] {
			hi, lo := bits.Mul64(v, uint64(scale))
			q, _ := bits.Div64(hi, lo, peak)
			bars[c][i] = int(q)
		}
	}
	return bars
}
