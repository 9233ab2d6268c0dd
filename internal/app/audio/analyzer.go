// Package audio derives loudness levels from microphone PCM frames.
package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	FrameSize = 256

	minDecibels = -100.0
	maxDecibels = -30.0
	// smoothing between consecutive frames, per bin
	smoothing = 0.8
)

// Analyzer turns one PCM frame into a level in [0,100]. It keeps the
// smoothed spectrum of previous frames and is not safe for concurrent use.
type Analyzer struct {
	fft    *fourier.FFT
	window []float64
	frame  []float64
	coeffs []complex128
	smooth []float64
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{
		fft:    fourier.NewFFT(FrameSize),
		window: blackman(FrameSize),
		frame:  make([]float64, FrameSize),
		coeffs: make([]complex128, FrameSize/2+1),
		smooth: make([]float64, FrameSize/2),
	}
}

func blackman(n int) []float64 {
	const a0, a1, a2 = 0.42, 0.5, 0.08
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}

// Level maps the average bin magnitude of pcm onto the 0..255 byte scale
// between -100 and -30 dBFS, then to avg*100/256. Short frames are zero padded.
func (a *Analyzer) Level(pcm []float32) float64 {
	for i := range a.frame {
		var s float64
		if i < len(pcm) {
			s = float64(pcm[i])
		}
		a.frame[i] = s * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	var sum float64
	for i := range a.smooth {
		mag := cmplx.Abs(a.coeffs[i]) / FrameSize
		a.smooth[i] = smoothing*a.smooth[i] + (1-smoothing)*mag
		sum += byteScale(a.smooth[i])
	}
	avg := sum / float64(len(a.smooth))
	return clamp(avg * 100 / 256)
}

func (a *Analyzer) Reset() {
	clear(a.smooth)
}

func byteScale(mag float64) float64 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	v := math.Floor(255 / (maxDecibels - minDecibels) * (db - minDecibels))
	return math.Max(0, math.Min(255, v))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 100)
}
