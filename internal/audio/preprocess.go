package audio

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"

	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

type PreprocessConfig struct {
	HighPassHz         float64 // 0 disables the filter
	PeakLevel          float64 // target absolute peak after normalisation
	DegradedSampleRate int
}

func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		HighPassHz:         80,
		PeakLevel:          0.9,
		DegradedSampleRate: 8000,
	}
}

type Preprocessor struct {
	cfg PreprocessConfig
}

func NewPreprocessor(cfg PreprocessConfig) *Preprocessor {
	def := DefaultPreprocessConfig()
	if cfg.PeakLevel <= 0 || cfg.PeakLevel > 1 {
		cfg.PeakLevel = def.PeakLevel
	}
	if cfg.DegradedSampleRate <= 0 {
		cfg.DegradedSampleRate = def.DegradedSampleRate
	}
	return &Preprocessor{cfg: cfg}
}

// Process filters, normalises and, in degraded mode, downsamples a window.
// The input window is not modified.
func (p *Preprocessor) Process(w models.AudioWindow, degraded bool) models.AudioWindow {
	out := w
	if len(w.Samples) == 0 {
		return out
	}

	samples := make([]float64, len(w.Samples))
	copy(samples, w.Samples)

	if p.cfg.HighPassHz > 0 {
		samples = HighPass(samples, w.SampleRate, p.cfg.HighPassHz)
	}
	Normalize(samples, p.cfg.PeakLevel)

	out.Samples = samples
	if degraded && w.SampleRate > p.cfg.DegradedSampleRate {
		out.Samples = Downsample(samples, w.SampleRate, p.cfg.DegradedSampleRate)
		out.SampleRate = p.cfg.DegradedSampleRate
	}
	return out
}

// HighPass removes content below cutoff by zeroing the low FFT bins (and
// their negative-frequency mirrors).
func HighPass(samples []float64, sampleRate int, cutoff float64) []float64 {
	n := len(samples)
	if n < 2 || sampleRate <= 0 {
		return samples
	}

	spectrum := fft.FFTReal(samples)
	kc := int(math.Ceil(cutoff * float64(n) / float64(sampleRate)))
	if kc > n/2 {
		kc = n / 2
	}
	for k := 0; k < kc; k++ {
		spectrum[k] = 0
		if k > 0 {
			spectrum[n-k] = 0
		}
	}

	back := fft.IFFT(spectrum)
	out := make([]float64, n)
	for i, v := range back {
		out[i] = real(v)
	}
	return out
}

// Normalize scales samples in place so the absolute peak equals level.
// Silence is left untouched.
func Normalize(samples []float64, level float64) {
	if len(samples) == 0 {
		return
	}
	peak := math.Max(math.Abs(floats.Max(samples)), math.Abs(floats.Min(samples)))
	if peak == 0 {
		return
	}
	floats.Scale(level/peak, samples)
}

// Downsample reduces the rate by averaging each group of input samples that
// maps onto one output sample, which doubles as a crude anti-alias filter.
func Downsample(samples []float64, from, to int) []float64 {
	if to <= 0 || from <= to || len(samples) == 0 {
		return samples
	}
	ratio := float64(from) / float64(to)
	outLen := int(float64(len(samples)) / ratio)
	out := make([]float64, outLen)
	for i := range out {
		start := int(float64(i) * ratio)
		end := int(float64(i+1) * ratio)
		if end > len(samples) {
			end = len(samples)
		}
		if end <= start {
			end = start + 1
		}
		out[i] = floats.Sum(samples[start:end]) / float64(end-start)
	}
	return out
}
