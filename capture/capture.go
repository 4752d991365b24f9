// Package capture produces encoded still frames of a configured monitor
// region. The core treats the output as opaque bytes handed to the model
// engine as an image payload.
package capture

import (
	"bytes"
	"image"
	"image/png"

	"github.com/kbinani/screenshot"
	"github.com/rs/zerolog"
)

// FrameSource yields one encoded frame per call, or nil when the configured
// target is invalid or the grab fails.
type FrameSource interface {
	Capture() []byte
}

// Margins crop fixed borders off the captured monitor (taskbar, menu bar).
type Margins struct {
	Top    int
	Bottom int
	Left   int
	Right  int
}

// Monitors reports the number of active displays.
func Monitors() int {
	return screenshot.NumActiveDisplays()
}

type Screen struct {
	log     zerolog.Logger
	monitor int
	margins Margins
}

func NewScreen(log zerolog.Logger, monitor int, margins Margins) *Screen {
	return &Screen{log: log, monitor: monitor, margins: margins}
}

func (s *Screen) SetMonitor(index int) { s.monitor = index }

func (s *Screen) Monitor() int { return s.monitor }

func (s *Screen) Capture() []byte {
	if s.monitor < 0 || s.monitor >= screenshot.NumActiveDisplays() {
		s.log.Warn().Int("monitor", s.monitor).Msg("capture target out of range")
		return nil
	}

	rect := cropRect(screenshot.GetDisplayBounds(s.monitor), s.margins)
	if rect.Empty() {
		s.log.Warn().Int("monitor", s.monitor).Msg("crop margins leave no capture area")
		return nil
	}

	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		s.log.Error().Err(err).Msg("screen grab failed")
		return nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		s.log.Error().Err(err).Msg("png encode failed")
		return nil
	}
	return buf.Bytes()
}

func cropRect(bounds image.Rectangle, m Margins) image.Rectangle {
	return image.Rect(
		bounds.Min.X+m.Left,
		bounds.Min.Y+m.Top,
		bounds.Max.X-m.Right,
		bounds.Max.Y-m.Bottom,
	)
}
