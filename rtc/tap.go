package rtc

import "sync/atomic"

// Tap receives captured PCM frames. WriteAudio must not retain frame.
type Tap interface {
	WriteAudio(frame []byte) error
}

// MeterTap counts captured audio.
type MeterTap struct {
	bytes  atomic.Int64
	frames atomic.Int64
}

func (m *MeterTap) WriteAudio(frame []byte) error {
	m.bytes.Add(int64(len(frame)))
	m.frames.Add(1)
	return nil
}

func (m *MeterTap) Bytes() int64  { return m.bytes.Load() }
func (m *MeterTap) Frames() int64 { return m.frames.Load() }
