package rtc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// AudioConfig selects the capture device and PCM format.
type AudioConfig struct {
	Command     string `yaml:"command" mapstructure:"command"`
	InputFormat string `yaml:"input_format" mapstructure:"input_format"`
	InputDevice string `yaml:"input_device" mapstructure:"input_device"`
	SampleRate  int    `yaml:"sample_rate" mapstructure:"sample_rate"`
	Channels    int    `yaml:"channels" mapstructure:"channels"`
}

func (c *AudioConfig) ApplyDefaults() {
	if c.Command == "" {
		c.Command = "ffmpeg"
	}
	if c.InputFormat == "" {
		c.InputFormat = "pulse"
	}
	if c.InputDevice == "" {
		c.InputDevice = "default"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
}

// FrameSize is the byte length of 100ms of s16le audio.
func (c AudioConfig) FrameSize() int {
	return c.SampleRate / 10 * c.Channels * 2
}

// CaptureSession is a running capture.
type CaptureSession interface {
	io.Reader
	Stop() error
}

// Capturer starts captures.
type Capturer interface {
	Start(ctx context.Context, cfg AudioConfig) (CaptureSession, error)
}

// startupGrace is how long a capture must survive to count as started.
const startupGrace = 250 * time.Millisecond

// FFmpegCapture records the input device as s16le PCM via ffmpeg.
type FFmpegCapture struct{}

func (FFmpegCapture) Start(ctx context.Context, cfg AudioConfig) (CaptureSession, error) {
	cfg.ApplyDefaults()
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Grandchildren holding stderr open must not stall Wait.
	cmd.WaitDelay = time.Second

	// The stdout pipe is owned here rather than by cmd, so reaping the
	// process never closes it under a reader. Stop closes it.
	stdout, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout pipe: %w", err)
	}
	cmd.Stdout = pw
	if err := cmd.Start(); err != nil {
		stdout.Close()
		pw.Close()
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}
	pw.Close()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		stdout.Close()
		if err != nil {
			return nil, fmt.Errorf("capture exited during startup: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, errors.New("capture exited during startup")
	case <-time.After(startupGrace):
	}

	return &ffmpegSession{stdout: stdout, stderr: &stderr, process: cmd.Process, waitErr: waitErr}, nil
}

type ffmpegSession struct {
	stdout  *os.File
	stderr  *bytes.Buffer
	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Stop interrupts the process, killing it if it has not exited within
// a second.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		_ = s.process.Signal(os.Interrupt)

		var err error
		select {
		case err = <-s.waitErr:
		case <-time.After(time.Second):
			_ = s.process.Kill()
			err = <-s.waitErr
		}
		s.stopErr = ignoreExitStatus(err)

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}
		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, bytes.TrimSpace(s.stderr.Bytes()))
		}
	})
	return s.stopErr
}

// ignoreExitStatus drops the non-zero status an interrupted capture exits
// with, and the wait-delay error left by stray children.
func ignoreExitStatus(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) || errors.Is(err, exec.ErrWaitDelay) {
		return nil
	}
	return err
}
