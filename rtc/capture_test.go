package rtc

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestAudioConfigDefaults(t *testing.T) {
	var c AudioConfig
	c.ApplyDefaults()
	if c.Command != "ffmpeg" || c.InputFormat != "pulse" || c.InputDevice != "default" {
		t.Errorf("defaults = %+v", c)
	}
	if c.FrameSize() != 3200 {
		t.Errorf("frame size = %d", c.FrameSize())
	}
}

func TestFFmpegCaptureReadAndStop(t *testing.T) {
	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'pcm-bytes'\nsleep 2\n")

	session, err := FFmpegCapture{}.Start(context.Background(), AudioConfig{Command: script})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	buf := make([]byte, 16)
	n, _ := session.Read(buf)
	if !strings.Contains(string(buf[:n]), "pcm-bytes") {
		t.Errorf("read %q", buf[:n])
	}
	if err := session.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestFFmpegCaptureOutputSurvivesExit(t *testing.T) {
	script := writeScript(t, "short.sh", "#!/usr/bin/env bash\nsleep 0.4\nprintf 'tail-bytes'\n")

	session, err := FFmpegCapture{}.Start(context.Background(), AudioConfig{Command: script})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Let the process exit and be reaped before anything is read.
	time.Sleep(600 * time.Millisecond)

	data, err := io.ReadAll(session)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "tail-bytes" {
		t.Errorf("read %q", data)
	}
	if err := session.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestFFmpegCaptureEarlyExit(t *testing.T) {
	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'cannot open audio device' 1>&2\nexit 1\n")

	_, err := FFmpegCapture{}.Start(context.Background(), AudioConfig{Command: script})
	if err == nil || !strings.Contains(err.Error(), "cannot open audio device") {
		t.Fatalf("err = %v", err)
	}
}

func TestFFmpegCaptureMissingBinary(t *testing.T) {
	_, err := FFmpegCapture{}.Start(context.Background(), AudioConfig{Command: filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Fatal("expected start error")
	}
}

func TestIgnoreExitStatus(t *testing.T) {
	err := exec.Command("bash", "-c", "exit 1").Run()
	if err == nil {
		t.Fatal("expected command failure")
	}
	if got := ignoreExitStatus(err); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
