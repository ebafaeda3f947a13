package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/sourcegraph/conc"

	"signbridge/internal/capture"
)

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}
)

// V4L2Capturer はffmpegを使ってV4L2デバイスからMJPEGフレームを取得する
type V4L2Capturer struct {
	ffmpegPath string
	logger     *slog.Logger
}

// NewV4L2Capturer は新しいV4L2Capturerを作成する
func NewV4L2Capturer(ffmpegPath string, logger *slog.Logger) *V4L2Capturer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &V4L2Capturer{
		ffmpegPath: ffmpegPath,
		logger:     logger.With("component", "ffmpeg"),
	}
}

// Stream はctxがキャンセルされるまでframesへJPEGフレームを送る
func (c *V4L2Capturer) Stream(ctx context.Context, device string, constraints capture.Constraints, frames chan<- []byte) error {
	cmd := exec.CommandContext(ctx, c.ffmpegPath, c.args(device, constraints)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdoutパイプの作成に失敗: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderrパイプの作成に失敗: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpegの起動に失敗: %w", err)
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			c.logger.Debug(scanner.Text(), "device", device)
		}
	})

	readErr := c.readFrames(ctx, stdout, frames)
	waitErr := cmd.Wait()
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	if readErr != nil {
		return readErr
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpegが異常終了: %w", waitErr)
	}
	return errors.New("ffmpegのストリームが終了しました")
}

// args はffmpegの引数を組み立てる
func (c *V4L2Capturer) args(device string, constraints capture.Constraints) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", "v4l2"}
	if constraints.Width > 0 && constraints.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", constraints.Width, constraints.Height))
	}
	if constraints.FrameRate > 0 {
		args = append(args, "-framerate", strconv.Itoa(constraints.FrameRate))
	}
	return append(args,
		"-i", device,
		"-an",
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)
}

// readFrames はstdoutからJPEGフレームを切り出して送る
func (c *V4L2Capturer) readFrames(ctx context.Context, r io.Reader, frames chan<- []byte) error {
	buffer := make([]byte, 256*1024)
	var pending []byte

	for {
		n, err := r.Read(buffer)
		if n > 0 {
			pending = append(pending, buffer[:n]...)
			var complete [][]byte
			complete, pending = splitJPEGFrames(pending)
			for _, frame := range complete {
				select {
				case frames <- frame:
				case <-ctx.Done():
					return nil
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("フレーム読み取りエラー: %w", err)
		}
	}
}

// splitJPEGFrames はバッファから完全なJPEGフレームを取り出し、残りを返す
func splitJPEGFrames(data []byte) (frames [][]byte, rest []byte) {
	for {
		start := bytes.Index(data, jpegStart)
		if start == -1 {
			// 開始マーカーの片割れだけ残す
			if len(data) > 0 && data[len(data)-1] == 0xFF {
				return frames, data[len(data)-1:]
			}
			return frames, nil
		}

		end := bytes.Index(data[start+2:], jpegEnd)
		if end == -1 {
			return frames, data[start:]
		}

		end += start + 2 + len(jpegEnd)
		frame := make([]byte, end-start)
		copy(frame, data[start:end])
		frames = append(frames, frame)
		data = data[end:]
	}
}
