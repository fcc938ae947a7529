package trafficviz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// FrameSink receives encoded PNG frames in playback order
type FrameSink interface {
	WriteFrame(frame int, png []byte) error
	// Close finalizes output. It must be called even when recording has been stopped
	Close() error
}

// RecordOptions describes recording
type RecordOptions struct {
	Workers  int
	Progress bool
}

// RecordResult is summary of finished (or stopped) recording
type RecordResult struct {
	Frames  int
	Stopped bool
}

// EvenViewport shrinks view size to even numbers as video encoders require
func EvenViewport(vp Viewport) Viewport {
	vp.Width &^= 1
	vp.Height &^= 1
	if vp.Width < 2 {
		vp.Width = 2
	}
	if vp.Height < 2 {
		vp.Height = 2
	}
	return vp
}

// Record renders every sample from the current one to the last into sink. Frames are rendered
// in parallel and written strictly in order. Cancelling the context stops recording after the
// frame in progress, and whatever has been written is finalized.
// Session must not be changed until Record returns.
func Record(ctx context.Context, session *Session, vp Viewport, sink FrameSink, options RecordOptions) (RecordResult, error) {
	vp = EvenViewport(vp)
	workers := options.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	first := session.current
	total := len(session.samples) - first
	base := session.frameBase()
	samples := session.samples[first:]

	var bar *progressbar.ProgressBar
	if options.Progress {
		bar = progressbar.Default(int64(total), "Recording")
	}

	renderCtx, cancelRender := context.WithCancel(context.Background())
	defer cancelRender()
	g, renderCtx := errgroup.WithContext(renderCtx)
	g.SetLimit(workers)
	// bounds number of encoded frames waiting for the writer
	window := make(chan struct{}, 2*workers)
	ready := make([]chan []byte, total)
	for i := range ready {
		ready[i] = make(chan []byte, 1)
	}
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for i := range samples {
			if renderCtx.Err() != nil {
				return
			}
			select {
			case window <- struct{}{}:
			case <-renderCtx.Done():
				return
			}
			i := i
			g.Go(func() error {
				if renderCtx.Err() != nil {
					return nil
				}
				var buf bytes.Buffer
				if err := base.frame(&samples[i]).render(vp).EncodePNG(&buf); err != nil {
					return errors.Wrapf(err, "Can't encode frame %d", i)
				}
				ready[i] <- buf.Bytes()
				return nil
			})
		}
	}()

	result := RecordResult{}
	var writeErr error
	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			result.Stopped = true
			break
		}
		var frame []byte
		select {
		case frame = <-ready[i]:
		case <-renderCtx.Done():
		}
		if frame == nil {
			break
		}
		if err := sink.WriteFrame(i, frame); err != nil {
			writeErr = errors.Wrapf(err, "Can't write frame %d", i)
			break
		}
		<-window
		result.Frames++
		if bar != nil {
			bar.Add(1)
		}
	}
	cancelRender()
	<-dispatched
	renderErr := g.Wait()
	closeErr := sink.Close()
	switch {
	case writeErr != nil:
		return result, writeErr
	case renderErr != nil && !errors.Is(renderErr, context.Canceled):
		return result, renderErr
	case closeErr != nil:
		return result, errors.Wrap(closeErr, "Can't finalize recording")
	}
	return result, nil
}

// DirectorySink writes frames as numbered PNG files
type DirectorySink struct {
	dir    string
	prefix string
}

func NewDirectorySink(dir, prefix string) (*DirectorySink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "Can't create frames directory")
	}
	if prefix == "" {
		prefix = "frame"
	}
	return &DirectorySink{dir: dir, prefix: prefix}, nil
}

func (sink *DirectorySink) WriteFrame(frame int, png []byte) error {
	return os.WriteFile(filepath.Join(sink.dir, fmt.Sprintf("%s_%05d.png", sink.prefix, frame)), png, 0o644)
}

func (sink *DirectorySink) Close() error {
	return nil
}

// FFmpegSink pipes frames to ffmpeg which encodes them into video file
type FFmpegSink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewFFmpegSink starts ffmpeg reading PNG frames from stdin
func NewFFmpegSink(ffmpegPath, output string, fps float64, bitrate string) (*FFmpegSink, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if bitrate == "" {
		bitrate = DEFAULT_BITRATE
	}
	rate := fmt.Sprintf("%f", fps)
	cmd := exec.Command(ffmpegPath, "-y", "-f", "image2pipe", "-vcodec", "png", "-r", rate, "-i", "-", "-c:v", "libx264", "-b:v", bitrate, "-pix_fmt", "yuv420p", "-r", rate, output)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "Can't get ffmpeg stdin pipe")
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "Can't start ffmpeg")
	}
	return &FFmpegSink{cmd: cmd, stdin: stdin}, nil
}

func (sink *FFmpegSink) WriteFrame(frame int, png []byte) error {
	_, err := sink.stdin.Write(png)
	return err
}

// Close ends the input stream and waits for ffmpeg to finish the file
func (sink *FFmpegSink) Close() error {
	if err := sink.stdin.Close(); err != nil {
		return err
	}
	return sink.cmd.Wait()
}

// RecordingName returns file name for recording started at given time step
func RecordingName(ts time.Time, ext string) string {
	return fmt.Sprintf("simulation_%s.%s", ts.UTC().Format(fileTimeLayout), ext)
}
