package msg

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ProgressBar draws a single-line download progress indicator. Write it the
// bytes as they arrive.
type ProgressBar struct {
	Label      string
	Total      int64
	Current    int64
	Indent     int
	Start      time.Time
	W          io.Writer
	lastPrint  time.Time
	throbIndex int
}

var throbbers = []rune{'|', '/', '-', '\\'}

func NewProgressBar(label string, total int64, indent int, w io.Writer) *ProgressBar {
	return &ProgressBar{
		Label:     label,
		Total:     total,
		Indent:    indent,
		Start:     time.Now(),
		W:         w,
		lastPrint: time.Now(),
	}
}

func (pb *ProgressBar) Write(p []byte) (int, error) {
	n := len(p)
	pb.Current += int64(n)

	if time.Since(pb.lastPrint) > 40*time.Millisecond {
		pb.print(false)
		pb.lastPrint = time.Now()
	}
	return n, nil
}

// formatBytes renders a size with a binary unit, 1536 -> "1.5 KiB"
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func (pb *ProgressBar) rate() string {
	elapsed := time.Since(pb.Start).Seconds()
	if elapsed <= 0 {
		return ""
	}
	return formatBytes(int64(float64(pb.Current)/elapsed)) + "/s"
}

func (pb *ProgressBar) print(finish bool) {
	width := 30
	percent := float64(pb.Current) / float64(max(pb.Total, 1))
	if finish {
		percent = 1
	}

	throb := throbbers[pb.throbIndex%len(throbbers)]
	pb.throbIndex++
	if finish {
		throb = ' '
	}

	indent := strings.Repeat(" ", pb.Indent)
	if pb.Total > 0 {
		filled := min(int(percent*float64(width)), width)
		bar := strings.Repeat("█", filled) + strings.Repeat("-", width-filled)
		fmt.Fprintf(pb.W, "\r%s%s %3.f%% [%s] %s %s %c",
			indent, pb.Label, percent*100, bar, formatBytes(pb.Total), pb.rate(), throb)
	} else {
		fmt.Fprintf(pb.W, "\r%s%s %s %s %c", indent, pb.Label, formatBytes(pb.Current), pb.rate(), throb)
	}
}

func (pb *ProgressBar) Finish() {
	pb.print(true)
	fmt.Fprintln(pb.W)
}

// DownloadProgress draws a ProgressBar for every stream it tracks.
// It satisfies go-getter's ProgressTracker.
type DownloadProgress struct {
	Indent int
	W      io.Writer
}

func (d *DownloadProgress) TrackProgress(src string, currentSize, totalSize int64, stream io.ReadCloser) io.ReadCloser {
	pb := NewProgressBar(path.Base(src), totalSize, d.Indent, d.W)
	pb.Current = currentSize
	return &trackedStream{ReadCloser: stream, pb: pb}
}

type trackedStream struct {
	io.ReadCloser
	pb       *ProgressBar
	finished bool
}

func (s *trackedStream) Read(p []byte) (int, error) {
	n, err := s.ReadCloser.Read(p)
	if n > 0 {
		s.pb.Write(p[:n])
	}
	return n, err
}

func (s *trackedStream) Close() error {
	if !s.finished {
		s.finished = true
		s.pb.Finish()
	}
	return s.ReadCloser.Close()
}
