package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const maxLineBytes = 1024 * 1024

// Last returns up to n trailing lines of path and the end-of-file offset.
// A missing file yields no lines and offset zero.
func Last(path string, n int) ([]string, int64, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	if n <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]string, n)
	count, next := 0, 0
	end, err := scanLines(file, func(line string) {
		ring[next] = line
		next = (next + 1) % n
		if count < n {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == n {
		start = next
	}
	for i := 0; i < count; i++ {
		lines = append(lines, ring[(start+i)%n])
	}
	return lines, end, nil
}

// ReadFrom returns complete lines written after offset. When the file is
// shorter than offset it was rotated, and reading restarts at zero.
func ReadFrom(path string, offset int64) ([]string, int64, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	read, err := scanLines(file, func(line string) { lines = append(lines, line) })
	if err != nil {
		return nil, 0, err
	}
	return lines, offset + read, nil
}

// Follow polls path every interval and hands new lines to fn until ctx ends.
// The returned error is nil when ctx is cancelled.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, fn func(string)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		lines, next, err := ReadFrom(path, offset)
		if err != nil {
			return err
		}
		offset = next
		for _, line := range lines {
			fn(line)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func openLog(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

// scanLines feeds each newline-terminated line to fn and returns the number of
// bytes consumed. A trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(line))
			text := line[:len(line)-1]
			if len(text) > maxLineBytes {
				text = text[:maxLineBytes]
			}
			fn(trimCR(text))
			continue
		}
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		return consumed, fmt.Errorf("read log file: %w", err)
	}
}

func trimCR(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\r' {
		return s[:n-1]
	}
	return s
}
