package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

func RenewOutputPath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	index := 1
	for {
		outputPath = filepath.Join(dir, fmt.Sprintf("%s-(%d)%s", name, index, ext))
		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			return outputPath
		}
		index++
	}
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func FormatSpeed(bytes int64, elapsed float64) string {
	if elapsed == 0 {
		return "0 B/s"
	}
	bps := float64(bytes) / elapsed
	formatted := FormatBytes(uint64(bps))
	return formatted[:len(formatted)-1] + "B/s" // Slice off "B" and add "B/s"
}

// FormatDuration renders whole seconds as h:mm:ss.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%3d:%02d:%02d", h, m, s)
}

// afterScheme strips an optional "scheme://" prefix.
func afterScheme(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[i+3:]
	}
	return url
}

// RemoteFileName returns the last path segment of url, used for -O.
func RemoteFileName(url string) (string, error) {
	rest := afterScheme(url)
	i := strings.LastIndex(rest, "/")
	if i < 0 || i == len(rest)-1 {
		return "", NewError(CodeWriteError, "Remote file name has no length!")
	}
	return rest[i+1:], nil
}

// UploadURL appends the base name of localFile to url when the url has no
// file name part of its own.
func UploadURL(url, localFile string) string {
	rest := afterScheme(url)
	i := strings.LastIndex(rest, "/")
	name := filepath.Base(localFile)
	switch {
	case i < 0:
		return url + "/" + name
	case i == len(rest)-1:
		return url + name
	}
	return url
}

// TruncateMessage cuts msg to at most n bytes without splitting a UTF-8
// sequence.
func TruncateMessage(msg string, n int) string {
	if len(msg) <= n {
		return msg
	}
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}
