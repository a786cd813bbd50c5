package system

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// Типы входных файлов для FindLatestInput.
var (
	PDFExtensions   = []string{".pdf"}
	ImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}
	VideoExtensions = []string{".mp4", ".mov", ".webm", ".mkv", ".m4v"}
)

// InitResourceLimits поднимает лимит открытых файлов, чтобы сервер и экспорт
// могли держать открытыми много кадров одновременно.
func InitResourceLimits(want uint64) {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		slog.Warn("system: cannot read file limit", "error", err)
		return
	}

	if rLimit.Cur >= want {
		return
	}
	rLimit.Cur = want
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		slog.Warn("system: cannot raise file limit", "error", err)
	} else {
		slog.Debug("system: file limit raised", "limit", rLimit.Cur)
	}
}

// HasExtension сообщает, оканчивается ли name одним из exts (без учета регистра).
func HasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// FindLatestInput возвращает самый свежий по дате изменения файл в dir
// с одним из расширений exts.
func FindLatestInput(dir string, exts []string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !HasExtension(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("в папке %s не найдено файлов %s", dir, strings.Join(exts, "/"))
	}

	return latestFile, nil
}
