package txnlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/kvengine/internal/metrics"
	"github.com/warp/kvengine/kv"
)

// Logger is the production kv.TxnLogger: it appends one JSON-Lines
// record per mutation to an active file, rotating to a dated sibling
// whenever the local calendar day of an incoming record's ts differs
// from the local calendar day of the active file's last write.
//
// All five TxnLogger methods funnel through a single mutex so that
// entries for distinct mutations are never interleaved within one
// line and rotation can't race with an in-flight append.
type Logger struct {
	mu         sync.Mutex
	activePath string
	file       *os.File
	diag       zerolog.Logger
}

// New creates a Logger whose active file lives at activePath (typically
// "<db-path-without-extension>.txn.log"). The file and its parent
// directory are created lazily on first append, not here. diag receives
// best-effort diagnostics for write/rotation failures; the caller is
// never notified of those failures directly, since the log is an
// advisory audit trail.
func New(activePath string, diag zerolog.Logger) *Logger {
	return &Logger{activePath: activePath, diag: diag}
}

func (l *Logger) LogInsertAfter(typ, key string, value []byte, ts, updatedAt float64, txid string) {
	l.append(kv.OpInsertAfter, typ, key, value, ts, updatedAt, txid)
}

func (l *Logger) LogUpdateBefore(typ, key string, value []byte, ts, updatedAt float64, txid string) {
	l.append(kv.OpUpdateBefore, typ, key, value, ts, updatedAt, txid)
}

func (l *Logger) LogUpdateAfter(typ, key string, value []byte, ts, updatedAt float64, txid string) {
	l.append(kv.OpUpdateAfter, typ, key, value, ts, updatedAt, txid)
}

func (l *Logger) LogDeleteBefore(typ, key string, value []byte, ts, updatedAt float64, txid string) {
	l.append(kv.OpDeleteBefore, typ, key, value, ts, updatedAt, txid)
}

func (l *Logger) LogDeleteBeforeMissing(typ, key string, ts, updatedAt float64, txid string) {
	l.append(kv.OpDeleteBeforeMissing, typ, key, nil, ts, updatedAt, txid)
}

// Close releases the active file handle, if one is open. Safe to call
// even if no append has happened yet.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) append(op kv.Op, typ, key string, value []byte, ts, updatedAt float64, txid string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeededLocked(ts); err != nil {
		l.diag.Warn().Err(err).Str("path", l.activePath).Msg("txnlog: rotation failed, appending to existing file")
	}

	if err := l.openLocked(); err != nil {
		l.diag.Warn().Err(err).Str("path", l.activePath).Msg("txnlog: failed to open active log file")
		return
	}

	line := buildLine(op, typ, key, value, ts, updatedAt, txid)
	if _, err := l.file.Write(line); err != nil {
		l.diag.Warn().Err(err).Str("path", l.activePath).Msg("txnlog: append failed")
		return
	}
	if err := l.file.Sync(); err != nil {
		l.diag.Warn().Err(err).Str("path", l.activePath).Msg("txnlog: fsync failed")
	}

	// Stamp the active file's mtime with the event's own time so the
	// *next* append's rotation check compares against the logical day
	// of the last record written, not merely the wall-clock moment the
	// OS happened to flush it. Rotation keys off the event's own time
	// rather than the wall clock, so a backdated event correctly rolls
	// a fresh file to its logical day on the following write.
	eventTime := secondsToTime(ts)
	if err := os.Chtimes(l.activePath, eventTime, eventTime); err != nil {
		l.diag.Warn().Err(err).Str("path", l.activePath).Msg("txnlog: failed to stamp log mtime")
	}
}

// openLocked lazily creates the active file (and its parent directory)
// and keeps the handle positioned at end-of-file for appends.
func (l *Logger) openLocked() error {
	if l.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.activePath), 0o755); err != nil {
		return fmt.Errorf("txnlog: create log dir: %w", err)
	}
	f, err := os.OpenFile(l.activePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("txnlog: open active log: %w", err)
	}
	l.file = f
	return nil
}

// rotateIfNeededLocked rotates the active file to a dated sibling when
// the local day of ts differs from the local day of the active file's
// last modification. A missing or empty active file never rotates.
func (l *Logger) rotateIfNeededLocked(ts float64) error {
	info, err := os.Stat(l.activePath)
	if err != nil {
		// Missing file: nothing to rotate, append will create it.
		return nil
	}
	if info.Size() == 0 {
		return nil
	}

	eventDay := localDay(secondsToTime(ts))
	fileDay := localDay(info.ModTime())
	if eventDay == fileDay {
		return nil
	}

	if l.file != nil {
		if err := l.file.Close(); err != nil {
			return err
		}
		l.file = nil
	}

	datedPath := datedName(l.activePath, fileDay)
	target, err := nextFreeName(datedPath)
	if err != nil {
		return err
	}
	if err := os.Rename(l.activePath, target); err != nil {
		return fmt.Errorf("txnlog: rotate rename: %w", err)
	}
	metrics.LogRotationsTotal.Inc()
	return nil
}

func localDay(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

func secondsToTime(ts float64) time.Time {
	return time.Unix(0, int64(ts*float64(time.Second)))
}

// datedName derives "<base>.YYYY-MM-DD.txn.log" from an active path
// named "<base>.txn.log".
func datedName(activePath, day string) string {
	const suffix = ".txn.log"
	base := strings.TrimSuffix(activePath, suffix)
	return base + "." + day + suffix
}

// nextFreeName returns datedPath if it doesn't exist yet, or the first
// "datedPath.N" (N starting at 1) that is free.
func nextFreeName(datedPath string) (string, error) {
	if _, err := os.Stat(datedPath); os.IsNotExist(err) {
		return datedPath, nil
	} else if err != nil {
		return "", err
	}
	for n := 1; ; n++ {
		candidate := datedPath + "." + strconv.Itoa(n)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", err
		}
	}
}
