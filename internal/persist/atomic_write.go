package persist

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
)

// writeFileAtomic writes data to a temp file beside path and renames it
// into place, so a reader never observes a partially-written file (spec
// §4.N/§7: snapshot and account writes are atomic). The rename is
// wrapped in a short constant-backoff retry — a transient rename failure
// gets up to three more attempts, 20ms apart and within one second,
// before the caller's save cycle gives up and tries again next interval.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tmp, err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewConstant(20*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := os.Rename(tmp, path); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

