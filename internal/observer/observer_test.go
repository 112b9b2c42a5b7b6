package observer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cockroachdb-vectors/vectorize/internal/updater"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestFinish_WritesWarningsAndErrorsFiles(t *testing.T) {
	dir := t.TempDir()
	o := New(zerolog.Nop(), false, true, 10, dir)
	o.now = fixedClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	o.BatchCompleted(1, 1, updater.Report{
		Applied:  3,
		Warnings: []updater.Entry{{BatchIndex: 1, At: time.Now(), Message: "retried once"}},
		Errors:   []updater.Entry{{BatchIndex: 1, At: time.Now(), Message: "update failed"}},
	})

	require.NoError(t, o.Finish())

	wPath := filepath.Join(dir, "warnings_20260801_120000.log")
	ePath := filepath.Join(dir, "errors_20260801_120000.log")

	wContent, err := os.ReadFile(wPath)
	require.NoError(t, err)
	require.Contains(t, string(wContent), "retried once")

	eContent, err := os.ReadFile(ePath)
	require.NoError(t, err)
	require.Contains(t, string(eContent), "update failed")
}

func TestFinish_NoFilesWhenClean(t *testing.T) {
	dir := t.TempDir()
	o := New(zerolog.Nop(), false, true, 10, dir)
	o.now = fixedClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	o.BatchCompleted(1, 1, updater.Report{Applied: 5})
	require.NoError(t, o.Finish())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestNew_ProgressModeBuildsBar(t *testing.T) {
	o := New(zerolog.Nop(), true, false, 100, t.TempDir())
	require.NotNil(t, o.bar)
}

func TestNew_VerboseModeNoBar(t *testing.T) {
	o := New(zerolog.Nop(), false, true, 100, t.TempDir())
	require.Nil(t, o.bar)
}

func TestRunFinished_ResetsBarWithoutPanic(t *testing.T) {
	o := New(zerolog.Nop(), true, false, 100, t.TempDir())
	o.BatchCompleted(1, 1, updater.Report{Applied: 1})
	o.RunFinished(1)
	o.BatchCompleted(2, 1, updater.Report{Applied: 1})
}
