package filemanager

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tino/internal/event/events"
	"github.com/dshills/tino/internal/event/topic"
	"github.com/dshills/tino/internal/filemanager/backup"
	"github.com/dshills/tino/internal/filemanager/encoding"
	ferrors "github.com/dshills/tino/internal/filemanager/errors"
)

// capturePublisher records published events for inspection.
type capturePublisher struct {
	mu       sync.Mutex
	topics   []topic.Topic
	payloads []any
}

func (c *capturePublisher) Publish(t topic.Topic, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, t)
	c.payloads = append(c.payloads, payload)
}

func (c *capturePublisher) last() (topic.Topic, any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.topics) == 0 {
		return "", nil
	}
	return c.topics[len(c.topics)-1], c.payloads[len(c.payloads)-1]
}

func TestOpenMissingFile(t *testing.T) {
	m := New()

	_, err := m.Open(filepath.Join(t.TempDir(), "nope.md"))
	require.Error(t, err)
	assert.True(t, ferrors.IsNotFound(err))
}

func TestSaveOpenRoundTrip(t *testing.T) {
	m := New()
	path := filepath.Join(t.TempDir(), "doc.md")

	require.NoError(t, m.Save(path, "# Notes\n\nhello world\n"))

	content, err := m.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "# Notes\n\nhello world\n", content)

	enc, err := m.Encoding(path)
	require.NoError(t, err)
	assert.Equal(t, encoding.UTF8, enc)
}

func TestSaveBacksUpExistingFileOnce(t *testing.T) {
	pub := &capturePublisher{}
	m := New(WithPublisher(pub))
	path := filepath.Join(t.TempDir(), "doc.md")

	// New file: nothing to back up.
	require.NoError(t, m.Save(path, "v1"))
	assert.NoFileExists(t, path+backup.Suffix)

	// First save over an existing file backs it up.
	require.NoError(t, m.Save(path, "v2"))
	data, err := os.ReadFile(path + backup.Suffix)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	_, payload := pub.last()
	saved, ok := payload.(events.FileSaved)
	require.True(t, ok)
	assert.True(t, saved.BackupCreated)

	// Further saves leave the backup alone.
	require.NoError(t, m.Save(path, "v3"))
	data, err = os.ReadFile(path + backup.Suffix)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	_, payload = pub.last()
	assert.False(t, payload.(events.FileSaved).BackupCreated)
}

func TestRestoreBackup(t *testing.T) {
	m := New()
	path := filepath.Join(t.TempDir(), "doc.md")

	require.NoError(t, m.Save(path, "good"))
	require.NoError(t, m.Save(path, "bad"))
	require.NoError(t, m.RestoreBackup(path))

	content, err := m.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "good", content)
}

func TestBackupQueries(t *testing.T) {
	m := New()
	path := filepath.Join(t.TempDir(), "doc.md")

	require.NoError(t, m.Save(path, "12345"))

	backupPath, err := m.CreateBackup(path)
	require.NoError(t, err)
	assert.Equal(t, path+backup.Suffix, backupPath)

	info, ok := m.BackupInfo(path)
	require.True(t, ok)
	assert.Equal(t, int64(5), info.Size)

	assert.True(t, m.DeleteBackup(path))
	_, ok = m.BackupInfo(path)
	assert.False(t, ok)
}

func TestOpenRejectsBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.png")
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n', 0, 0, 0, 0}
	require.NoError(t, os.WriteFile(path, png, 0o644))

	m := New()
	_, err := m.Open(path)
	require.Error(t, err)
	assert.True(t, ferrors.IsBinaryFile(err))
}

func TestOpenStripsUTF8BOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	data := append([]byte{0xEF, 0xBB, 0xBF}, "hello"...)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m := New()
	content, err := m.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
}

func TestSaveWithEncodingUTF8Sig(t *testing.T) {
	m := New()
	path := filepath.Join(t.TempDir(), "doc.md")

	require.NoError(t, m.SaveWithEncoding(path, "hello", encoding.UTF8BOM))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0xEF, 0xBB, 0xBF}, "hello"...), raw)

	// Reopening round-trips without the BOM leaking into content.
	content, err := m.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
}

func TestSaveWithEncodingUnsupported(t *testing.T) {
	m := New()
	path := filepath.Join(t.TempDir(), "doc.md")

	err := m.SaveWithEncoding(path, "x", "ebcdic")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.ErrEncodingUnsupported))
	assert.NoFileExists(t, path)
}

func TestSavePreservesMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	m := New()
	require.NoError(t, m.Save(path, "v2"))

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())
}

func TestInterruptedSaveLeavesOriginalIntact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	m := New()

	require.NoError(t, m.Save(path, "original"))

	// Fail after the temp file is written and synced, as if the process
	// died before the final rename landed.
	m.rename = func(oldpath, newpath string) error {
		return errors.New("rename interrupted")
	}
	require.Error(t, m.Save(path, "replacement"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	matches, err := filepath.Glob(filepath.Join(dir, tempPrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")

	m := New()
	require.NoError(t, m.Save(path, "content"))

	matches, err := filepath.Glob(filepath.Join(dir, tempPrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	m := New()

	assert.False(t, m.Exists(path))
	require.NoError(t, m.Save(path, "x"))
	assert.True(t, m.Exists(path))
}

func TestIsBinary(t *testing.T) {
	dir := t.TempDir()
	m := New()

	text := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(text, []byte("plain text\n"), 0o644))
	assert.False(t, m.IsBinary(text))

	bin := filepath.Join(dir, "blob")
	require.NoError(t, os.WriteFile(bin, []byte{'M', 'Z', 0, 0, 0, 0}, 0o644))
	assert.True(t, m.IsBinary(bin))

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	assert.False(t, m.IsBinary(empty))

	assert.False(t, m.IsBinary(filepath.Join(dir, "missing")))
}

func TestFileInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	m := New()

	_, err := m.FileInfo(path)
	assert.True(t, ferrors.IsNotFound(err))

	require.NoError(t, m.Save(path, "12345"))

	info, err := m.FileInfo(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, encoding.UTF8, info.Encoding)
	assert.False(t, info.ModTime.IsZero())
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.md")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	m := New()

	tests := []struct {
		name       string
		path       string
		want       bool
		reasonPart string
	}{
		{"new file in writable dir", filepath.Join(dir, "new.md"), true, ""},
		{"existing regular file", existing, true, ""},
		{"missing parent", filepath.Join(dir, "no/such/dir/f.md"), false, "parent directory does not exist"},
		{"target is a directory", dir, false, "not a file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := m.ValidatePath(tt.path)
			assert.Equal(t, tt.want, ok)
			if tt.reasonPart == "" {
				assert.Empty(t, reason)
			} else {
				assert.Contains(t, reason, tt.reasonPart)
			}
		})
	}
}

func TestTempPathAndCleanup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	m := New()

	require.NoError(t, m.Save(path, "content"))

	tmpPath, err := m.TempPath(path)
	require.NoError(t, err)
	assert.FileExists(t, tmpPath)
	base := filepath.Base(tmpPath)
	assert.True(t, strings.HasPrefix(base, tempPrefix+"doc.md_"), base)
	assert.True(t, strings.HasSuffix(base, tempSuffix), base)

	// The saved file put dir on the recent list, so the sweep finds it.
	assert.Equal(t, 1, m.CleanupTempFiles())
	assert.NoFileExists(t, tmpPath)
	assert.FileExists(t, path)
}

func TestRecentFilesTracking(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.md")
	b := filepath.Join(dir, "b.md")
	m := New(WithMaxRecentFiles(10))

	require.NoError(t, m.Save(a, "a"))
	require.NoError(t, m.Save(b, "b"))

	assert.Equal(t, []string{b, a}, m.RecentFiles(0))

	last, ok := m.LastFile()
	require.True(t, ok)
	assert.Equal(t, a, last)

	_, err := m.Open(a)
	require.NoError(t, err)
	last, _ = m.LastFile()
	assert.Equal(t, b, last)

	m.ClearRecentFiles()
	assert.Empty(t, m.RecentFiles(0))
}

func TestCursorDelegation(t *testing.T) {
	m := New()
	path := "/tmp/doc.md"

	_, ok := m.Cursor(path)
	assert.False(t, ok)

	m.SetCursor(path, 12, 40)
	pos, ok := m.Cursor(path)
	require.True(t, ok)
	assert.Equal(t, 12, pos.Line)
	assert.Equal(t, 40, pos.Column)
}

func TestCleanupMissingFiles(t *testing.T) {
	dir := t.TempDir()
	gone := filepath.Join(dir, "gone.md")
	m := New()

	m.AddRecentFile(gone)
	m.SetCursor(gone, 1, 1)

	assert.Equal(t, 2, m.CleanupMissingFiles())
	assert.Empty(t, m.RecentFiles(0))
}

func TestEvents(t *testing.T) {
	pub := &capturePublisher{}
	m := New(WithPublisher(pub))
	path := filepath.Join(t.TempDir(), "doc.md")

	require.NoError(t, m.Save(path, "héllo"))
	tp, payload := pub.last()
	assert.Equal(t, events.TopicFileSaved, tp)
	saved := payload.(events.FileSaved)
	assert.Equal(t, 5, saved.Size, "size counts characters, not bytes")
	assert.Equal(t, encoding.UTF8, saved.Encoding)

	_, err := m.Open(path)
	require.NoError(t, err)
	tp, payload = pub.last()
	assert.Equal(t, events.TopicFileOpened, tp)
	opened := payload.(events.FileOpened)
	assert.Equal(t, 5, opened.Size)

	m.Close(path, true, false)
	tp, payload = pub.last()
	assert.Equal(t, events.TopicFileClosed, tp)
	closed := payload.(events.FileClosed)
	assert.True(t, closed.WasModified)
	assert.False(t, closed.Saved)
}

func TestStatsAggregates(t *testing.T) {
	m := New()
	path := filepath.Join(t.TempDir(), "doc.md")

	require.NoError(t, m.Save(path, "v1"))
	require.NoError(t, m.Save(path, "v2")) // triggers backup
	m.SetCursor(path, 3, 4)

	s := m.Stats()
	assert.Equal(t, 1, s.Recent.Total)
	assert.Equal(t, 1, s.Cursor.Total)
	assert.Equal(t, 1, s.BackedUpFiles)
}
