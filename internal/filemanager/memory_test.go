package filemanager

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tino/internal/event/events"
	"github.com/dshills/tino/internal/filemanager/backup"
	"github.com/dshills/tino/internal/filemanager/encoding"
	ferrors "github.com/dshills/tino/internal/filemanager/errors"
)

func TestMemOpen(t *testing.T) {
	m := NewMemManager()
	m.AddFile("/doc.md", "hello", "", false)

	content, err := m.Open("/doc.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
	assert.Equal(t, []string{"/doc.md"}, m.RecentFiles(0))
}

func TestMemOpenMissing(t *testing.T) {
	m := NewMemManager()

	_, err := m.Open("/nope.md")
	require.Error(t, err)
	assert.True(t, ferrors.IsNotFound(err))
}

func TestMemOpenBinary(t *testing.T) {
	m := NewMemManager()
	m.AddFile("/blob", "\x00\x00\x00", "", true)

	_, err := m.Open("/blob")
	require.Error(t, err)
	assert.True(t, ferrors.IsBinaryFile(err))
	assert.True(t, m.IsBinary("/blob"))
}

func TestMemSaveBacksUpOnce(t *testing.T) {
	m := NewMemManager()
	m.AddFile("/doc.md", "v1", "", false)

	require.NoError(t, m.Save("/doc.md", "v2"))
	info, ok := m.BackupInfo("/doc.md")
	require.True(t, ok)
	assert.Equal(t, "/doc.md"+backup.Suffix, info.Path)
	assert.Equal(t, int64(2), info.Size)

	// Second save must not refresh the backup.
	require.NoError(t, m.Save("/doc.md", "v3"))
	require.NoError(t, m.RestoreBackup("/doc.md"))

	content, err := m.Open("/doc.md")
	require.NoError(t, err)
	assert.Equal(t, "v1", content)
}

func TestMemSaveNewFile(t *testing.T) {
	m := NewMemManager()

	require.NoError(t, m.Save("/new.md", "content"))
	assert.True(t, m.Exists("/new.md"))

	enc, err := m.Encoding("/new.md")
	require.NoError(t, err)
	assert.Equal(t, encoding.UTF8, enc)

	_, ok := m.BackupInfo("/new.md")
	assert.False(t, ok, "new file needs no backup")
}

func TestMemSaveWithEncoding(t *testing.T) {
	m := NewMemManager()

	require.NoError(t, m.SaveWithEncoding("/doc.md", "x", "Latin1"))
	enc, err := m.Encoding("/doc.md")
	require.NoError(t, err)
	assert.Equal(t, encoding.Latin1, enc)

	err = m.SaveWithEncoding("/doc.md", "x", "ebcdic")
	assert.True(t, errors.Is(err, ferrors.ErrEncodingUnsupported))
}

func TestMemCreateDeleteBackup(t *testing.T) {
	m := NewMemManager()
	m.AddFile("/doc.md", "content", "", false)

	backupPath, err := m.CreateBackup("/doc.md")
	require.NoError(t, err)
	assert.Equal(t, "/doc.md"+backup.Suffix, backupPath)

	// Backup-once: the second request is a no-op.
	backupPath, err = m.CreateBackup("/doc.md")
	require.NoError(t, err)
	assert.Empty(t, backupPath)

	assert.True(t, m.DeleteBackup("/doc.md"))
	assert.False(t, m.DeleteBackup("/doc.md"))
}

func TestMemRestoreWithoutBackup(t *testing.T) {
	m := NewMemManager()

	err := m.RestoreBackup("/doc.md")
	assert.True(t, ferrors.IsNotFound(err))
}

func TestMemFailureInjection(t *testing.T) {
	m := NewMemManager()
	m.AddFile("/doc.md", "content", "", false)

	boom := errors.New("boom")
	m.FailWith("open", boom)
	_, err := m.Open("/doc.md")
	assert.ErrorIs(t, err, boom)

	m.FailWith("open", nil)
	_, err = m.Open("/doc.md")
	assert.NoError(t, err)

	m.FailWith("save", boom)
	assert.ErrorIs(t, m.Save("/doc.md", "x"), boom)
}

func TestMemHistory(t *testing.T) {
	m := NewMemManager()
	m.AddFile("/a.md", "a", "", false)

	_, _ = m.Open("/a.md")
	_ = m.Save("/a.md", "a2")
	m.Close("/a.md", true, true)

	hist := m.History()
	require.Len(t, hist, 3)
	assert.Equal(t, Operation{Op: "open", Path: "/a.md"}, hist[0])
	assert.Equal(t, Operation{Op: "save", Path: "/a.md"}, hist[1])
	assert.Equal(t, Operation{Op: "close", Path: "/a.md"}, hist[2])
}

func TestMemRemoveFile(t *testing.T) {
	m := NewMemManager()
	m.AddFile("/doc.md", "content", "", false)
	_, _ = m.Open("/doc.md")
	m.SetCursor("/doc.md", 1, 1)

	m.RemoveFile("/doc.md")

	assert.False(t, m.Exists("/doc.md"))
	assert.Empty(t, m.RecentFiles(0))
	_, ok := m.Cursor("/doc.md")
	assert.False(t, ok)
}

func TestMemFileInfo(t *testing.T) {
	m := NewMemManager()
	m.AddFile("/doc.md", "12345", "latin-1", false)

	info, err := m.FileInfo("/doc.md")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, encoding.Latin1, info.Encoding)

	_, err = m.FileInfo("/missing")
	assert.True(t, ferrors.IsNotFound(err))
}

func TestMemTempPathUnique(t *testing.T) {
	m := NewMemManager()

	a, err := m.TempPath("/doc.md")
	require.NoError(t, err)
	b, err := m.TempPath("/doc.md")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Zero(t, m.CleanupTempFiles())
}

func TestMemValidatePath(t *testing.T) {
	m := NewMemManager()

	ok, reason := m.ValidatePath("/doc.md")
	assert.True(t, ok)
	assert.Empty(t, reason)

	// A path nested under a simulated file has no parent directory.
	m.AddFile("/doc.md", "content", "", false)
	ok, reason = m.ValidatePath("/doc.md/nested.md")
	assert.False(t, ok)
	assert.Contains(t, reason, ferrors.ErrInvalidPath.Error())
	assert.Contains(t, reason, "parent is not a directory")

	m.FailWith("validate", errors.New("quota exceeded"))
	ok, reason = m.ValidatePath("/other.md")
	assert.False(t, ok)
	assert.Equal(t, "quota exceeded", reason)

	m.FailWith("validate", nil)
	ok, _ = m.ValidatePath("/other.md")
	assert.True(t, ok)
}

func TestMemEvents(t *testing.T) {
	pub := &capturePublisher{}
	m := NewMemManager(WithMemPublisher(pub))

	require.NoError(t, m.Save("/doc.md", "héllo"))
	tp, payload := pub.last()
	assert.Equal(t, events.TopicFileSaved, tp)
	assert.Equal(t, 5, payload.(events.FileSaved).Size)

	_, err := m.Open("/doc.md")
	require.NoError(t, err)
	tp, _ = pub.last()
	assert.Equal(t, events.TopicFileOpened, tp)
}

func TestMemLastFile(t *testing.T) {
	m := NewMemManager()
	m.AddFile("/a.md", "a", "", false)
	m.AddFile("/b.md", "b", "", false)

	_, _ = m.Open("/a.md")
	_, _ = m.Open("/b.md")

	last, ok := m.LastFile()
	require.True(t, ok)
	assert.Equal(t, "/a.md", last)
}
