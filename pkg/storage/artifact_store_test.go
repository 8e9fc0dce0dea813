package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), Limits{
		AttendanceMaxBytes: 16,
		DocumentMaxBytes:   32,
		EvidenceMaxBytes:   64,
	})
	require.NoError(t, err)
	return store
}

func TestLocalStoreSaveAndRead(t *testing.T) {
	store := newTestStore(t)

	locator, err := store.Save(CategoryAttendance, "att_scha_20240301.xlsx", []byte("workbook"))
	require.NoError(t, err)
	require.Equal(t, "attendance/att_scha_20240301.xlsx", locator)

	data, err := store.Read(locator)
	require.NoError(t, err)
	require.Equal(t, []byte("workbook"), data)
}

func TestLocalStoreRejectsOversizedPayload(t *testing.T) {
	store := newTestStore(t)

	oversized := bytes.Repeat([]byte("x"), 17)
	_, err := store.Save(CategoryAttendance, "big.xlsx", oversized)
	require.ErrorIs(t, err, ErrTooLarge)

	// no partial write
	_, statErr := os.Stat(filepath.Join(store.baseDir, "attendance", "big.xlsx"))
	require.True(t, os.IsNotExist(statErr))
}

func TestLocalStoreSaveStreamChecksDeclaredSize(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SaveStream(CategoryDocument, "doc.pdf", 33, bytes.NewReader([]byte("pdf")))
	require.ErrorIs(t, err, ErrTooLarge)

	locator, err := store.SaveStream(CategoryDocument, "doc.pdf", 3, bytes.NewReader([]byte("pdf")))
	require.NoError(t, err)
	data, err := store.Read(locator)
	require.NoError(t, err)
	require.Equal(t, []byte("pdf"), data)
}

func TestLocalStoreSaveStreamBoundsUndeclaredBytes(t *testing.T) {
	store := newTestStore(t)

	// declared size fits the cap, actual stream does not
	oversized := bytes.Repeat([]byte("x"), 40)
	_, err := store.SaveStream(CategoryDocument, "lied.pdf", 3, bytes.NewReader(oversized))
	require.ErrorIs(t, err, ErrTooLarge)

	_, statErr := os.Stat(filepath.Join(store.baseDir, "documents", "lied.pdf"))
	require.True(t, os.IsNotExist(statErr))
}

func TestLocalStoreDeleteMissingIsNotAnError(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Delete("attendance/never-stored.xlsx"))
}
