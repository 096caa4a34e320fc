package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(i int) Record {
	return Record{
		BackupID:  fmt.Sprintf("bk-%02d", i),
		Timestamp: time.Date(2025, 7, 1, 10, i, 0, 0, time.UTC),
		Manual:    i%2 == 0,
	}
}

func TestPrepend(t *testing.T) {
	var list []Record
	for i := 1; i <= 12; i++ {
		list = Prepend(list, rec(i))
	}
	require.Len(t, list, MaxRecords)
	assert.Equal(t, "bk-12", list[0].BackupID, "newest first")
	assert.Equal(t, "bk-03", list[MaxRecords-1].BackupID, "two oldest evicted")
}

func TestPrependDoesNotAlias(t *testing.T) {
	list := []Record{rec(1), rec(2)}
	out := Prepend(list, rec(3))
	out[1].BackupID = "changed"
	assert.Equal(t, "bk-01", list[0].BackupID)
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	assert.Equal(t, "/tmp/state/sessionguard", DefaultDir())
}

func TestFileStorePath(t *testing.T) {
	s := NewFileStore("/tmp/test-dir")
	assert.Equal(t, "/tmp/test-dir/session_backups.json", s.Path())
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	_, err := s.Add(rec(1))
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, ".backups-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFileStoreCorruptLedger(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ledgerFileName), []byte("{not json"), 0o600))

	_, err := NewFileStore(dir).List()
	assert.Error(t, err)
}

func openBolt(t *testing.T) *BoltStore {
	t.Helper()
	s, err := OpenBoltStore(filepath.Join(t.TempDir(), "backups.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Every implementation must satisfy the same ledger contract.
func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"file":   func(t *testing.T) Store { return NewFileStore(t.TempDir()) },
		"bolt":   func(t *testing.T) Store { return openBolt(t) },
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			t.Run("empty", func(t *testing.T) {
				list, err := open(t).List()
				require.NoError(t, err)
				assert.Empty(t, list)
			})

			t.Run("add and list", func(t *testing.T) {
				s := open(t)
				_, err := s.Add(rec(1))
				require.NoError(t, err)
				got, err := s.Add(rec(2))
				require.NoError(t, err)
				require.Len(t, got, 2)

				list, err := s.List()
				require.NoError(t, err)
				require.Len(t, list, 2)
				assert.Equal(t, "bk-02", list[0].BackupID)
				assert.Equal(t, "bk-01", list[1].BackupID)
				assert.True(t, list[0].Manual)
				assert.True(t, list[1].Timestamp.Equal(rec(1).Timestamp))
			})

			t.Run("cap", func(t *testing.T) {
				s := open(t)
				for i := 1; i <= MaxRecords+1; i++ {
					_, err := s.Add(rec(i))
					require.NoError(t, err)
				}
				list, err := s.List()
				require.NoError(t, err)
				require.Len(t, list, MaxRecords)
				assert.Equal(t, "bk-11", list[0].BackupID)
				assert.Equal(t, "bk-02", list[MaxRecords-1].BackupID)
			})

			t.Run("duplicate id", func(t *testing.T) {
				s := open(t)
				_, err := s.Add(rec(1))
				require.NoError(t, err)
				_, err = s.Add(rec(1))
				assert.ErrorIs(t, err, ErrDuplicateID)

				list, err := s.List()
				require.NoError(t, err)
				assert.Len(t, list, 1)
			})

			t.Run("empty id", func(t *testing.T) {
				_, err := open(t).Add(Record{})
				assert.Error(t, err)
			})

			t.Run("zero timestamp stamped", func(t *testing.T) {
				got, err := open(t).Add(Record{BackupID: "x"})
				require.NoError(t, err)
				assert.False(t, got[0].Timestamp.IsZero())
			})
		})
	}
}
