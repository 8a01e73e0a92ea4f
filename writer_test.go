package charon_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agilira/charon"
	"github.com/stretchr/testify/require"
)

func TestFileWriterAppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	w1, err := charon.NewFileWriter(path)
	require.NoError(t, err)
	_, err = w1.Write([]byte("first\n"))
	require.NoError(t, err)
	require.NoError(t, w1.Sync())
	require.NoError(t, w1.Close())

	w2, err := charon.NewFileWriter(path)
	require.NoError(t, err)
	_, err = w2.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, w2.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first\nsecond\n", string(got))
}

func TestFileWriterThroughLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logger.log")
	fw, err := charon.NewFileWriter(path)
	require.NoError(t, err)

	log, err := charon.Open(charon.Config{Writer: fw})
	require.NoError(t, err)

	p := log.NewProducer()
	require.NoError(t, log.Info(p, "persisted"))
	require.NoError(t, log.Close())
	require.NoError(t, fw.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(got), "persisted")
}
