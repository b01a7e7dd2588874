package debug

import (
	"bytes"
	"testing"

	"github.com/jfjallid/golog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]int{
		"none":   golog.LevelNone,
		"error":  golog.LevelError,
		"":       golog.LevelNotice,
		"INFO":   golog.LevelInfo,
		"debug":  golog.LevelDebug,
		"notice": golog.LevelNotice,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetLevel(t *testing.T) {
	defer SetLevel("notice")

	require.NoError(t, SetLevel("debug"))
	assert.True(t, Verbose)
	require.NoError(t, SetLevel("error"))
	assert.False(t, Verbose)
	assert.Error(t, SetLevel("chatty"))
}

func TestPrintf(t *testing.T) {
	defer SetLevel("notice")
	var buf bytes.Buffer

	require.NoError(t, SetLevel("debug"))
	log.SetOutput(&buf)
	Printf("opened %s\n", "x")
	Println("read", 3, "bytes")
	assert.Contains(t, buf.String(), "[Debug] opened x\n")
	assert.Contains(t, buf.String(), "[Debug] read 3 bytes\n")

	buf.Reset()
	require.NoError(t, SetLevel("info"))
	log.SetOutput(&buf)
	Printf("hidden\n")
	Println("hidden")
	assert.Empty(t, buf.String())
}
