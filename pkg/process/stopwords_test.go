package process

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestLoadStopwords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stopwords.txt")
	require.NoError(t, os.WriteFile(path, []byte("The\n  and \n\nOF\nthe\n"), 0644))

	set := LoadStopwords(path, discardLogger())

	assert.Equal(t, 3, set.Len())
	assert.True(t, set.Contains("the"))
	assert.True(t, set.Contains("and"))
	assert.True(t, set.Contains("of"))
	assert.False(t, set.Contains("OF"), "lookups expect lower-case input")
	assert.False(t, set.Contains(""))
}

func TestLoadStopwords_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	set := LoadStopwords(filepath.Join(t.TempDir(), "nope.txt"), log)

	require.NotNil(t, set)
	assert.Equal(t, 0, set.Len())
	assert.Contains(t, buf.String(), "level=warning")
	assert.Contains(t, buf.String(), "configuration load error")
}

func TestNewStopwordSet(t *testing.T) {
	set := NewStopwordSet(" A ", "b", "", "B")
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains("a"))
	assert.True(t, set.Contains("b"))

	var zero StopwordSet
	assert.False(t, zero.Contains("a"))
	assert.Equal(t, 0, zero.Len())
}
