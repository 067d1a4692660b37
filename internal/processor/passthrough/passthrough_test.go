package passthrough

import (
	"bytes"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

func TestHandlesEverything(t *testing.T) {
	p := New()
	for _, rel := range []string{"a.png", "deep/dir/file", "x.toml", ".hidden"} {
		assert.True(t, p.Handles(rel))
		assert.Equal(t, rel, p.OutputPath(rel))
	}
	assert.True(t, processor.IsVerbatim(p))
}

func TestProcess_ByteIdenticalRoundTrip(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	rng := rand.New(rand.NewPCG(1, 2))
	payload := make([]byte, 64*1024)
	for i := range payload {
		payload[i] = byte(rng.UintN(256))
	}
	rel := "assets/img/blob.bin"
	require.NoError(t, os.MkdirAll(filepath.Join(in, "assets", "img"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(in, filepath.FromSlash(rel)), payload, 0o600))

	rec, err := New().Process(t.Context(), processor.Request{InputRoot: in, OutputRoot: out, Path: rel})
	require.NoError(t, err)
	assert.Empty(t, rec.Messages)

	got, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
}

func TestProcess_MissingSourceFailsFile(t *testing.T) {
	_, err := New().Process(t.Context(), processor.Request{InputRoot: t.TempDir(), OutputRoot: t.TempDir(), Path: "nope"})
	require.Error(t, err)
}
