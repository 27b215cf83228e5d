package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

func TestFSObjectStoreFetch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "receipts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "receipts", "a.png"), []byte("payload"), 0o600))

	store := NewFSObjectStore(root)

	data, err := store.Fetch(context.Background(), "receipts/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestFSObjectStoreRejectsTraversal(t *testing.T) {
	store := NewFSObjectStore(t.TempDir())

	_, err := store.Fetch(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = store.Fetch(context.Background(), "/etc/passwd")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestFSObjectStoreMissingFileIsProviderError(t *testing.T) {
	store := NewFSObjectStore(t.TempDir())

	_, err := store.Fetch(context.Background(), "nope.png")
	assert.ErrorIs(t, err, common.ErrProvider)
}

func TestFSArtifactStoreSaveRaw(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	store := NewFSArtifactStore(dir)

	fragments := []entity.TextFragment{
		{Granularity: entity.GranularityLine, Text: "Walmart", Confidence: 0.98},
	}
	ref, err := store.SaveRaw(context.Background(), "job-1", fragments)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "extraction-job-1.json"), ref)

	data, err := os.ReadFile(ref)
	require.NoError(t, err)
	var got []entity.TextFragment
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Walmart", got[0].Text)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFormatSniffers(t *testing.T) {
	assert.True(t, isPDF([]byte("%PDF-1.7 rest")))
	assert.False(t, isPDF([]byte("PDF")))

	assert.True(t, isPNG(pngBytes(t)))
	assert.False(t, isPNG([]byte("notpng")))

	heicHeader := append([]byte{0, 0, 0, 0x18}, []byte("ftypheic")...)
	heicHeader = append(heicHeader, make([]byte, 8)...)
	assert.True(t, isHEIC(heicHeader))
	assert.False(t, isHEIC([]byte("short")))
}

func TestPrepareImagePNGPassthrough(t *testing.T) {
	data := pngBytes(t)
	out, err := prepareImage(data)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestPrepareImageRejectsGarbage(t *testing.T) {
	_, err := prepareImage([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestExtractionLines(t *testing.T) {
	e := Extraction{Fragments: []entity.TextFragment{
		{Granularity: entity.GranularityLine, Text: "a"},
		{Granularity: entity.GranularityWord, Text: "b"},
		{Granularity: entity.GranularityLine, Text: "c"},
	}}
	lines := e.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "a", lines[0].Text)
	assert.Equal(t, "c", lines[1].Text)
}
