package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromText(t *testing.T) {
	res := FromText("# Summary\nAPT28 targeted energy firms.\n\n## Malware\nX-Agent was deployed.\n")

	require.Len(t, res.Sections, 2)
	assert.Equal(t, "Summary", res.Sections[0].Heading)
	assert.Equal(t, "APT28 targeted energy firms.", res.Sections[0].Content)
	assert.Equal(t, "Malware", res.Sections[1].Heading)
	assert.Equal(t, "APT28 targeted energy firms.\n\nX-Agent was deployed.", res.Text())
}

func TestFromTextWithoutHeadings(t *testing.T) {
	res := FromText("just one paragraph")
	require.Len(t, res.Sections, 1)
	assert.Empty(t, res.Sections[0].Heading)
}

func TestRegistryParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.TXT")
	require.NoError(t, os.WriteFile(path, []byte("Sandworm used Industroyer."), 0o644))

	res, err := NewRegistry().ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "txt", res.Format)
	assert.Equal(t, "Sandworm used Industroyer.", res.Text())
}

func TestRegistryUnknownFormat(t *testing.T) {
	_, err := NewRegistry().ParseFile(context.Background(), "report.docx")
	assert.Error(t, err)
}
