package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/market-research/pkg/archive"
	"github.com/mikeboe/market-research/pkg/sources"
)

func TestArgOrFlag(t *testing.T) {
	tests := []struct {
		name string
		args []string
		flag string
		want string
	}{
		{name: "flag wins", args: []string{"ignored"}, flag: "meal kits", want: "meal kits"},
		{name: "args joined", args: []string{"meal", "kits"}, want: "meal kits"},
		{name: "empty", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, argOrFlag(tt.args, tt.flag))
		})
	}
}

func TestSourceIndex(t *testing.T) {
	refs := sourceIndex([]archive.Entry{
		{Pipeline: "competitors", Entity: "Acme", Sources: []sources.SearchResult{
			{Title: "Acme pricing", URL: "https://acme.test/pricing"},
		}},
		{Pipeline: "competitors", Entity: "Globex"},
	})

	assert.Equal(t, []sourceRef{
		{Pipeline: "competitors", Entity: "Acme", Title: "Acme pricing", URL: "https://acme.test/pricing"},
	}, refs)
	assert.NotNil(t, sourceIndex(nil))
}

func TestSourcesSection(t *testing.T) {
	assert.Empty(t, sourcesSection(nil))
	assert.Equal(t, "\n\n## Sources\n\n- https://a.test\n- https://b.test\n",
		sourcesSection([]string{"https://a.test", "https://b.test"}))
}

func TestWriteMarkdownCreatesDirectory(t *testing.T) {
	prev := outDir
	outDir = filepath.Join(t.TempDir(), "nested")
	t.Cleanup(func() { outDir = prev })

	require.NoError(t, writeMarkdown("report", "# Title"))

	matches, err := filepath.Glob(filepath.Join(outDir, "report_*.md"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, "# Title", string(data))
}
