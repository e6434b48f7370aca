package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriter_StatusWithIconPrefixesIcon(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Status("✓", "done")
	require.Equal(t, "✓ done\n", buf.String())
}

func TestWriter_StatusWithoutIconIndents(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Status("", "detail")
	require.Equal(t, "   detail\n", buf.String())
}

func TestParseFormat_FirstMatchingFlagWins(t *testing.T) {
	require.Equal(t, FormatFiles, ParseFormat(true, true, true, true, true))
	require.Equal(t, FormatJSON, ParseFormat(false, true, true, true, true))
	require.Equal(t, FormatText, ParseFormat(false, false, false, false, false))
}

func TestWriteRows_Files(t *testing.T) {
	var buf bytes.Buffer
	rows := []Row{{Docid: "abc123", FilePath: "notes/a.md", Score: 0.9}}
	require.NoError(t, WriteRows(&buf, FormatFiles, rows))
	require.Equal(t, "notes/a.md\n", buf.String())
}

func TestWriteRows_JSON(t *testing.T) {
	var buf bytes.Buffer
	rows := []Row{{Docid: "abc123", FilePath: "notes/a.md", Score: 0.9, Snippet: "hello"}}
	require.NoError(t, WriteRows(&buf, FormatJSON, rows))

	var decoded []Row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, rows, decoded)
}

func TestWriteRows_CSVIncludesHeader(t *testing.T) {
	var buf bytes.Buffer
	rows := []Row{{Docid: "abc123", FilePath: "a.md", Score: 0.5}}
	require.NoError(t, WriteRows(&buf, FormatCSV, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "docid,file_path,score,snippet", lines[0])
}

func TestWriteRows_MDEscapesPipes(t *testing.T) {
	var buf bytes.Buffer
	rows := []Row{{Docid: "abc123", FilePath: "a.md", Score: 0.5, Snippet: "a|b"}}
	require.NoError(t, WriteRows(&buf, FormatMD, rows))
	require.Contains(t, buf.String(), `a\|b`)
}

func TestWriteRows_XMLWrapsInResultsElement(t *testing.T) {
	var buf bytes.Buffer
	rows := []Row{{Docid: "abc123", FilePath: "a.md", Score: 0.5}}
	require.NoError(t, WriteRows(&buf, FormatXML, rows))
	require.Contains(t, buf.String(), "<results>")
	require.Contains(t, buf.String(), "<result>")
}

func TestWriteRows_TextIncludesDocidAndSnippet(t *testing.T) {
	var buf bytes.Buffer
	rows := []Row{{Docid: "abc123", FilePath: "a.md", Score: 0.873, Snippet: "[match] here"}}
	require.NoError(t, WriteRows(&buf, FormatText, rows))
	out := buf.String()
	require.Contains(t, out, "#abc123")
	require.Contains(t, out, "0.873")
	require.Contains(t, out, "[match] here")
}

func TestWriteRows_EmptyRowsProducesNoText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, FormatText, nil))
	require.Empty(t, buf.String())
}
