package export

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/spaceboy92/Aether-IDE/internal/types"
)

func TestStandaloneHTMLInlinesAssets(t *testing.T) {
	files := []types.FileNode{
		{Name: "index.html", Content: "<html><head></head><body><div id=\"root\"></div></body></html>"},
		{Name: "src/index.css", Content: "body { margin: 0; }"},
		{Name: "src/App.js", Content: "console.log('hi');"},
	}

	out := StandaloneHTML(files)

	if !strings.Contains(out, "<style>body { margin: 0; }</style></head>") {
		t.Errorf("css not inlined before </head>:\n%s", out)
	}
	if !strings.Contains(out, "<script type=\"module\">console.log('hi');</script></body>") {
		t.Errorf("js not inlined before </body>:\n%s", out)
	}
	if !strings.Contains(out, "<div id=\"root\">") {
		t.Error("original markup lost")
	}
}

func TestStandaloneHTMLMultipleAssets(t *testing.T) {
	files := []types.FileNode{
		{Name: "index.html", Content: "<head></head><body></body>"},
		{Name: "a.css", Content: "a{}"},
		{Name: "b.css", Content: "b{}"},
		{Name: "a.js", Content: "1"},
		{Name: "b.js", Content: "2"},
	}

	out := StandaloneHTML(files)

	for _, want := range []string{"a{}", "b{}", ">1</script>", ">2</script>"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestStandaloneHTMLMissingEntry(t *testing.T) {
	files := []types.FileNode{
		{Name: "src/App.js", Content: "code"},
	}

	out := StandaloneHTML(files)
	if out != "<h1>No index.html found</h1>" {
		t.Errorf("placeholder = %q", out)
	}
}

func TestProjectZipRoundTrip(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0x01}
	files := []types.FileNode{
		{Name: "index.html", Content: "<html></html>"},
		{Name: "src/App.js", Content: "console.log(1);"},
		{Name: "logo.png", Content: "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw), IsBinary: true},
	}

	data, err := ProjectZip(files)
	if err != nil {
		t.Fatalf("ProjectZip: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("not a zip: %v", err)
	}

	got := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		got[f.Name] = content
	}

	want := map[string][]byte{
		"index.html": []byte("<html></html>"),
		"src/App.js": []byte("console.log(1);"),
		"logo.png":   raw,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("zip contents mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectZipRejectsCorruptDataURL(t *testing.T) {
	files := []types.FileNode{
		{Name: "bad.png", Content: "data:image/png;base64,???", IsBinary: true},
	}
	if _, err := ProjectZip(files); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestProjectZipEmptyProject(t *testing.T) {
	data, err := ProjectZip(nil)
	if err != nil {
		t.Fatalf("ProjectZip: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("not a zip: %v", err)
	}
	if len(zr.File) != 0 {
		t.Errorf("files = %d, want 0", len(zr.File))
	}
}
