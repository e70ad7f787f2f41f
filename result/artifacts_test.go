package result

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteArtifactsAllFormats(t *testing.T) {
	dir := t.TempDir()
	formats := []string{"json", "csv", "markdown", "html", "links", "text"}

	if err := WriteArtifacts(dir, formats, sampleResults()); err != nil {
		t.Fatalf("WriteArtifacts() error: %v", err)
	}

	for _, name := range []string{"results.json", "results.csv", "results.md", "report.html", "links.txt", "results.txt"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("artifact %s is empty", name)
		}
	}
}

func TestWriteArtifactsJSONRoundTrips(t *testing.T) {
	dir := t.TempDir()
	res := sampleResults()

	if err := WriteArtifacts(dir, []string{"json"}, res); err != nil {
		t.Fatalf("WriteArtifacts() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "results.json"))
	if err != nil {
		t.Fatalf("read results.json: %v", err)
	}

	var decoded CrawlResults
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal results.json: %v", err)
	}
	if decoded.Stats.PagesCrawled != res.Stats.PagesCrawled {
		t.Errorf("pages_crawled = %d, want %d", decoded.Stats.PagesCrawled, res.Stats.PagesCrawled)
	}
	if len(decoded.Results) != len(res.Results) {
		t.Errorf("results length = %d, want %d", len(decoded.Results), len(res.Results))
	}
}

func TestWriteArtifactsUnknownFormat(t *testing.T) {
	if err := WriteArtifacts(t.TempDir(), []string{"yaml"}, sampleResults()); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestWriteArtifactsCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	if err := WriteArtifacts(dir, []string{"text"}, sampleResults()); err != nil {
		t.Fatalf("WriteArtifacts() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "results.txt")); err != nil {
		t.Errorf("artifact not written in created dir: %v", err)
	}
}
