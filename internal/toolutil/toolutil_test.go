package toolutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadText(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(p, []byte(strings.Repeat("é", 200)), 0o644); err != nil {
		t.Fatal(err)
	}

	text, truncated, err := ReadText(p, 500)
	if err != nil || truncated || text != strings.Repeat("é", 200) {
		t.Errorf("ReadText(500) = %q, %v, %v", text, truncated, err)
	}

	text, truncated, err = ReadText(p, 100)
	if err != nil || !truncated {
		t.Fatalf("ReadText(100) truncated = %v, err = %v", truncated, err)
	}
	if !strings.HasPrefix(text, strings.Repeat("é", 80)) || !strings.HasSuffix(text, "[truncated]") {
		t.Errorf("ReadText(100) = %q", text)
	}
	if strings.Count(text, "é") >= 200 {
		t.Error("text was not shortened")
	}
}

func TestRequireURL(t *testing.T) {
	if _, err := RequireURL("  "); err == nil {
		t.Error("blank url must be rejected")
	}
	if u, err := RequireURL(" https://youtu.be/x "); err != nil || u != "https://youtu.be/x" {
		t.Errorf("RequireURL = %q, %v", u, err)
	}
}
