package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/handiism/quicksong/internal/config"
	"github.com/handiism/quicksong/internal/download"
	"github.com/handiism/quicksong/internal/model"
	"github.com/handiism/quicksong/internal/osu"
	"github.com/sirupsen/logrus"
)

func testSettings(t *testing.T, baseURL string) *config.Settings {
	t.Helper()
	s := config.DefaultSettings()
	s.DownloadPath = t.TempDir()
	s.SongsPath = t.TempDir()
	s.CookiesFile = filepath.Join(t.TempDir(), "osu.cookies")
	s.BaseURL = baseURL
	s.RequestsPerSecond = 0
	return s
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRunner_Run(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := osu.ExtractID(r.URL.Path)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%d Song.osz"`, id))
		w.Write([]byte("archive"))
	}))
	defer srv.Close()

	s := testSettings(t, srv.URL)
	if err := os.Mkdir(filepath.Join(s.SongsPath, "998877 Old Song"), 0o755); err != nil {
		t.Fatal(err)
	}

	var (
		mu      sync.Mutex
		planned int
		results []download.Result
	)
	hooks := Hooks{
		OnPlan: func(total int) { planned = total },
		OnResult: func(r download.Result) {
			mu.Lock()
			defer mu.Unlock()
			results = append(results, r)
		},
	}

	links := []string{
		srv.URL + "/beatmapsets/123456",
		"998877",
		"not a link",
		"123456",
	}
	report, err := New(s, quietLogger()).Run(context.Background(), links, hooks)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if planned != 2 {
		t.Errorf("planned = %d, want 2", planned)
	}
	if got := report.Count(model.OutcomeSucceeded); got != 1 {
		t.Errorf("succeeded = %d, want 1", got)
	}
	if got := report.Count(model.OutcomeSkipped); got != 1 {
		t.Errorf("skipped = %d, want 1", got)
	}
	if len(results) != 2 {
		t.Errorf("OnResult called %d times, want 2", len(results))
	}
	if _, err := os.Stat(filepath.Join(s.DownloadPath, "123456 Song.osz")); err != nil {
		t.Errorf("archive missing: %v", err)
	}
}

func TestRunner_DumpExisting(t *testing.T) {
	s := testSettings(t, "https://osu.ppy.sh")
	for _, name := range []string{"2 B", "1 A"} {
		if err := os.Mkdir(filepath.Join(s.SongsPath, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	n, err := New(s, quietLogger()).DumpExisting(&buf)
	if err != nil {
		t.Fatalf("DumpExisting: %v", err)
	}
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}
	want := "https://osu.ppy.sh/beatmapsets/1\nhttps://osu.ppy.sh/beatmapsets/2\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRunner_IdentityPoolDisabled(t *testing.T) {
	s := testSettings(t, "https://osu.ppy.sh")
	s.UseProxy = false
	if pool := New(s, quietLogger()).IdentityPool(context.Background()); pool != nil {
		t.Error("pool built with proxying off")
	}
}

func TestRunner_IdentityPoolFromDirectory(t *testing.T) {
	dir := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<table><tbody>
<tr><td>10.0.0.1</td><td>8080</td></tr>
<tr><td>10.0.0.2</td><td>8080</td></tr>
</tbody></table>`)
	}))
	defer dir.Close()

	s := testSettings(t, "https://osu.ppy.sh")
	s.UseProxy = true
	s.ProxyURL = dir.URL
	s.ProbeURL = dir.URL

	pool := New(s, quietLogger()).IdentityPool(context.Background())
	if pool == nil {
		t.Fatal("no pool")
	}
	if got := pool.Generation(); got != 1 {
		t.Errorf("Generation() = %d, want 1", got)
	}
}
