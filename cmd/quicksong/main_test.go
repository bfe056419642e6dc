package main

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/gosuri/uilive"
	"github.com/handiism/quicksong/internal/config"
	"github.com/handiism/quicksong/internal/download"
	"github.com/sirupsen/logrus"
)

func TestReadLinks(t *testing.T) {
	list := filepath.Join(t.TempDir(), "links.txt")
	if err := os.WriteFile(list, []byte("https://osu.ppy.sh/beatmapsets/123456\n\n998877\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		file    string
		args    []string
		want    []string
		wantErr bool
	}{
		{"args", "", []string{"123456"}, []string{"123456"}, false},
		{"file", list, nil, []string{"https://osu.ppy.sh/beatmapsets/123456", "998877"}, false},
		{"both", list, []string{"1"}, nil, true},
		{"neither", "", nil, nil, true},
		{"missing file", filepath.Join(t.TempDir(), "none"), nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readLinks(tt.file, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readLinks() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("readLinks() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPromptCredentials(t *testing.T) {
	s := config.DefaultSettings()
	var out strings.Builder
	promptCredentials(strings.NewReader("user\nsecret\n"), &out, s)

	if s.Username != "user" || s.Password != "secret" {
		t.Errorf("credentials = %q/%q", s.Username, s.Password)
	}
	if !strings.Contains(out.String(), "Login:") {
		t.Errorf("prompt = %q", out.String())
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    logrus.Level
	}{
		{"info", false, logrus.InfoLevel},
		{"bogus", false, logrus.WarnLevel},
		{"warn", true, logrus.DebugLevel},
		{"trace", true, logrus.TraceLevel},
	}
	for _, tt := range tests {
		if got := newLogger(tt.level, tt.verbose).GetLevel(); got != tt.want {
			t.Errorf("newLogger(%q, %v) level = %v, want %v", tt.level, tt.verbose, got, tt.want)
		}
	}
}

func TestStatusPrint(t *testing.T) {
	events := []download.ProgressEvent{
		{ID: 998877, Message: "Beatmap already exists: 998877", Level: download.LevelInfo},
		{ID: 334455, Message: "Retrying 334455: HTTP 429", Level: download.LevelWarning},
		{ID: 334455, Message: "Downloading 334455 (attempt 2, direct)", Level: download.LevelVerbose},
	}

	tests := []struct {
		name    string
		verbose bool
		want    []string
		hidden  []string
	}{
		{"default", false, []string{"already exists: 998877", "Retrying 334455"}, []string{"Downloading"}},
		{"verbose", true, []string{"already exists: 998877", "Retrying 334455", "Downloading 334455"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := uilive.New()
			w.Out = &buf
			s := &status{verbose: tt.verbose, writer: w}

			for _, e := range events {
				s.print(e)
			}

			out := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			for _, hidden := range tt.hidden {
				if strings.Contains(out, hidden) {
					t.Errorf("output contains %q:\n%s", hidden, out)
				}
			}
		})
	}
}
