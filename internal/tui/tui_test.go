package tui

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/handiism/quicksong/internal/config"
	"github.com/handiism/quicksong/internal/download"
	"github.com/handiism/quicksong/internal/model"
	"github.com/sirupsen/logrus"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	settings := config.DefaultSettings()
	settings.DownloadPath = t.TempDir()
	return NewModel(settings, log)
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSplitLinks(t *testing.T) {
	got := SplitLinks(" https://osu.ppy.sh/beatmapsets/123456,654321\n\thttps://osu.ppy.sh/b/777777 ")
	want := []string{"https://osu.ppy.sh/beatmapsets/123456", "654321", "https://osu.ppy.sh/b/777777"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitLinks() = %q, want %q", got, want)
	}
	if got := SplitLinks("  , "); len(got) != 0 {
		t.Errorf("SplitLinks(blank) = %q, want empty", got)
	}
}

func TestUpdate_EmptyInputStays(t *testing.T) {
	m := update(t, newTestModel(t), tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != StateInput {
		t.Errorf("state = %d, want StateInput", m.state)
	}
}

func TestUpdate_Toggles(t *testing.T) {
	m := newTestModel(t)
	proxy, open := m.useProxy, m.autoOpen

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})

	if m.useProxy == proxy || m.autoOpen == open || !m.verbose {
		t.Errorf("toggles not applied: proxy=%v open=%v verbose=%v", m.useProxy, m.autoOpen, m.verbose)
	}
	if !strings.Contains(m.View(), "[×] Verbose output") {
		t.Error("View() does not show the verbose toggle as set")
	}
}

func TestUpdate_Progress(t *testing.T) {
	m := newTestModel(t)
	m.state = StateResolving

	m = update(t, m, PlanMsg{Total: 4})
	if m.state != StateDownloading || m.total != 4 {
		t.Fatalf("after plan: state=%d total=%d", m.state, m.total)
	}

	m = update(t, m, ResultMsg{Result: download.Result{ID: 1, Outcome: model.OutcomeSucceeded}})
	m = update(t, m, ResultMsg{Result: download.Result{ID: 2, Outcome: model.OutcomeSkipped}})
	if m.done != 2 || m.percent() != 0.5 {
		t.Errorf("done=%d percent=%v, want 2 and 0.5", m.done, m.percent())
	}
	if !strings.Contains(m.View(), "Beatmap sets: 2/4") {
		t.Error("View() does not show the set counter")
	}
}

func TestUpdate_Transfer(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, PlanMsg{Total: 2})

	m = update(t, m, BytesMsg{ID: 123456, Written: 512 << 10, Total: 1 << 20})
	if view := m.View(); !strings.Contains(view, "Receiving 123456: 0.5 / 1.0 MB") {
		t.Errorf("View() missing transfer line:\n%s", view)
	}

	m = update(t, m, ResultMsg{Result: download.Result{ID: 123456, Outcome: model.OutcomeSucceeded}})
	if m.transfer.ID != 0 || strings.Contains(m.View(), "Receiving") {
		t.Errorf("transfer not cleared after result: %+v", m.transfer)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		written, total int64
		want           string
	}{
		{3 << 20, 6 << 20, "3.0 / 6.0 MB"},
		{1 << 19, -1, "0.5 MB"},
		{0, 0, "0.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.written, tt.total); got != tt.want {
			t.Errorf("formatBytes(%d, %d) = %q, want %q", tt.written, tt.total, got, tt.want)
		}
	}
}

func TestUpdate_LogsFilterVerbose(t *testing.T) {
	m := newTestModel(t)
	m.state = StateDownloading

	m = update(t, m, ProgressMsg{Event: download.ProgressEvent{ID: 1, Message: "Downloading 1 (attempt 1, direct)", Level: download.LevelVerbose}})
	if len(m.logs) != 0 {
		t.Fatalf("verbose event logged without verbose mode: %v", m.logs)
	}

	for i := 0; i < maxLogs+3; i++ {
		m = update(t, m, ProgressMsg{Event: download.ProgressEvent{ID: 1, Message: "Failed", Level: download.LevelError}})
	}
	if len(m.logs) != maxLogs {
		t.Errorf("len(logs) = %d, want %d", len(m.logs), maxLogs)
	}
}

func TestUpdate_DoneAndReset(t *testing.T) {
	m := newTestModel(t)
	m.state = StateDownloading

	report := &download.Report{Results: []download.Result{
		{ID: 1, Outcome: model.OutcomeSucceeded},
		{ID: 2, Outcome: model.OutcomeDropped},
	}}
	m = update(t, m, DownloadDoneMsg{Report: report})
	if m.state != StateComplete {
		t.Fatalf("state = %d, want StateComplete", m.state)
	}
	view := m.View()
	if !strings.Contains(view, "Downloaded: 1") || !strings.Contains(view, "Failed: 1") {
		t.Errorf("completion view missing counts:\n%s", view)
	}

	m = update(t, m, runes("r"))
	if m.state != StateInput || m.report != nil || m.done != 0 {
		t.Errorf("reset left state=%d report=%v done=%d", m.state, m.report, m.done)
	}
}

func TestUpdate_Error(t *testing.T) {
	m := newTestModel(t)
	m.state = StateResolving

	m = update(t, m, DownloadDoneMsg{Err: errors.New("download path is not a directory")})
	if m.state != StateError || m.err == nil {
		t.Fatalf("state=%d err=%v, want StateError", m.state, m.err)
	}
	if !strings.Contains(m.View(), "download path is not a directory") {
		t.Error("error view does not show the error")
	}
}

func TestUpdate_CancelMarksError(t *testing.T) {
	m := newTestModel(t)
	m.state = StateDownloading

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.ctx.Err() == nil {
		t.Fatal("esc did not cancel the run context")
	}

	m = update(t, m, DownloadDoneMsg{Report: &download.Report{}})
	if m.state != StateError || !errors.Is(m.err, errCancelled) {
		t.Errorf("state=%d err=%v, want cancelled error", m.state, m.err)
	}
}
