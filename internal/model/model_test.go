package model

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestResourceID(t *testing.T) {
	id := ResourceID(123456)
	if !id.Valid() {
		t.Error("123456 should be valid")
	}
	if got := id.TempName(); got != "beatmap_123456.osz" {
		t.Errorf("TempName() = %q, want %q", got, "beatmap_123456.osz")
	}
	if ResourceID(0).Valid() || ResourceID(-4).Valid() {
		t.Error("non-positive ids should be invalid")
	}
}

func TestParseResourceID(t *testing.T) {
	tests := []struct {
		input   string
		want    ResourceID
		wantErr bool
	}{
		{"123456", 123456, false},
		{"0", 0, true},
		{"-12", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseResourceID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseResourceID(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestTask_Lifecycle(t *testing.T) {
	task := NewTask(334455)

	if err := task.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := task.Start(); err == nil {
		t.Error("second Start while in flight should fail")
	}
	if err := task.Finish(StateFailedRetryable, errors.New("429")); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := task.Requeue(); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if err := task.Start(); err != nil {
		t.Fatalf("Start after requeue: %v", err)
	}
	if err := task.Finish(StateSucceeded, nil); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if task.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", task.Attempts)
	}
	if task.State != StateSucceeded {
		t.Errorf("State = %s, want %s", task.State, StateSucceeded)
	}
	if err := task.Requeue(); err == nil {
		t.Error("Requeue of a succeeded task should fail")
	}
}

func TestTask_FinishRejectsNonTerminalState(t *testing.T) {
	task := NewTask(1)
	_ = task.Start()
	if err := task.Finish(StatePending, nil); err == nil {
		t.Error("Finish(StatePending) should fail")
	}
}

func TestKindOf(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"plain", base, KindFetchUnknown},
		{"tagged", NewError(KindPath, 0, base), KindPath},
		{"wrapped", fmt.Errorf("scan: %w", NewError(KindRename, 5, base)), KindRename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}

	err := NewError(KindFetchFatal, 223344, base)
	if !errors.Is(err, base) {
		t.Error("Error should unwrap to its cause")
	}
	if got := err.Error(); got != "fatal error for 223344: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{Cooldown: time.Second, Exponent: 2, MaxDelay: 5 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 0},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 5 * time.Second},
		{40, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.attempt), func(t *testing.T) {
			if got := p.Delay(tt.attempt); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}

	if (RetryPolicy{}).Delay(10) != 0 {
		t.Error("zero policy should never wait")
	}
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	unlimited := RetryPolicy{}
	if unlimited.Exhausted(1000) {
		t.Error("MaxRetries 0 should never be exhausted")
	}

	limited := RetryPolicy{MaxRetries: 2}
	if limited.Exhausted(2) {
		t.Error("2 attempts should still allow a retry")
	}
	if !limited.Exhausted(3) {
		t.Error("3 attempts should exhaust MaxRetries 2")
	}
}
