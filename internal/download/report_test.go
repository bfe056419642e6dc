package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/handiism/quicksong/internal/model"
	"github.com/handiism/quicksong/internal/osu"
)

func TestPartition(t *testing.T) {
	parts := Partition([]model.ResourceID{1, 2, 3, 4, 5}, 2)
	if len(parts) != 2 {
		t.Fatalf("len = %d, want 2", len(parts))
	}
	if len(parts[0]) != 3 || len(parts[1]) != 2 {
		t.Errorf("parts = %v", parts)
	}
	if parts[0][1] != 3 || parts[1][0] != 2 {
		t.Errorf("parts not round-robin: %v", parts)
	}
	if got := Partition(nil, 0); len(got) != 1 {
		t.Errorf("Partition(nil, 0) = %v", got)
	}
}

func TestReport(t *testing.T) {
	r := &Report{Results: []Result{
		{ID: 1, Outcome: model.OutcomeSucceeded},
		{ID: 2, Outcome: model.OutcomeSkipped},
	}}
	r.Merge(&Report{Results: []Result{{ID: 3, Outcome: model.OutcomeSucceeded}}})
	r.Merge(nil)

	if got := r.Count(model.OutcomeSucceeded); got != 2 {
		t.Errorf("Count(succeeded) = %d, want 2", got)
	}
	want := "2 downloaded, 1 already existed, 0 failed, 0 dropped, 0 abandoned"
	if got := r.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestRunAll(t *testing.T) {
	var (
		mu   sync.Mutex
		hits = make(map[model.ResourceID]int)
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := osu.ExtractID(r.URL.Path)
		mu.Lock()
		hits[id]++
		mu.Unlock()
		serveArchive(w, r)
	}))
	defer srv.Close()

	var ids []model.ResourceID
	for i := range 9 {
		ids = append(ids, model.ResourceID(500000+i))
	}
	ids = append(ids, 500000, 500001)

	report, err := RunAll(context.Background(), testOptions(t, srv.URL, ids...), 3)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	if got := report.Count(model.OutcomeSucceeded); got != 9 {
		t.Errorf("succeeded = %d, want 9", got)
	}
	for id, n := range hits {
		if n != 1 {
			t.Errorf("id %d fetched %d times", id, n)
		}
	}
	if report.RunID == "" {
		t.Error("empty RunID")
	}
}
