package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	qhttp "github.com/handiism/quicksong/internal/http"
	"github.com/handiism/quicksong/internal/identity"
	"github.com/handiism/quicksong/internal/index"
	ioutils "github.com/handiism/quicksong/internal/io"
	"github.com/handiism/quicksong/internal/model"
	"github.com/handiism/quicksong/internal/osu"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxInFlight is the number of concurrent fetches.
	DefaultMaxInFlight = 5

	// DefaultDrainBelow is the in-flight count under which queued retries
	// are resubmitted.
	DefaultDrainBelow = 2

	// DefaultRotateEvery is the number of consecutive tasks that share
	// one identity.
	DefaultRotateEvery = 4
)

// Options configures an Orchestrator.
type Options struct {
	// IDs are the sets to download. Duplicates are fetched once.
	IDs []model.ResourceID

	// Existing holds the ids already on disk; they are never fetched.
	Existing index.Set

	// DownloadPath is the destination directory. It must exist.
	DownloadPath string

	// BaseURL is the service root. Defaults to osu.DefaultBaseURL.
	BaseURL string

	// ErrorPagePath marks refused downloads. Defaults to
	// osu.DefaultErrorPagePath.
	ErrorPagePath string

	// Header is sent with every archive request (the session cookie).
	// It is only used when Client is nil.
	Header http.Header

	Client *qhttp.Client

	// MaxInFlight bounds concurrent fetches. Defaults to DefaultMaxInFlight.
	MaxInFlight int

	// DrainBelow defaults to DefaultDrainBelow.
	DrainBelow int

	// RotateEvery defaults to DefaultRotateEvery.
	RotateEvery int

	// Identities enables proxying when set and holding at least two
	// entries.
	Identities identity.Source

	Retry model.RetryPolicy

	// RequestsPerSecond paces archive requests. Zero disables pacing.
	RequestsPerSecond float64

	// AutoOpen opens every downloaded archive with Open.
	AutoOpen bool

	// Open defaults to ioutils.Open.
	Open func(path string) error

	OnProgress func(ProgressEvent)

	// OnBytes reports the bytes received for an archive. It is called from
	// the fetch goroutines.
	OnBytes func(id model.ResourceID, written, total int64)

	// OnResult is called once per id when it reaches its outcome. RunAll
	// calls it from several goroutines.
	OnResult func(Result)

	Logger logrus.FieldLogger

	// RunID tags log lines. A random one is generated when empty.
	RunID string
}

// Stats is a point-in-time view of a running Orchestrator.
type Stats struct {
	Total    int
	InFlight int
	Queued   int
	Done     int
}

// Orchestrator downloads a batch of beatmap sets.
//
// A single goroutine (the one calling Run) owns every task, the retry
// queue and the proxying switch. Fetches run in their own goroutines and
// report back over a channel.
type Orchestrator struct {
	ids         []model.ResourceID
	existing    index.Set
	dir         string
	baseURL     string
	errorPage   string
	client      *qhttp.Client
	maxInFlight int
	drainBelow  int
	source      identity.Source
	rotation    *identity.Rotation[identity.Identity]
	agents      *identity.Rotation[string]
	retry       model.RetryPolicy
	limiter     *rate.Limiter
	autoOpen    bool
	open        func(string) error
	onProgress  func(ProgressEvent)
	onBytes     func(model.ResourceID, int64, int64)
	onResult    func(Result)
	log         logrus.FieldLogger
	runID       string

	slots    *semaphore.Weighted
	retries  *RetryQueue
	proxying bool

	started  atomic.Bool
	total    atomic.Int32
	inFlight atomic.Int32
	done     atomic.Int32
}

// completion is what a fetch goroutine reports to the owner.
type completion struct {
	id    model.ResourceID
	ident identity.Identity
	kind  model.ErrorKind
	path  string
	err   error
}

// New validates opts and creates an Orchestrator. A missing or
// non-directory DownloadPath is a model.KindPath error.
func New(opts Options) (*Orchestrator, error) {
	dir, err := ioutils.CheckDir(opts.DownloadPath)
	if err != nil {
		return nil, model.NewError(model.KindPath, 0, fmt.Errorf("download path: %w", err))
	}

	o := &Orchestrator{
		ids:         opts.IDs,
		existing:    opts.Existing,
		dir:         dir,
		baseURL:     opts.BaseURL,
		errorPage:   opts.ErrorPagePath,
		client:      opts.Client,
		maxInFlight: opts.MaxInFlight,
		drainBelow:  opts.DrainBelow,
		source:      opts.Identities,
		retry:       opts.Retry,
		autoOpen:    opts.AutoOpen,
		open:        opts.Open,
		onProgress:  opts.OnProgress,
		onBytes:     opts.OnBytes,
		onResult:    opts.OnResult,
		runID:       opts.RunID,
		retries:     NewRetryQueue(),
	}
	if o.baseURL == "" {
		o.baseURL = osu.DefaultBaseURL
	}
	if o.errorPage == "" {
		o.errorPage = osu.DefaultErrorPagePath
	}
	if o.client == nil {
		o.client = qhttp.NewClient(qhttp.WithHeaders(opts.Header))
	}
	if o.maxInFlight <= 0 {
		o.maxInFlight = DefaultMaxInFlight
	}
	if o.drainBelow <= 0 {
		o.drainBelow = DefaultDrainBelow
	}
	if o.open == nil {
		o.open = ioutils.Open
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	o.log = log.WithField("run", o.runID)

	rotateEvery := opts.RotateEvery
	if rotateEvery <= 0 {
		rotateEvery = DefaultRotateEvery
	}
	o.agents = identity.UserAgentAfter(rotateEvery, 1)
	if o.source != nil {
		o.rotation = o.source.After(rotateEvery, 1)
		o.proxying = o.source.Len() >= 2
	}
	if opts.RequestsPerSecond > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), o.maxInFlight)
	}
	o.slots = semaphore.NewWeighted(int64(o.maxInFlight))
	return o, nil
}

// RunID returns the id tagging this run's log lines.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Stats returns the current counters. It is safe to call from any
// goroutine while Run is in progress.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Total:    int(o.total.Load()),
		InFlight: int(o.inFlight.Load()),
		Queued:   o.retries.Len(),
		Done:     int(o.done.Load()),
	}
}

// Run downloads every id and returns one Result per distinct id.
//
// Ids present in the existing set are reported as skipped without any
// request. When ctx is cancelled no new fetch starts, in-flight fetches
// are awaited, and every unfinished id is reported as abandoned; Run then
// returns the report together with ctx's error. Run may only be called
// once.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if !o.started.CompareAndSwap(false, true) {
		return nil, errors.New("orchestrator already run")
	}

	report := &Report{RunID: o.runID}
	tasks := make(map[model.ResourceID]*model.Task)
	var pending []*model.Task

	for _, id := range o.ids {
		if _, dup := tasks[id]; dup || !id.Valid() {
			continue
		}
		t := model.NewTask(id)
		tasks[id] = t
		o.total.Add(1)
		if o.existing.Contains(id) {
			o.record(report, Result{ID: id, Outcome: model.OutcomeSkipped})
			o.progress(ProgressEvent{ID: id, Message: fmt.Sprintf("Beatmap already exists: %d", id), Level: LevelInfo})
			continue
		}
		pending = append(pending, t)
	}

	o.log.WithFields(logrus.Fields{
		"total":    len(tasks),
		"pending":  len(pending),
		"proxying": o.proxying,
	}).Info("download run started")

	results := make(chan completion, o.maxInFlight)
	inFlight := 0

	for {
		// Ids are taken from the end of the list.
		for len(pending) > 0 && ctx.Err() == nil && o.slots.TryAcquire(1) {
			t := pending[len(pending)-1]
			pending = pending[:len(pending)-1]
			if o.launch(ctx, t, results) {
				inFlight++
			}
		}

		if ctx.Err() == nil && inFlight < o.drainBelow && o.retries.Len() > 0 {
			for _, id := range o.retries.Drain() {
				t := tasks[id]
				if err := t.Requeue(); err != nil {
					o.log.WithError(err).Error("requeue failed")
					continue
				}
				pending = append(pending, t)
			}
			continue
		}

		if inFlight == 0 {
			if ctx.Err() != nil || (len(pending) == 0 && o.retries.Len() == 0) {
				break
			}
			continue
		}

		c := <-results
		inFlight--
		o.inFlight.Add(-1)
		o.complete(ctx, tasks[c.id], c, report)
	}

	if err := ctx.Err(); err != nil {
		for _, t := range pending {
			o.abandon(report, t, err)
		}
		for _, id := range o.retries.Drain() {
			o.abandon(report, tasks[id], err)
		}
		o.log.WithField("abandoned", report.Count(model.OutcomeAbandoned)).Warn("download run cancelled")
		return report, err
	}

	o.log.WithFields(logrus.Fields{
		"succeeded": report.Count(model.OutcomeSucceeded),
		"skipped":   report.Count(model.OutcomeSkipped),
		"failed":    report.Count(model.OutcomeFailedFatal),
		"dropped":   report.Count(model.OutcomeDropped),
		"abandoned": report.Count(model.OutcomeAbandoned),
	}).Info("download run finished")
	return report, nil
}

// launch starts a fetch for t. The caller holds a slot; the fetch
// goroutine releases it before reporting.
func (o *Orchestrator) launch(ctx context.Context, t *model.Task, results chan<- completion) bool {
	if err := t.Start(); err != nil {
		o.log.WithError(err).Error("start failed")
		o.slots.Release(1)
		return false
	}
	o.inFlight.Add(1)

	id, attempt := t.ID, t.Attempts
	ident := o.nextIdentity()
	o.progress(ProgressEvent{ID: id, Message: fmt.Sprintf("Downloading %d (attempt %d, %s)", id, attempt, ident.Route()), Level: LevelVerbose})

	go func() {
		c := o.fetch(ctx, id, attempt, ident)
		o.slots.Release(1)
		results <- c
	}()
	return true
}

// nextIdentity returns the identity for the next task. Without proxying
// it is a direct identity that only carries a rotating User-Agent.
func (o *Orchestrator) nextIdentity() identity.Identity {
	if o.proxying {
		group, err := o.rotation.Next()
		if err == nil && len(group) > 0 {
			return group[0]
		}
		o.disableProxying(err)
	}
	var direct identity.Identity
	if agents, err := o.agents.Next(); err == nil && len(agents) > 0 {
		direct.UserAgent = agents[0]
	}
	return direct
}

func (o *Orchestrator) disableProxying(cause error) {
	if !o.proxying {
		return
	}
	o.proxying = false
	o.client.CloseIdleConnections()
	o.log.WithError(model.NewError(model.KindPoolExhausted, 0, cause)).Warn("proxying disabled")
	o.progress(ProgressEvent{Message: "Not enough working proxies left, continuing without proxy", Level: LevelWarning})
}

func (o *Orchestrator) fetch(ctx context.Context, id model.ResourceID, attempt int, ident identity.Identity) completion {
	c := completion{id: id, ident: ident}

	if d := o.retry.Delay(attempt); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			c.kind, c.err = model.KindFetchRetryable, ctx.Err()
			return c
		case <-t.C:
		}
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			c.kind, c.err = model.KindFetchRetryable, err
			return c
		}
	}

	reqCtx := qhttp.WithRoute(ctx, ident.Route())
	temp := filepath.Join(o.dir, id.TempName())

	entry := o.log.WithFields(logrus.Fields{"id": id, "attempt": attempt, "proxy": ident.Route().String()})
	entry.Debug("fetching")

	var onBytes func(written, total int64)
	if o.onBytes != nil {
		onBytes = func(written, total int64) { o.onBytes(id, written, total) }
	}
	dl, err := o.client.DownloadFile(reqCtx, osu.DownloadURL(o.baseURL, id), temp, onBytes)
	c.kind = Classify(dl, err, o.errorPage)
	c.path = temp

	switch c.kind {
	case model.KindNone:
		path, err := o.finalize(temp, dl)
		if err != nil {
			c.kind = model.KindRename
			c.err = model.NewError(model.KindRename, id, err)
			return c
		}
		c.path = path
		if o.autoOpen {
			if err := o.open(path); err != nil {
				entry.WithError(err).Warn("auto-open failed")
			}
		}
	case model.KindFetchFatal:
		if dl != nil && dl.Path != "" {
			if rmErr := ioutils.RemoveIfExists(dl.Path); rmErr != nil {
				entry.WithError(rmErr).Warn("removing error page failed")
			}
		}
		if err == nil {
			err = fmt.Errorf("redirected to error page %s", dl.FinalURL)
		}
		c.err = model.NewError(c.kind, id, err)
	default:
		c.err = model.NewError(c.kind, id, err)
	}
	return c
}

// finalize renames the temp file to the server-provided name.
func (o *Orchestrator) finalize(temp string, dl *qhttp.Download) (string, error) {
	name := ioutils.SanitizeFileName(dl.Filename)
	if name == "" {
		return "", errors.New("response carries no file name")
	}
	dest, err := ioutils.SafeJoin(o.dir, name)
	if err != nil {
		return "", err
	}
	if err := ioutils.MoveFile(temp, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// complete applies a fetch result. It runs on the owner goroutine only.
func (o *Orchestrator) complete(ctx context.Context, t *model.Task, c completion, report *Report) {
	entry := o.log.WithFields(logrus.Fields{"id": c.id, "attempt": t.Attempts})

	switch c.kind {
	case model.KindNone, model.KindRename:
		_ = t.Finish(model.StateSucceeded, c.err)
		o.record(report, Result{ID: c.id, Outcome: model.OutcomeSucceeded, Path: c.path, Attempts: t.Attempts, Err: c.err})
		if c.err != nil {
			entry.WithError(c.err).Warn("rename failed, keeping temp file")
			o.progress(ProgressEvent{ID: c.id, Message: fmt.Sprintf("Failed to rename beatmap %d, kept %s", c.id, filepath.Base(c.path)), Level: LevelWarning})
		}
		o.progress(ProgressEvent{ID: c.id, Message: fmt.Sprintf("Successfully downloaded: %s", filepath.Base(c.path)), Level: LevelSuccess})

	case model.KindFetchFatal:
		_ = t.Finish(model.StateFailedFatal, c.err)
		o.record(report, Result{ID: c.id, Outcome: model.OutcomeFailedFatal, Attempts: t.Attempts, Err: c.err})
		entry.WithError(c.err).Info("download refused")
		o.progress(ProgressEvent{ID: c.id, Message: fmt.Sprintf("Failed to download %d: %v", c.id, errors.Unwrap(c.err)), Level: LevelError})

	case model.KindFetchRetryable:
		_ = t.Finish(model.StateFailedRetryable, c.err)
		if ctx.Err() != nil {
			o.abandon(report, t, c.err)
			return
		}
		if !c.ident.Direct() {
			o.source.Invalidate(c.ident)
			o.rotation.Reset()
			if o.proxying && o.source.Len() < 2 {
				o.disableProxying(identity.ErrPoolExhausted)
			}
		}
		if o.retry.Exhausted(t.Attempts) {
			o.abandon(report, t, c.err)
			return
		}
		o.retries.Add(c.id)
		entry.WithError(c.err).WithField("proxy", c.ident.Route().String()).Debug("queued for retry")
		o.progress(ProgressEvent{ID: c.id, Message: fmt.Sprintf("Retrying %d: %v", c.id, errors.Unwrap(c.err)), Level: LevelWarning})

	default:
		_ = t.Finish(model.StateFailedFatal, c.err)
		if ctx.Err() != nil {
			o.record(report, Result{ID: c.id, Outcome: model.OutcomeAbandoned, Attempts: t.Attempts, Err: c.err})
			return
		}
		o.record(report, Result{ID: c.id, Outcome: model.OutcomeDropped, Attempts: t.Attempts, Err: c.err})
		entry.WithError(c.err).Error("unexpected download failure")
		o.progress(ProgressEvent{ID: c.id, Message: fmt.Sprintf("Dropped %d: %v", c.id, errors.Unwrap(c.err)), Level: LevelError})
	}
}

func (o *Orchestrator) abandon(report *Report, t *model.Task, cause error) {
	o.record(report, Result{ID: t.ID, Outcome: model.OutcomeAbandoned, Attempts: t.Attempts, Err: cause})
	o.progress(ProgressEvent{ID: t.ID, Message: fmt.Sprintf("Gave up on %d", t.ID), Level: LevelWarning})
}

func (o *Orchestrator) record(report *Report, r Result) {
	report.Results = append(report.Results, r)
	o.done.Add(1)
	if o.onResult != nil {
		o.onResult(r)
	}
}

func (o *Orchestrator) progress(event ProgressEvent) {
	if o.onProgress != nil {
		o.onProgress(event)
	}
}
