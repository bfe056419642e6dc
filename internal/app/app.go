// Package app wires configuration, session, proxies and the downloader
// into a single run. Both front ends (CLI and TUI) go through a Runner.
package app

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/handiism/quicksong/internal/config"
	"github.com/handiism/quicksong/internal/download"
	qhttp "github.com/handiism/quicksong/internal/http"
	"github.com/handiism/quicksong/internal/identity"
	"github.com/handiism/quicksong/internal/index"
	"github.com/handiism/quicksong/internal/model"
	"github.com/handiism/quicksong/internal/osu"
	"github.com/handiism/quicksong/internal/session"
	"github.com/sirupsen/logrus"
)

// Hooks receive the progress of a run.
type Hooks struct {
	// OnPlan is called once the ids are known, before any download.
	OnPlan func(total int)

	OnProgress func(download.ProgressEvent)

	// OnBytes and OnResult may be called from several goroutines.
	OnBytes  func(id model.ResourceID, written, total int64)
	OnResult func(download.Result)
}

// Runner performs download runs for one set of settings.
type Runner struct {
	settings *config.Settings
	log      logrus.FieldLogger
	client   *qhttp.Client
	runID    string
}

// New creates a Runner. Settings are expected to be validated.
func New(settings *config.Settings, log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	runID := uuid.NewString()
	return &Runner{
		settings: settings,
		log:      log.WithField("run", runID),
		client:   qhttp.NewClient(),
		runID:    runID,
	}
}

// RunID returns the id tagging this runner's log lines.
func (r *Runner) RunID() string {
	return r.runID
}

// ResolveLinks turns links into ids, dropping those without one.
func (r *Runner) ResolveLinks(ctx context.Context, links []string) []model.ResourceID {
	return osu.NewResolver(r.client, r.log).Resolve(ctx, links)
}

// ScanExisting indexes the download and songs directories.
func (r *Runner) ScanExisting() (index.Set, error) {
	return index.Scan(r.settings.DownloadPath, r.settings.SongsPath)
}

// DumpExisting writes the set URL of every id found on disk.
func (r *Runner) DumpExisting(w io.Writer) (int, error) {
	set, err := r.ScanExisting()
	if err != nil {
		return 0, err
	}
	return set.Len(), index.Dump(w, r.settings.BaseURL, set)
}

// SessionCookie returns the Cookie header for archive requests, or "" when
// no session could be obtained. Downloads still start without one; the
// service then refuses them one by one.
func (r *Runner) SessionCookie(ctx context.Context) string {
	p := &session.Provider{
		Store:    session.NewStore(r.settings.CookiesFile),
		Client:   r.client,
		BaseURL:  r.settings.BaseURL,
		Username: r.settings.Username,
		Password: r.settings.Password,
		Logger:   r.log,
	}
	c, err := p.Get(ctx)
	if err != nil {
		r.log.WithError(err).Warn("continuing without a session cookie")
		return ""
	}
	return c.Header()
}

// IdentityPool builds and fills the proxy pool, or returns nil when
// proxying is off or no proxy could be listed.
func (r *Runner) IdentityPool(ctx context.Context) *identity.Pool {
	s := r.settings
	if !s.UseProxy {
		return nil
	}

	pool := identity.NewPool(identity.Config{
		Lister:       identity.NewDirectory(r.client, s.ProxyURL, s.ProxyLimit),
		Prober:       identity.NewHTTPProber(r.client, s.ProbeURL, 0),
		Scheme:       strings.ToLower(s.ProxyScheme),
		RefreshAfter: s.ProxyRefreshAfter,
		Logger:       r.log,
	})
	if err := pool.Refresh(ctx); err != nil {
		r.log.WithError(err).Warn("proxy directory unavailable, downloading directly")
		return nil
	}
	return pool
}

// Options builds the downloader options for ids.
func (r *Runner) Options(ids []model.ResourceID, existing index.Set, cookie string, hooks Hooks) download.Options {
	s := r.settings
	header := make(http.Header)
	if cookie != "" {
		header.Set("Cookie", cookie)
	}
	return download.Options{
		IDs:               ids,
		Existing:          existing,
		DownloadPath:      s.DownloadPath,
		BaseURL:           s.BaseURL,
		ErrorPagePath:     s.ErrorPagePath,
		Header:            header,
		MaxInFlight:       s.MaxInFlight,
		DrainBelow:        s.DrainBelow,
		RotateEvery:       s.RotateEvery,
		Retry:             s.RetryPolicy(),
		RequestsPerSecond: s.RequestsPerSecond,
		AutoOpen:          s.AutoStart,
		OnProgress:        hooks.OnProgress,
		OnBytes:           hooks.OnBytes,
		OnResult:          hooks.OnResult,
		Logger:            r.log,
		RunID:             r.runID,
	}
}

// Run resolves links and downloads every set not already on disk.
func (r *Runner) Run(ctx context.Context, links []string, hooks Hooks) (*download.Report, error) {
	existing, err := r.ScanExisting()
	if err != nil {
		return nil, err
	}
	r.log.WithField("existing", existing.Len()).Info("indexed local beatmaps")

	ids := r.ResolveLinks(ctx, links)
	if hooks.OnPlan != nil {
		hooks.OnPlan(countDistinct(ids))
	}
	if len(ids) == 0 {
		return &download.Report{RunID: r.runID}, nil
	}

	opts := r.Options(ids, existing, r.SessionCookie(ctx), hooks)
	if pool := r.IdentityPool(ctx); pool != nil {
		opts.Identities = pool
	}
	return download.RunAll(ctx, opts, r.settings.Workers)
}

func countDistinct(ids []model.ResourceID) int {
	seen := make(map[model.ResourceID]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
