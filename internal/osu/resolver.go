package osu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/handiism/quicksong/internal/model"
	"github.com/sirupsen/logrus"
)

var (
	idPattern     = regexp.MustCompile(`/([0-9]{5,7})`)
	barePattern   = regexp.MustCompile(`^[0-9]+$`)
	legacyPattern = regexp.MustCompile(`/b/`)
)

// ErrNoID is returned when a link carries no recognizable id.
var ErrNoID = errors.New("no beatmap set id in link")

// ExtractID returns the id of the first path segment made of 5 to 7
// digits. A bare decimal string is taken as an id as is.
func ExtractID(link string) (model.ResourceID, bool) {
	link = strings.TrimSpace(link)
	if barePattern.MatchString(link) {
		id, err := model.ParseResourceID(link)
		return id, err == nil
	}

	m := idPattern.FindStringSubmatch(link)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	id := model.ResourceID(n)
	return id, id.Valid()
}

// IsLegacy reports whether link is a legacy single-beatmap link and
// returns its rewritten "/beatmaps/" form.
func IsLegacy(link string) (string, bool) {
	rewritten := legacyPattern.ReplaceAllString(link, "/beatmaps/")
	return rewritten, rewritten != link
}

// Redirector follows redirects and returns the final URL.
type Redirector interface {
	ResolveURL(ctx context.Context, url string) (string, error)
}

// Resolver turns links into ids.
type Resolver struct {
	redirect Redirector
	log      logrus.FieldLogger
}

// NewResolver creates a Resolver. A nil logger uses the logrus standard
// logger.
func NewResolver(redirect Redirector, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{redirect: redirect, log: log}
}

// ResolveOne resolves a single link. Failures are model.KindResolution
// errors.
func (r *Resolver) ResolveOne(ctx context.Context, link string) (model.ResourceID, error) {
	target := link
	if rewritten, ok := IsLegacy(link); ok {
		final, err := r.redirect.ResolveURL(ctx, rewritten)
		if err != nil {
			return 0, model.NewError(model.KindResolution, 0, fmt.Errorf("follow %s: %w", rewritten, err))
		}
		target = final
	}

	id, ok := ExtractID(target)
	if !ok {
		return 0, model.NewError(model.KindResolution, 0, fmt.Errorf("%w: %s", ErrNoID, target))
	}
	return id, nil
}

// Resolve resolves links one after another. Links that fail are logged
// and dropped; the others keep their order. Resolution stops early when
// ctx is done.
func (r *Resolver) Resolve(ctx context.Context, links []string) []model.ResourceID {
	ids := make([]model.ResourceID, 0, len(links))
	for _, link := range links {
		if ctx.Err() != nil {
			break
		}
		id, err := r.ResolveOne(ctx, link)
		if err != nil {
			r.log.WithField("link", link).WithError(err).Warn("skipping link")
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// ReadLinks reads one link per line, skipping blank lines.
func ReadLinks(rd io.Reader) ([]string, error) {
	var links []string
	sc := bufio.NewScanner(rd)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			links = append(links, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read links: %w", err)
	}
	return links, nil
}
