package identity

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	qhttp "github.com/handiism/quicksong/internal/http"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultDirectoryURL is the public proxy listing used when none is configured.
const DefaultDirectoryURL = "https://www.sslproxies.org/"

// DefaultLimit is how many rows of the listing are used by default.
const DefaultLimit = 20

// Lister returns candidate proxy addresses (host:port).
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// StaticList is a Lister over a fixed set of addresses.
type StaticList []string

// List returns a copy of the addresses.
func (l StaticList) List(context.Context) ([]string, error) {
	return append([]string(nil), l...), nil
}

// Directory fetches proxy addresses from an HTML page whose table rows
// start with an address column and a port column.
type Directory struct {
	client *qhttp.Client
	url    string
	limit  int
}

// NewDirectory creates a Directory reading the first limit rows of the
// table at url. A limit outside 1..100 falls back to DefaultLimit.
func NewDirectory(client *qhttp.Client, url string, limit int) *Directory {
	if url == "" {
		url = DefaultDirectoryURL
	}
	if limit < 1 || limit > 100 {
		limit = DefaultLimit
	}
	return &Directory{client: client, url: url, limit: limit}
}

// List fetches and parses the listing. The request is sent with a random
// Chrome User-Agent.
func (d *Directory) List(ctx context.Context) ([]string, error) {
	ctx = qhttp.WithRoute(ctx, qhttp.Route{UserAgent: RandomUserAgent()})
	page, err := d.client.GetString(ctx, d.url)
	if err != nil {
		return nil, fmt.Errorf("fetch proxy directory: %w", err)
	}
	return ParseTable(strings.NewReader(page), d.limit)
}

// ParseTable extracts host:port pairs from the first two cells of each
// table body row, keeping at most limit rows in page order. Rows whose
// cells do not form a valid address are skipped; duplicates are dropped.
func ParseTable(r io.Reader, limit int) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse proxy directory: %w", err)
	}

	var rows []*html.Node
	collectRows(doc, &rows)

	seen := make(map[string]struct{})
	var addrs []string
	for _, tr := range rows {
		if limit > 0 && len(addrs) >= limit {
			break
		}
		cells := childCells(tr)
		if len(cells) < 2 {
			continue
		}
		host := strings.TrimSpace(textOf(cells[0]))
		port := strings.TrimSpace(textOf(cells[1]))
		if !validAddress(host, port) {
			continue
		}
		addr := net.JoinHostPort(host, port)
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// collectRows appends every <tr> found inside a <tbody>.
func collectRows(n *html.Node, rows *[]*html.Node) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Tbody {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Tr {
				*rows = append(*rows, c)
			}
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectRows(c, rows)
	}
}

func childCells(tr *html.Node) []*html.Node {
	var cells []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			cells = append(cells, c)
		}
	}
	return cells
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func validAddress(host, port string) bool {
	if host == "" || strings.ContainsAny(host, " \t/") {
		return false
	}
	p, err := strconv.Atoi(port)
	return err == nil && p > 0 && p < 65536
}
