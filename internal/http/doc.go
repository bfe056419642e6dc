// Package http provides the HTTP client used to talk to the beatmap
// service and to proxy servers.
//
// The Client in this package handles:
//   - Session headers (the login cookie) on every request
//   - Per-request proxy and User-Agent selection
//   - Streaming archive downloads with the Content-Disposition file name
//   - Redirect resolution via HEAD requests
//   - Timeout handling
//
// # Basic Usage
//
//	client := http.NewClient(http.WithHeader("Cookie", cookie))
//
//	dl, err := client.DownloadFile(ctx, archiveURL, tempPath, nil)
//	var se *http.StatusError
//	if errors.As(err, &se) && se.Code == 429 {
//	    // rate limited
//	}
//
// # Routes
//
// A Route attached to the request context selects the proxy and
// User-Agent for that one request. HTTP proxies go through the standard
// transport; SOCKS5 proxies are dialed with golang.org/x/net/proxy:
//
//	ctx = http.WithRoute(ctx, http.Route{Scheme: "socks5", Address: "127.0.0.1:1080"})
package http
