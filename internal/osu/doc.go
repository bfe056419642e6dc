// Package osu knows the URL shapes of the beatmap service.
//
// It turns user-supplied links into beatmap set ids and builds the URLs
// the downloader requests.
//
// # Link Resolution
//
// Links come in three shapes:
//
//	https://osu.ppy.sh/beatmapsets/123456#osu/987654   set link, id read directly
//	https://osu.ppy.sh/b/987654                         legacy beatmap link
//	123456                                              bare id
//
// Legacy links point at a single difficulty. They are rewritten to the
// "/beatmaps/" form and followed with a HEAD request; the server redirects
// to the owning set, whose id is then read from the final URL:
//
//	r := osu.NewResolver(client, logger)
//	ids := r.Resolve(ctx, links)
//
// Links that carry no id, or whose redirect fails, are logged and dropped.
// The remaining ids keep input order, duplicates included.
//
// # URLs
//
//	osu.DownloadURL(osu.DefaultBaseURL, 123456)
//	// https://osu.ppy.sh/beatmapsets/123456/download?noVideo=1
package osu
