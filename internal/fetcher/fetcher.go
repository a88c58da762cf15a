// Package fetcher acquires and parses the raw inputs of the feasibility
// study: SNV bulletins and shapefile archives from DNIT over HTTP, IBGE
// municipal tables and meshes over HTTP/FTP, plus the CSV and XLSX readers
// that turn them into tables.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote data into the local data lake.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path.
	// Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// ConditionalFetcher extends Fetcher with ETag-based freshness checks, so
// repeated runs skip sources that have not been republished.
type ConditionalFetcher interface {
	Fetcher

	// HeadETag performs a HEAD request and returns the ETag header value.
	HeadETag(ctx context.Context, url string) (string, error)

	// DownloadIfChanged fetches the URL only if the ETag differs from the
	// given one. Returns (body, newETag, changed, error); when unchanged,
	// body is nil and changed is false.
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}
