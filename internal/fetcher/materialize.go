package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel downloads. The upstream servers
// throttle aggressively, so keep this low.
const DefaultConcurrency = 3

// Source is one raw input to materialize under the data lake.
type Source struct {
	Name  string
	URL   string
	Dest  string
	Unzip bool
}

// MaterializeOptions configures Materialize.
type MaterializeOptions struct {
	Sources     []Source
	Concurrency int

	// HTTP and FTP override the default fetchers, mainly for tests.
	HTTP Fetcher
	FTP  Fetcher
}

// MaterializeResult reports what was fetched.
type MaterializeResult struct {
	Downloaded int64
	Skipped    int64
	Extracted  int64
}

// Counters flattens the result for the run log.
func (r *MaterializeResult) Counters() map[string]int64 {
	return map[string]int64{
		"downloaded": r.Downloaded,
		"skipped":    r.Skipped,
		"extracted":  r.Extracted,
	}
}

// Materialize downloads every configured source whose destination does
// not exist yet, ftp:// URLs through the FTP fetcher and everything else
// over HTTP, extracting zip archives beside themselves when asked to.
// Any failed source aborts the whole run.
func Materialize(ctx context.Context, opts MaterializeOptions) (*MaterializeResult, error) {
	log := zap.L().With(zap.String("component", "fetcher.materialize"))
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	httpFetcher := opts.HTTP
	if httpFetcher == nil {
		httpFetcher = NewHTTPFetcher(HTTPOptions{})
	}
	ftpFetcher := opts.FTP
	if ftpFetcher == nil {
		ftpFetcher = NewFTPFetcher(FTPOptions{})
	}

	var downloaded, skipped, extracted atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, src := range opts.Sources {
		src := src
		g.Go(func() error {
			if src.URL == "" || src.Dest == "" {
				return eris.Errorf("fetcher: source %q needs url and dest", src.Name)
			}
			if _, err := os.Stat(src.Dest); err == nil {
				log.Info("source already present",
					zap.String("name", src.Name), zap.String("dest", src.Dest))
				skipped.Add(1)
				return nil
			}

			f := httpFetcher
			if strings.HasPrefix(strings.ToLower(src.URL), "ftp://") {
				f = ftpFetcher
			}
			n, err := f.DownloadToFile(gctx, src.URL, src.Dest)
			if err != nil {
				return eris.Wrapf(err, "fetcher: download %s", src.Name)
			}
			downloaded.Add(1)
			log.Info("source downloaded",
				zap.String("name", src.Name), zap.Int64("bytes", n))

			if src.Unzip {
				files, err := ExtractZIP(src.Dest, filepath.Dir(src.Dest))
				if err != nil {
					return eris.Wrapf(err, "fetcher: extract %s", src.Name)
				}
				extracted.Add(int64(len(files)))
				log.Info("archive extracted",
					zap.String("name", src.Name), zap.Int("files", len(files)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &MaterializeResult{
		Downloaded: downloaded.Load(),
		Skipped:    skipped.Load(),
		Extracted:  extracted.Load(),
	}
	log.Info("raw sources materialized",
		zap.Int64("downloaded", res.Downloaded),
		zap.Int64("skipped", res.Skipped),
		zap.Int64("extracted", res.Extracted))
	return res, nil
}
