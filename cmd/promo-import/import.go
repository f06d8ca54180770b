package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-promotions/internal/domain/promotion"
	"github.com/xenking/kart-promotions/internal/wire"
)

const (
	bloomFPR      = 0.001
	maxLineBytes  = 1 << 20
	progressEvery = 10_000
)

type creator interface {
	Create(ctx context.Context, in promotion.Input) (*promotion.Promotion, error)
}

var _ creator = (*promotion.Admin)(nil)

type importConfig struct {
	Workers       int
	ExpectedCodes uint
	DryRun        bool
}

// Stats counts import outcomes.
type Stats struct {
	Created    int64
	Existing   int64
	Duplicates int64
	Invalid    int64
}

type record struct {
	file string
	line int
	in   promotion.Input
}

type importer struct {
	lg     *zap.Logger
	target creator
	cfg    importConfig
}

func newImporter(lg *zap.Logger, target creator, cfg importConfig) *importer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ExpectedCodes == 0 {
		cfg.ExpectedCodes = 1024
	}
	return &importer{lg: lg, target: target, cfg: cfg}
}

// Import runs two passes over files. The first pass feeds every code through
// a bloom filter and remembers the codes it reports as already seen. The
// second pass creates promotions, keeping only the first occurrence of each
// suspected code. Codes the filter never flagged are known to be unique and
// are not tracked.
func (im *importer) Import(ctx context.Context, files []string) (*Stats, error) {
	im.lg.Info("Pass 1: scanning codes", zap.Int("files", len(files)))
	suspects, err := im.scanCodes(ctx, files)
	if err != nil {
		return nil, errors.Wrap(err, "scan codes")
	}
	im.lg.Info("Pass 1 complete", zap.Int("suspects", len(suspects)))

	im.lg.Info("Pass 2: creating promotions", zap.Int("workers", im.cfg.Workers))
	stats, err := im.create(ctx, files, suspects)
	if err != nil {
		return nil, errors.Wrap(err, "create promotions")
	}
	return stats, nil
}

func (im *importer) scanCodes(ctx context.Context, files []string) (map[string]struct{}, error) {
	filter := bloom.NewWithEstimates(im.cfg.ExpectedCodes, bloomFPR)
	suspects := make(map[string]struct{})
	for _, path := range files {
		err := streamGzFile(ctx, path, func(_ int, line []byte) error {
			code, ok := lineCode(line)
			if !ok {
				return nil
			}
			if filter.TestOrAddString(code) {
				suspects[code] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return suspects, nil
}

func (im *importer) create(ctx context.Context, files []string, suspects map[string]struct{}) (*Stats, error) {
	var stats Stats
	records := make(chan record, im.cfg.Workers*4)
	g, ctx := errgroup.WithContext(ctx)

	// Decoding and duplicate claims happen here, in stream order, so the
	// first valid occurrence of a code is the one that reaches a worker.
	g.Go(func() error {
		defer close(records)
		taken := make(map[string]struct{}, len(suspects))
		for _, path := range files {
			err := streamGzFile(ctx, path, func(n int, line []byte) error {
				rec, ok := im.decode(path, n, line, suspects, taken, &stats)
				if !ok {
					return nil
				}
				select {
				case records <- rec:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	var processed atomic.Int64
	for range im.cfg.Workers {
		g.Go(func() error {
			for rec := range records {
				if err := im.store(ctx, rec, &stats); err != nil {
					return err
				}
				if n := processed.Add(1); n%progressEvery == 0 {
					im.lg.Info("Pass 2 progress", zap.Int64("records", n))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

// decode parses one line and claims its code. Codes outside suspects were
// seen once by the bloom pass and need no tracking.
func (im *importer) decode(
	path string,
	n int,
	line []byte,
	suspects, taken map[string]struct{},
	stats *Stats,
) (record, bool) {
	lg := im.lg.With(zap.String("file", path), zap.Int("line", n))

	in, err := wire.DecodeInput(line)
	if err != nil {
		lg.Warn("Skip undecodable record", zap.Error(err))
		atomic.AddInt64(&stats.Invalid, 1)
		return record{}, false
	}
	code := strings.TrimSpace(in.Code)
	if _, suspect := suspects[code]; suspect {
		if _, dup := taken[code]; dup {
			lg.Debug("Skip duplicate code", zap.String("code", code))
			atomic.AddInt64(&stats.Duplicates, 1)
			return record{}, false
		}
		taken[code] = struct{}{}
	}
	return record{file: path, line: n, in: in}, true
}

func (im *importer) store(ctx context.Context, rec record, stats *Stats) error {
	_, err := im.target.Create(ctx, rec.in)
	switch {
	case err == nil:
		atomic.AddInt64(&stats.Created, 1)
	case errors.Is(err, promotion.ErrCodeExists):
		atomic.AddInt64(&stats.Existing, 1)
	case errors.Is(err, promotion.ErrInvalidInput):
		im.lg.Warn("Skip invalid promotion",
			zap.String("file", rec.file),
			zap.Int("line", rec.line),
			zap.String("code", rec.in.Code),
			zap.Error(err),
		)
		atomic.AddInt64(&stats.Invalid, 1)
	default:
		return errors.Wrapf(err, "%s:%d", rec.file, rec.line)
	}
	return nil
}

// lineCode extracts the trimmed "code" member of a JSON object line.
func lineCode(line []byte) (string, bool) {
	var code string
	d := jx.DecodeBytes(line)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "code" || d.Next() != jx.String {
			return d.Skip()
		}
		v, err := d.Str()
		code = v
		return err
	}); err != nil {
		return "", false
	}
	code = strings.TrimSpace(code)
	return code, code != ""
}

// streamGzFile opens a gzip-compressed file and calls fn for each non-blank
// line with its 1-based number. The line slice is only valid during the call.
func streamGzFile(ctx context.Context, path string, fn func(n int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	n := 0
	for scanner.Scan() {
		n++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
