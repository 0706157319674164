// Package indexer crawls a directory of documents and stores their text in the
// search backend, one document per file.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/hyperjump/hondana/internal/extract"
	"github.com/hyperjump/hondana/internal/fileid"
	"github.com/hyperjump/hondana/internal/watcher"
)

// DateLayout is the layout of the modified-after filter.
const DateLayout = "2006-01-02"

// Document is the stored form of an indexed file.
type Document struct {
	DocID         string    `json:"doc_id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Content       []string  `json:"content"`
	Lang          string    `json:"lang"`
	IndexModified time.Time `json:"index_modified"`
	FileModified  time.Time `json:"file_modified"`
	Kwds          string    `json:"kwds"`
}

// Outcome is the result of indexing one file.
type Outcome int

const (
	Indexed Outcome = iota
	Skipped
	Failed
)

// Stats counts outcomes of a run.
type Stats struct {
	Indexed int64
	Skipped int64
	Failed  int64
}

// Options controls which files are indexed and how fast.
type Options struct {
	Extensions    []string
	Recursive     bool
	Parallel      int
	StartInterval time.Duration
	// ModifiedAfter excludes files whose modification time is not after it. Zero disables the filter.
	ModifiedAfter time.Time
}

// ParseModifiedAfter parses a YYYY-MM-DD date in local time. An empty string yields the zero time.
func ParseModifiedAfter(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("modified-after must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}

// Store is the backend surface the indexer writes through.
type Store interface {
	EnsureIndex(ctx context.Context) (bool, error)
	Create(ctx context.Context, id string, doc *Document) error
	Keywords(ctx context.Context, id, field string) ([]string, error)
	SetKeywords(ctx context.Context, id string, kwds []string) error
}

// Indexer extracts files and stores them through a Store.
type Indexer struct {
	store     Store
	extractor *extract.Extractor
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger for per-file progress.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer writing to store.
func NewIndexer(store Store, extractor *extract.Extractor, opts Options, options ...IndexerOption) *Indexer {
	if opts.Parallel <= 0 {
		opts.Parallel = 1
	}
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	idx := &Indexer{
		store:     store,
		extractor: extractor,
		opts:      opts,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, o := range options {
		o(idx)
	}
	return idx
}

// Run ensures the index exists, then indexes every matching file in dir with
// Parallel workers. Worker starts are spaced StartInterval apart. Per-file
// failures are counted, never returned.
func (idx *Indexer) Run(ctx context.Context, dir string) (Stats, error) {
	var stats Stats
	files, err := idx.Files(dir)
	if err != nil {
		return stats, err
	}
	created, err := idx.store.EnsureIndex(ctx)
	if err != nil {
		return stats, err
	}
	idx.logger.Info("index ready", zap.Bool("created", created), zap.Int("files", len(files)))

	limit := rate.Inf
	if idx.opts.StartInterval > 0 {
		limit = rate.Every(idx.opts.StartInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < idx.opts.Parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				idx.count(&stats, idx.IndexFile(ctx, path))
			}
		}()
	}

send:
	for _, path := range files {
		select {
		case jobs <- path:
		case <-ctx.Done():
			break send
		}
	}
	close(jobs)
	wg.Wait()
	return stats, ctx.Err()
}

func (idx *Indexer) count(stats *Stats, o Outcome) {
	switch o {
	case Indexed:
		atomic.AddInt64(&stats.Indexed, 1)
	case Skipped:
		atomic.AddInt64(&stats.Skipped, 1)
	default:
		atomic.AddInt64(&stats.Failed, 1)
	}
}

// Files lists the files of dir to index, sorted by path.
func (idx *Indexer) Files(dir string) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	var files []string
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && !idx.opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if idx.wants(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// wants reports whether path passes the extension and modification filters.
func (idx *Indexer) wants(path string) bool {
	if !watcher.ExtensionFilter(idx.opts.Extensions)(path) || !extract.Supported(filepath.Ext(path)) {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return idx.opts.ModifiedAfter.IsZero() || info.ModTime().After(idx.opts.ModifiedAfter)
}

// IndexFile extracts path and creates its document. A document that already
// exists is skipped. Keyword extraction failures are logged and do not fail
// the file.
func (idx *Indexer) IndexFile(ctx context.Context, path string) Outcome {
	absPath, err := filepath.Abs(path)
	if err != nil {
		idx.logger.Error("indexing error", zap.String("path", path), zap.Error(err))
		return Failed
	}
	doc, err := idx.build(absPath)
	if err != nil {
		idx.logger.Error("extract error", zap.String("path", absPath), zap.Error(err))
		return Failed
	}
	log := idx.logger.With(zap.String("title", doc.Title), zap.String("id", doc.DocID))

	if err := idx.store.Create(ctx, doc.DocID, doc); err != nil {
		if errors.Is(err, ErrDocumentExists) {
			log.Info("document already exists")
			return Skipped
		}
		log.Error("indexing error", zap.Error(err))
		return Failed
	}
	log.Info("document saved")

	field := "content"
	if doc.Lang == "ja" {
		field = "content.ja"
	}
	kwds, err := idx.store.Keywords(ctx, doc.DocID, field)
	if err == nil {
		err = idx.store.SetKeywords(ctx, doc.DocID, kwds)
	}
	if err != nil {
		log.Warn("extract terms error", zap.Error(err))
	}
	return Indexed
}

func (idx *Indexer) build(absPath string) (*Document, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	text, err := idx.extractor.Extract(absPath)
	if err != nil {
		return nil, err
	}
	content := JoinLines(text)
	return &Document{
		DocID:         fileid.DocID(absPath),
		URL:           fileid.FileURL(absPath),
		Title:         norm.NFC.String(filepath.Base(absPath)),
		Content:       SplitSentences(content, MaxGroupRunes),
		Lang:          DetectLanguage(content),
		IndexModified: idx.now(),
		FileModified:  info.ModTime(),
	}, nil
}

// Watch indexes files that appear or change under dir until ctx is done.
func (idx *Indexer) Watch(ctx context.Context, dir string, onDone func(path string, o Outcome)) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	w := watcher.New([]string{absDir}, func(path string) {
		if !idx.wants(path) {
			return
		}
		o := idx.IndexFile(ctx, path)
		if onDone != nil {
			onDone(path, o)
		}
	},
		watcher.WithRecursive(idx.opts.Recursive),
		watcher.WithFilter(watcher.ExtensionFilter(idx.opts.Extensions)),
		watcher.WithLogger(idx.logger),
	)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	<-ctx.Done()
	w.Stop()
	return nil
}
