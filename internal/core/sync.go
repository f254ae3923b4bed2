// Package core reconciles a remote bookmark set against the local index and
// archive: it lists the delta since the last sync watermark, fetches content
// for new or changed bookmarks through a bounded worker pool, commits the
// bytes to the content-addressed attic, and atomically persists the updated
// archive links together with the advanced watermark.
package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/henrytill/hbt/internal/attic"
	"github.com/henrytill/hbt/internal/core/db"
	"github.com/henrytill/hbt/internal/fetch"
)

// ErrSourceUnavailable means the bookmark source itself could not be
// listed. The pass aborts before any state change; re-run with the same
// watermark.
var ErrSourceUnavailable = errors.New("bookmark source unavailable")

// Source is the capability the engine consumes from a bookmark service:
// an ordered, finite delta listing. The listing is not restartable
// mid-stream; callers re-request with the same since on failure.
type Source interface {
	ListChanges(ctx context.Context, since time.Time) ([]db.Bookmark, error)
}

// Engine orchestrates a sync pass. Passes against the same store
// serialize on the store's pass lock, as does the gc sweep.
type Engine struct {
	Source  Source
	Fetcher fetch.Fetcher
	DB      *db.DB
	Store   *attic.Store

	// Workers bounds concurrent fetches. If <= 0, DefaultWorkers.
	Workers int
	// Refetch forces re-archival even when an up-to-date link exists.
	Refetch bool
	// Retry bounds per-bookmark fetch retries. Zero value means
	// fetch.DefaultPolicy.
	Retry fetch.Policy
}

// Report enumerates the outcome of a sync pass.
type Report struct {
	// NewlyArchived counts bookmarks whose content was written to the
	// store for the first time.
	NewlyArchived int
	// AlreadyArchived counts bookmarks whose fetched content deduplicated
	// against an existing object (no physical write).
	AlreadyArchived int
	// Failed counts bookmarks whose fetch failed after retries.
	Failed int
	// Skipped counts bookmarks left intact: an archived link already
	// covers their current URL.
	Skipped int
	// FailedIDs identifies the failed bookmarks.
	FailedIDs []string
	// Watermark is the persisted cursor after the pass.
	Watermark time.Time
}

// outcome is the per-bookmark result of the fetch phase.
type outcome struct {
	decided bool
	status  string
	link    db.ArchiveLink // zero for skipped bookmarks
	created bool
	fatal   error
}

// Sync runs one pass: list the delta since the given watermark, archive
// what needs archiving, and commit links plus the new watermark
// atomically.
//
// A single bookmark's fetch failure is recorded and does not abort the
// pass. Source failures abort with ErrSourceUnavailable before any state
// change. Store corruption aborts without committing. On cancellation,
// every fully processed bookmark up to the first unprocessed one is
// committed, so re-running with the persisted watermark resumes safely.
func (e *Engine) Sync(ctx context.Context, since time.Time) (Report, error) {
	bookmarks, err := e.Source.ListChanges(ctx, since)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	report := Report{Watermark: since}
	if len(bookmarks) == 0 {
		return report, nil
	}

	log.Printf("Syncing %d bookmark(s) since %s", len(bookmarks), formatWatermark(since))

	// Hold the store's pass lock for the whole pass. Puts during the
	// fetch phase insert object rows that have no links until the commit
	// below; a gc sweep in that window would reclaim them.
	unlock := e.Store.LockPass()
	defer unlock()

	outcomes := make([]outcome, len(bookmarks))
	var jobs []int

	// Reconcile metadata and decide which bookmarks need a fetch. Pending
	// links are recorded before any network call.
	for i, b := range bookmarks {
		prior, priorErr := e.DB.GetLink(b.ID)

		if err := e.DB.UpsertBookmark(b); err != nil {
			return Report{}, err
		}

		if priorErr == nil && prior.Status == db.StatusArchived && prior.URL == b.URL && !e.Refetch {
			outcomes[i] = outcome{decided: true, status: db.StatusSkipped}
			continue
		}

		pending := db.ArchiveLink{
			BookmarkID:  b.ID,
			URL:         b.URL,
			Status:      db.StatusPending,
			AttemptedAt: time.Now().UTC(),
		}
		if err := e.DB.SaveLink(pending); err != nil {
			return Report{}, err
		}
		jobs = append(jobs, i)
	}

	e.runFetches(ctx, bookmarks, jobs, outcomes)

	for _, o := range outcomes {
		if o.fatal != nil {
			// No further writes; nothing is committed.
			return Report{}, o.fatal
		}
	}

	// Determine the contiguous prefix of completed bookmarks. An
	// uncancelled pass completes everything; a cancelled one commits only
	// what finished in order, leaving the watermark safe to resume from.
	completed := len(bookmarks)
	for i := range outcomes {
		if !outcomes[i].decided {
			completed = i
			break
		}
	}
	if completed == 0 {
		return report, ctx.Err()
	}

	var links []db.ArchiveLink
	for _, o := range outcomes[:completed] {
		switch o.status {
		case db.StatusSkipped:
			report.Skipped++
		case db.StatusFailed:
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, o.link.BookmarkID)
			links = append(links, o.link)
		case db.StatusArchived:
			if o.created {
				report.NewlyArchived++
			} else {
				report.AlreadyArchived++
			}
			links = append(links, o.link)
		}
	}

	watermark := bookmarks[completed-1].UpdatedAt
	if watermark.Before(since) {
		watermark = since
	}
	report.Watermark = watermark

	if err := e.Store.CommitSync(links, watermark); err != nil {
		return Report{}, err
	}

	if completed < len(bookmarks) {
		return report, ctx.Err()
	}
	return report, nil
}

// runFetches drains the fetch jobs through a bounded worker pool. Each
// worker fetches with retry, stores the bytes, and records an outcome at
// the job's index. Workers stop picking up jobs once ctx is done.
func (e *Engine) runFetches(ctx context.Context, bookmarks []db.Bookmark, jobs []int, outcomes []outcome) {
	workers := e.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if workers == 0 {
		return
	}

	jobCh := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobCh {
				outcomes[i] = e.archiveOne(ctx, bookmarks[i])
			}
		}()
	}

	for _, i := range jobs {
		select {
		case jobCh <- i:
		case <-ctx.Done():
			close(jobCh)
			wg.Wait()
			return
		}
	}
	close(jobCh)
	wg.Wait()
}

// archiveOne fetches a single bookmark's content with retry and commits the
// bytes to the attic. It never aborts the pass for fetch failures; store
// failures are fatal and reported via outcome.fatal.
func (e *Engine) archiveOne(ctx context.Context, b db.Bookmark) outcome {
	attemptedAt := time.Now().UTC()

	var res fetch.Result
	err := fetch.WithRetry(ctx, e.Retry, func() error {
		r, ferr := e.Fetcher.Fetch(ctx, b.URL)
		if ferr == nil {
			res = r
		}
		return ferr
	})
	if err != nil {
		if ctx.Err() != nil {
			// Cancellation, not a verdict on the bookmark: leave it
			// undecided so the commit prefix stops before it.
			return outcome{}
		}
		log.Printf("Fetch failed for %s (%s): %v", b.ID, b.URL, err)
		return outcome{
			decided: true,
			status:  db.StatusFailed,
			link: db.ArchiveLink{
				BookmarkID:  b.ID,
				URL:         b.URL,
				Status:      db.StatusFailed,
				AttemptedAt: attemptedAt,
				Error:       err.Error(),
			},
		}
	}

	digest, created, err := e.Store.Put(res.Body, res.ContentType, string(res.Kind))
	if err != nil {
		return outcome{fatal: fmt.Errorf("failed to store content for %s: %w", b.ID, err)}
	}

	if created {
		log.Printf("Archived %s (%s) as %s", b.ID, b.URL, digest)
	}

	// Recover a title from the content when the source had none.
	if b.Title == "" && res.Title != "" {
		if err := e.DB.UpdateBookmarkTitle(b.ID, res.Title); err != nil {
			log.Printf("Failed to update title for %s: %v", b.ID, err)
		}
	}

	return outcome{
		decided: true,
		status:  db.StatusArchived,
		created: created,
		link: db.ArchiveLink{
			BookmarkID:  b.ID,
			Digest:      digest.String(),
			URL:         b.URL,
			Status:      db.StatusArchived,
			AttemptedAt: attemptedAt,
		},
	}
}

func formatWatermark(t time.Time) string {
	if t.IsZero() {
		return "the beginning"
	}
	return t.Format(time.RFC3339)
}
