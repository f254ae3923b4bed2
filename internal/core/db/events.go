package db

import (
	"log"
	"time"
)

// ------------------------------
// Event System
// ------------------------------
//
// The DB emits typed events when bookmarks are upserted or deleted, when
// archived objects are stored, when archive links are saved, and when the
// sync watermark advances. Register listeners to react to these changes.
//
// Example usage:
//
//	db.RegisterEventListener(db.OnLinkSavedEvent, func(event db.Event) error {
//	    ev := event.(db.LinkSavedEvent)
//	    log.Printf("link saved: %s -> %s (%s)", ev.Link.BookmarkID, ev.Link.Digest, ev.Link.Status)
//	    return nil
//	})

// Event is the common interface for all database events.
type Event interface {
	Kind() EventKind
}

// EventKind represents all the kinds of events that can be emitted by the DB.
type EventKind int

const (
	// OnBookmarkUpsertedEvent is emitted when a bookmark is inserted or refreshed.
	OnBookmarkUpsertedEvent EventKind = iota
	// OnBookmarkDeletedEvent is emitted when a bookmark is deleted.
	OnBookmarkDeletedEvent
	// OnObjectStoredEvent is emitted when archived object metadata is committed.
	OnObjectStoredEvent
	// OnLinkSavedEvent is emitted when an archive link is saved.
	OnLinkSavedEvent
	// OnWatermarkAdvancedEvent is emitted when a sync pass commits.
	OnWatermarkAdvancedEvent
)

func (k EventKind) String() string {
	switch k {
	case OnBookmarkUpsertedEvent:
		return "bookmark_upserted"
	case OnBookmarkDeletedEvent:
		return "bookmark_deleted"
	case OnObjectStoredEvent:
		return "object_stored"
	case OnLinkSavedEvent:
		return "link_saved"
	case OnWatermarkAdvancedEvent:
		return "watermark_advanced"
	default:
		return "unknown"
	}
}

// BookmarkUpsertedEvent is emitted after a bookmark is inserted or its
// metadata refreshed. Created is true for a first-time insert.
type BookmarkUpsertedEvent struct {
	Bookmark Bookmark
	Created  bool
}

func (e BookmarkUpsertedEvent) Kind() EventKind { return OnBookmarkUpsertedEvent }

// BookmarkDeletedEvent is emitted after a bookmark is deleted.
// The Bookmark field contains the state before deletion (if available).
type BookmarkDeletedEvent struct {
	Bookmark Bookmark
}

func (e BookmarkDeletedEvent) Kind() EventKind { return OnBookmarkDeletedEvent }

// ObjectStoredEvent is emitted after metadata for a newly stored object is
// committed.
type ObjectStoredEvent struct {
	Digest string
	Size   int64
}

func (e ObjectStoredEvent) Kind() EventKind { return OnObjectStoredEvent }

// LinkSavedEvent is emitted after an archive link is saved, both for
// individual pending writes and for links committed at the end of a pass.
type LinkSavedEvent struct {
	Link ArchiveLink
}

func (e LinkSavedEvent) Kind() EventKind { return OnLinkSavedEvent }

// WatermarkAdvancedEvent is emitted after a sync pass commits and the
// watermark moves forward.
type WatermarkAdvancedEvent struct {
	Watermark time.Time
}

func (e WatermarkAdvancedEvent) Kind() EventKind { return OnWatermarkAdvancedEvent }

// EventListener is a callback that handles events of a specific kind.
type EventListener func(event Event) error

// RegisterEventListener adds a listener for a specific event kind.
// Listeners are called synchronously in registration order after the DB operation succeeds.
func (db *DB) RegisterEventListener(eventKind EventKind, listener EventListener) {
	if db.eventListeners == nil {
		db.eventListeners = make(map[EventKind][]EventListener)
	}
	db.eventListeners[eventKind] = append(db.eventListeners[eventKind], listener)
}

// emit dispatches an event to all registered listeners for that event kind.
func (db *DB) emit(event Event) {
	listeners := db.eventListeners[event.Kind()]
	for _, listener := range listeners {
		if err := listener(event); err != nil {
			log.Printf("Event listener error for %s: %v", event.Kind(), err)
		}
	}
}
