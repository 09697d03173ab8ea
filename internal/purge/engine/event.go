package engine

import (
	"fmt"

	"github.com/edgecomet/purgebridge/internal/common/configtypes"
)

// EventKind identifies a content lifecycle event
type EventKind int

const (
	KindUnknown EventKind = iota
	EntrySaved
	EntryDeleted
	TermSaved
	TermDeleted
	AssetSaved
	AssetDeleted
)

var kindKeys = map[EventKind]string{
	EntrySaved:   configtypes.EventKindEntrySaved,
	EntryDeleted: configtypes.EventKindEntryDeleted,
	TermSaved:    configtypes.EventKindTermSaved,
	TermDeleted:  configtypes.EventKindTermDeleted,
	AssetSaved:   configtypes.EventKindAssetSaved,
	AssetDeleted: configtypes.EventKindAssetDeleted,
}

// String returns the purge_on key for k ("unknown" for unmapped values)
func (k EventKind) String() string {
	if key, ok := kindKeys[k]; ok {
		return key
	}
	return "unknown"
}

// ParseEventKind maps a purge_on key (e.g. "entry_saved") to its kind
func ParseEventKind(s string) (EventKind, error) {
	for kind, key := range kindKeys {
		if key == s {
			return kind, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown event kind: %q", s)
}

// Subject is the content item an event is about. It may have no public URL.
type Subject interface {
	URL() (string, bool)
}

// Parented subjects have a listing page (collection, taxonomy) that also goes stale
type Parented interface {
	Subject
	Parent() (Subject, bool)
}

// Event is one content lifecycle notification
type Event struct {
	Kind    EventKind
	Subject Subject
}

// Page is any addressable listing: a collection or a taxonomy
type Page struct {
	Path string
}

func (p Page) URL() (string, bool) {
	return p.Path, p.Path != ""
}

// Entry is a piece of content in a collection
type Entry struct {
	Path       string
	Collection *Page
}

func (e Entry) URL() (string, bool) {
	return e.Path, e.Path != ""
}

func (e Entry) Parent() (Subject, bool) {
	if e.Collection == nil {
		return nil, false
	}
	return *e.Collection, true
}

// Term is a taxonomy term
type Term struct {
	Path     string
	Taxonomy *Page
}

func (t Term) URL() (string, bool) {
	return t.Path, t.Path != ""
}

func (t Term) Parent() (Subject, bool) {
	if t.Taxonomy == nil {
		return nil, false
	}
	return *t.Taxonomy, true
}

// Asset is an uploaded file. Assets have no parent page.
type Asset struct {
	Path string
}

func (a Asset) URL() (string, bool) {
	return a.Path, a.Path != ""
}

// NewSubject builds the subject type matching kind from a URL and an optional parent URL
func NewSubject(kind EventKind, url, parentURL string) Subject {
	var parent *Page
	if parentURL != "" {
		parent = &Page{Path: parentURL}
	}

	switch kind {
	case EntrySaved, EntryDeleted:
		return Entry{Path: url, Collection: parent}
	case TermSaved, TermDeleted:
		return Term{Path: url, Taxonomy: parent}
	case AssetSaved, AssetDeleted:
		return Asset{Path: url}
	default:
		return nil
	}
}
