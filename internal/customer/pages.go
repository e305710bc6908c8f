package customer

import (
	"context"
	"errors"
	"time"

	"storefront-api/internal/apperr"
	"storefront-api/internal/storage"
)

// StaticPage is a CMS-published content page addressed by descriptor.
type StaticPage struct {
	Descriptor  string    `json:"descriptor"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
}

// PageStore keeps published static pages in the KV store. Publishing
// and unpublishing happen through queue messages; reads serve the
// storefront directly.
type PageStore struct {
	kv storage.KVStore
}

// NewPageStore wires the page store over the KV backend.
func NewPageStore(kv storage.KVStore) *PageStore {
	return &PageStore{kv: kv}
}

// Publish writes or replaces a page.
func (s *PageStore) Publish(ctx context.Context, page StaticPage) error {
	if page.Descriptor == "" {
		return apperr.Incorrect("static page descriptor is required")
	}
	if page.PublishedAt.IsZero() {
		page.PublishedAt = time.Now().UTC()
	}
	return s.kv.Put(ctx, storage.PKStaticPage, page.Descriptor, storage.Attrs{"page": page})
}

// Unpublish removes a page. Unpublishing an absent page is not an
// error, the queue may replay.
func (s *PageStore) Unpublish(ctx context.Context, descriptor string) error {
	return s.kv.Delete(ctx, storage.PKStaticPage, descriptor)
}

// Get returns a published page.
func (s *PageStore) Get(ctx context.Context, descriptor string) (StaticPage, error) {
	attrs, err := s.kv.Get(ctx, storage.PKStaticPage, descriptor)
	if errors.Is(err, storage.ErrNotFound) {
		return StaticPage{}, apperr.NotFound("static page %s not found", descriptor)
	}
	if err != nil {
		return StaticPage{}, err
	}
	var page StaticPage
	if err := storage.AttrDecode(attrs, "page", &page); err != nil {
		return StaticPage{}, err
	}
	return page, nil
}
