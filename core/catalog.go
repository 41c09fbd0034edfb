package core

import (
	"context"
	"time"

	"github.com/i-egik/NameCount/platform/cache"
	"github.com/i-egik/NameCount/service/catalog"
)

// Local tier defaults of the catalog cache.
const (
	CatalogCacheTTL = 4 * time.Hour
)

// CatalogCacheOptions configure the name to id cache.
type CatalogCacheOptions struct {
	Capacity int
	TTL      time.Duration
	Warm     bool
}

// CatalogCache returns the name to id cache. Misses are looked up in the
// durable catalog, writes only reach the local tier.
func CatalogCache(
	ctx context.Context,
	catalogs catalog.Service,
	opts CatalogCacheOptions,
) (*cache.Tiered[string, int64], error) {
	if opts.TTL == 0 {
		opts.TTL = CatalogCacheTTL
	}

	local := cache.LocalOptions[string, int64]{
		Capacity: opts.Capacity,
		TTL:      opts.TTL,
	}

	if opts.Warm {
		local.Warm = func(ctx context.Context, put func(string, int64)) error {
			es, err := catalogs.Query(ctx, catalog.QueryOptions{})
			if err != nil {
				return err
			}

			for _, e := range es {
				put(e.Name, e.ID)
			}

			return nil
		}
	}

	load := func(ctx context.Context, name string) (int64, error) {
		e, err := catalogs.Get(ctx, name)
		if err != nil {
			if catalog.IsNotFound(err) {
				return 0, cache.ErrKeyNotFound
			}

			return 0, err
		}

		return e.ID, nil
	}

	return cache.LocalService[string, int64](
		ctx,
		cache.ReadOnlyService[string, int64](load),
		local,
	)
}

// CatalogGetFunc returns the full catalog entry for name.
type CatalogGetFunc func(ctx context.Context, name string) (*catalog.Entry, error)

// CatalogGet returns the full catalog entry for name.
func CatalogGet(catalogs catalog.Service) CatalogGetFunc {
	return func(ctx context.Context, name string) (*catalog.Entry, error) {
		e, err := catalogs.Get(ctx, name)
		if err != nil {
			if catalog.IsNotFound(err) {
				return nil, wrapError(ErrNotFound, "counter '%s' is not registered", name)
			}

			return nil, wrapError(ErrUnavailable, "catalog lookup: %s", err)
		}

		return e, nil
	}
}

// CatalogListFunc returns all registered catalog entries.
type CatalogListFunc func(ctx context.Context) (catalog.List, error)

// CatalogList returns all registered catalog entries.
func CatalogList(catalogs catalog.Service) CatalogListFunc {
	return func(ctx context.Context) (catalog.List, error) {
		es, err := catalogs.Query(ctx, catalog.QueryOptions{})
		if err != nil {
			return nil, wrapError(ErrUnavailable, "catalog query: %s", err)
		}

		return es, nil
	}
}

// CatalogRegisterFunc registers name, or returns the existing entry when it is
// registered already.
type CatalogRegisterFunc func(
	ctx context.Context,
	name, description string,
	defaultValue int64,
) (*catalog.Entry, error)

// CatalogRegister registers name, or returns the existing entry when it is
// registered already. An existing entry is returned as is, description and
// default value of the call are not merged into it.
func CatalogRegister(
	catalogs catalog.Service,
	ids cache.Service[string, int64],
) CatalogRegisterFunc {
	return func(
		ctx context.Context,
		name, description string,
		defaultValue int64,
	) (*catalog.Entry, error) {
		e, err := catalogs.Get(ctx, name)
		if err == nil {
			return e, cacheID(ctx, ids, e)
		}

		if !catalog.IsNotFound(err) {
			return nil, wrapError(ErrUnavailable, "catalog lookup: %s", err)
		}

		e, err = catalogs.Create(ctx, &catalog.Entry{
			DefaultValue: defaultValue,
			Description:  description,
			Name:         name,
		})
		switch {
		case catalog.IsInvalidEntry(err):
			return nil, wrapError(ErrInvalidEntity, "%s", err)
		case catalog.IsNotUnique(err):
			// Registered concurrently.
			e, err = catalogs.Get(ctx, name)
			if err != nil {
				return nil, wrapError(ErrUnavailable, "catalog lookup: %s", err)
			}
		case err != nil:
			return nil, wrapError(ErrUnavailable, "catalog create: %s", err)
		}

		return e, cacheID(ctx, ids, e)
	}
}

// CatalogResolveFunc returns the id registered for name.
type CatalogResolveFunc func(ctx context.Context, name string) (int64, error)

// CatalogResolve returns the id registered for name, consulting the durable
// catalog only on a cache miss.
func CatalogResolve(ids cache.Service[string, int64]) CatalogResolveFunc {
	return func(ctx context.Context, name string) (int64, error) {
		id, err := ids.Get(ctx, name)
		if err != nil {
			if cache.IsKeyNotFound(err) {
				return 0, wrapError(ErrNotFound, "counter '%s' is not registered", name)
			}

			return 0, wrapError(ErrUnavailable, "catalog lookup: %s", err)
		}

		return id, nil
	}
}

// CatalogUpdateFunc applies the set fields of patch to the entry with id.
type CatalogUpdateFunc func(
	ctx context.Context,
	id int64,
	patch catalog.Patch,
) (*catalog.Entry, error)

// CatalogUpdate applies the set fields of patch to the entry with id. A rename
// moves the cached id from the old to the new name.
func CatalogUpdate(
	catalogs catalog.Service,
	ids cache.Service[string, int64],
) CatalogUpdateFunc {
	return func(
		ctx context.Context,
		id int64,
		patch catalog.Patch,
	) (*catalog.Entry, error) {
		if patch.Empty() {
			return nil, wrapError(ErrNotFound, "no fields to update for %d", id)
		}

		old, err := catalogs.GetByID(ctx, id)
		if err != nil {
			if catalog.IsNotFound(err) {
				return nil, wrapError(ErrNotFound, "catalog entry %d", id)
			}

			return nil, wrapError(ErrUnavailable, "catalog lookup: %s", err)
		}

		e, err := catalogs.Update(ctx, id, patch)
		switch {
		case catalog.IsNotFound(err):
			return nil, wrapError(ErrNotFound, "catalog entry %d", id)
		case catalog.IsInvalidEntry(err):
			return nil, wrapError(ErrInvalidEntity, "%s", err)
		case catalog.IsNotUnique(err):
			return nil, wrapError(ErrInvalidEntity, "%s", err)
		case err != nil:
			return nil, wrapError(ErrUnavailable, "catalog update: %s", err)
		}

		if old.Name != e.Name {
			if err := ids.Delete(ctx, old.Name); err != nil {
				return nil, err
			}
		}

		return e, cacheID(ctx, ids, e)
	}
}

func cacheID(ctx context.Context, ids cache.Service[string, int64], e *catalog.Entry) error {
	return ids.Update(ctx, e.Name, e.ID)
}
