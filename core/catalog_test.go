package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/i-egik/NameCount/platform/cache"
	"github.com/i-egik/NameCount/service/catalog"
)

func TestCatalogResolveRegister(t *testing.T) {
	var (
		ctx      = context.Background()
		catalogs = &countingCatalog{Service: catalog.MemService()}
		ids      = testCatalogCache(t, catalogs)
		resolve  = CatalogResolve(ids)
		register = CatalogRegister(catalogs, ids)
	)

	_, err := resolve(ctx, "x")
	if have, want := IsNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	e, err := register(ctx, "x", "desc", 0)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := e.ID, int64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	gets := catalogs.gets.Load()

	id, err := resolve(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}

	if have, want := id, e.ID; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := catalogs.gets.Load(), gets; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCatalogRegisterExisting(t *testing.T) {
	var (
		ctx      = context.Background()
		catalogs = catalog.MemService()
		register = CatalogRegister(catalogs, testCatalogCache(t, catalogs))
	)

	created, err := register(ctx, "visits", "page visits", 10)
	if err != nil {
		t.Fatal(err)
	}

	existing, err := register(ctx, "visits", "something else", 20)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := existing.ID, created.ID; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := existing.Description, "page visits"; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := existing.DefaultValue, int64(10); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCatalogRegisterInvalid(t *testing.T) {
	var (
		catalogs = catalog.MemService()
		register = CatalogRegister(catalogs, testCatalogCache(t, catalogs))
	)

	_, err := register(context.Background(), "", "", 0)
	if have, want := IsInvalidEntity(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCatalogResolveUnavailable(t *testing.T) {
	var (
		catalogs = &countingCatalog{
			Service: catalog.MemService(),
			err:     errors.New("connection refused"),
		}
		resolve = CatalogResolve(testCatalogCache(t, catalogs))
	)

	_, err := resolve(context.Background(), "x")
	if have, want := IsUnavailable(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCatalogUpdate(t *testing.T) {
	var (
		ctx      = context.Background()
		catalogs = catalog.MemService()
		ids      = testCatalogCache(t, catalogs)
		register = CatalogRegister(catalogs, ids)
		resolve  = CatalogResolve(ids)
		update   = CatalogUpdate(catalogs, ids)
	)

	created, err := register(ctx, "visits", "page visits", 0)
	if err != nil {
		t.Fatal(err)
	}

	description := "unique page visits"

	updated, err := update(ctx, created.ID, catalog.Patch{
		Description: &description,
	})
	if err != nil {
		t.Fatal(err)
	}

	if have, want := updated.Description, description; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := updated.Name, created.Name; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	name := "uniques"

	_, err = update(ctx, created.ID, catalog.Patch{Name: &name})
	if err != nil {
		t.Fatal(err)
	}

	_, err = resolve(ctx, "visits")
	if have, want := IsNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	id, err := resolve(ctx, name)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := id, created.ID; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCatalogUpdateNotFound(t *testing.T) {
	var (
		ctx      = context.Background()
		catalogs = catalog.MemService()
		ids      = testCatalogCache(t, catalogs)
		update   = CatalogUpdate(catalogs, ids)
	)

	created, err := CatalogRegister(catalogs, ids)(ctx, "visits", "", 0)
	if err != nil {
		t.Fatal(err)
	}

	_, err = update(ctx, created.ID, catalog.Patch{})
	if have, want := IsNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	description := "visits"

	_, err = update(ctx, created.ID+1, catalog.Patch{Description: &description})
	if have, want := IsNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCatalogList(t *testing.T) {
	var (
		ctx      = context.Background()
		catalogs = catalog.MemService()
		register = CatalogRegister(catalogs, testCatalogCache(t, catalogs))
	)

	for _, name := range []string{"a", "b", "c"} {
		if _, err := register(ctx, name, "", 0); err != nil {
			t.Fatal(err)
		}
	}

	es, err := CatalogList(catalogs)(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := len(es), 3; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	e, err := CatalogGet(catalogs)(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}

	if have, want := e.Name, "b"; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	_, err = CatalogGet(catalogs)(ctx, "d")
	if have, want := IsNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCatalogCacheWarm(t *testing.T) {
	var (
		ctx      = context.Background()
		catalogs = &countingCatalog{Service: catalog.MemService()}
	)

	for _, name := range []string{"a", "b"} {
		_, err := catalogs.Create(ctx, &catalog.Entry{Name: name})
		if err != nil {
			t.Fatal(err)
		}
	}

	ids, err := CatalogCache(ctx, catalogs, CatalogCacheOptions{Warm: true})
	if err != nil {
		t.Fatal(err)
	}

	if have, want := ids.Len(), 2; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if _, err := CatalogResolve(ids)(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	if have, want := catalogs.gets.Load(), int64(0); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

type countingCatalog struct {
	catalog.Service

	err  error
	gets atomic.Int64
}

func (c *countingCatalog) Get(ctx context.Context, name string) (*catalog.Entry, error) {
	c.gets.Add(1)

	if c.err != nil {
		return nil, c.err
	}

	return c.Service.Get(ctx, name)
}

func testCatalogCache(t *testing.T, catalogs catalog.Service) *cache.Tiered[string, int64] {
	ids, err := CatalogCache(context.Background(), catalogs, CatalogCacheOptions{})
	if err != nil {
		t.Fatal(err)
	}

	return ids
}
