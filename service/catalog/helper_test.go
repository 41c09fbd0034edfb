package catalog

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

type prepareFunc func(t *testing.T) Service

func testServiceCreate(t *testing.T, p prepareFunc) {
	var (
		ctx     = context.Background()
		service = p(t)
	)

	created, err := service.Create(ctx, testEntry())
	if err != nil {
		t.Fatal(err)
	}

	if have, want := created.ID, int64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if created.CreatedAt.IsZero() {
		t.Error("want created at")
	}

	_, err = service.Create(ctx, &Entry{Name: created.Name})
	if have, want := IsNotUnique(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	_, err = service.Create(ctx, &Entry{Name: "user:visits"})
	if have, want := IsInvalidEntry(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testServiceGet(t *testing.T, p prepareFunc) {
	var (
		ctx     = context.Background()
		service = p(t)
	)

	_, err := service.Get(ctx, "unknown")
	if have, want := IsNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	created, err := service.Create(ctx, testEntry())
	if err != nil {
		t.Fatal(err)
	}

	e, err := service.Get(ctx, created.Name)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := e.ID, created.ID; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := e.Description, created.Description; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	e, err = service.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := e.Name, created.Name; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	_, err = service.GetByID(ctx, created.ID+1)
	if have, want := IsNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testServiceQuery(t *testing.T, p prepareFunc) {
	var (
		ctx     = context.Background()
		service = p(t)
		names   = []string{}
	)

	for i := 0; i < 5; i++ {
		e, err := service.Create(ctx, testEntry())
		if err != nil {
			t.Fatal(err)
		}

		names = append(names, e.Name)
	}

	l, err := service.Query(ctx, QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if have, want := len(l), 5; have != want {
		t.Fatalf("have %v, want %v", have, want)
	}

	for i, e := range l {
		if have, want := e.Name, names[i]; have != want {
			t.Errorf("have %v, want %v", have, want)
		}
	}

	l, err = service.Query(ctx, QueryOptions{
		Names: names[1:3],
	})
	if err != nil {
		t.Fatal(err)
	}

	if have, want := len(l), 2; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	l, err = service.Query(ctx, QueryOptions{
		IDs:   []int64{1, 2, 3},
		Limit: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	if have, want := len(l), 2; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testServiceUpdate(t *testing.T, p prepareFunc) {
	var (
		ctx         = context.Background()
		service     = p(t)
		description = "updated"
	)

	created, err := service.Create(ctx, testEntry())
	if err != nil {
		t.Fatal(err)
	}

	other, err := service.Create(ctx, testEntry())
	if err != nil {
		t.Fatal(err)
	}

	updated, err := service.Update(ctx, created.ID, Patch{
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

	if have, want := updated.DefaultValue, created.DefaultValue; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	_, err = service.Update(ctx, created.ID, Patch{})
	if have, want := IsNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	_, err = service.Update(ctx, other.ID+10, Patch{Description: &description})
	if have, want := IsNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	_, err = service.Update(ctx, created.ID, Patch{Name: &other.Name})
	if have, want := IsNotUnique(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	e, err := service.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := e.Description, description; !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testEntry() *Entry {
	return &Entry{
		DefaultValue: rand.Int63n(100),
		Description:  fmt.Sprintf("counter %d", rand.Int63()),
		Name:         fmt.Sprintf("counter-%d", rand.Int63()),
	}
}
