package counter

import (
	"context"
	"math/rand"
	"testing"
)

type prepareFunc func(t *testing.T) Service

func testServiceCreate(t *testing.T, p prepareFunc) {
	var (
		ctx               = context.Background()
		service           = p(t)
		counterID, userID = testIDs()
	)

	c, err := service.Create(ctx, counterID, userID, 3)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := c.Value, int64(3); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if c.ID == 0 {
		t.Error("want id")
	}

	_, err = service.Create(ctx, counterID, userID, 4)
	if have, want := IsExists(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testServiceGet(t *testing.T, p prepareFunc) {
	var (
		ctx               = context.Background()
		service           = p(t)
		counterID, userID = testIDs()
	)

	_, err := service.Get(ctx, counterID, userID)
	if have, want := IsNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if _, err := service.Create(ctx, counterID, userID, -7); err != nil {
		t.Fatal(err)
	}

	c, err := service.Get(ctx, counterID, userID)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := c.Value, int64(-7); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := c.CounterID, counterID; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := c.UserID, userID; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testServiceUpdate(t *testing.T, p prepareFunc) {
	var (
		ctx               = context.Background()
		service           = p(t)
		counterID, userID = testIDs()
	)

	_, err := service.Update(ctx, counterID, userID, 1)
	if have, want := IsNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if _, err := service.Create(ctx, counterID, userID, 1); err != nil {
		t.Fatal(err)
	}

	c, err := service.Update(ctx, counterID, userID, 12)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := c.Value, int64(12); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testServiceUpdateOrCreate(t *testing.T, p prepareFunc) {
	var (
		ctx               = context.Background()
		service           = p(t)
		counterID, userID = testIDs()
	)

	created, err := service.UpdateOrCreate(ctx, counterID, userID, 1)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := created.Value, int64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	// Values are taken as they come, a lower one overwrites a higher one.
	for _, v := range []int64{5, 2} {
		if _, err := service.UpdateOrCreate(ctx, counterID, userID, v); err != nil {
			t.Fatal(err)
		}
	}

	c, err := service.Get(ctx, counterID, userID)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := c.Value, int64(2); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := c.ID, created.ID; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if c.UpdatedAt.Before(created.UpdatedAt) {
		t.Errorf("updated at went back: %v < %v", c.UpdatedAt, created.UpdatedAt)
	}
}

func testIDs() (int64, int64) {
	return rand.Int63(), rand.Int63()
}
