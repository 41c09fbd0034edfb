//go:build integration
// +build integration

package catalog

import (
	"context"
	"flag"
	"fmt"
	"os/user"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/i-egik/NameCount/platform/pg"
)

var pgTestURL string

func TestPostgresCreate(t *testing.T) {
	testServiceCreate(t, preparePostgres)
}

func TestPostgresGet(t *testing.T) {
	testServiceGet(t, preparePostgres)
}

func TestPostgresQuery(t *testing.T) {
	testServiceQuery(t, preparePostgres)
}

func TestPostgresUpdate(t *testing.T) {
	testServiceUpdate(t, preparePostgres)
}

func preparePostgres(t *testing.T) Service {
	db, err := sqlx.Connect("postgres", pgTestURL)
	if err != nil {
		t.Fatal(err)
	}

	s := PostgresService(db, "service_catalog")

	if err := s.Teardown(context.Background()); err != nil {
		t.Fatal(err)
	}

	return s
}

func init() {
	u, err := user.Current()
	if err != nil {
		panic(err)
	}

	d := fmt.Sprintf(pg.URLTest, u.Username)

	url := flag.String("postgres.url", d, "Postgres test connection URL")
	flag.Parse()

	pgTestURL = *url
}
