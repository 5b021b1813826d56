//go:build integration || !unit

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	httpserver "orion_source/internal/adapters/http_server"
	"orion_source/internal/adapters/orion"
	redisad "orion_source/internal/adapters/redis"
	"orion_source/internal/app"
	"orion_source/internal/domain"
	mysqlrepo "orion_source/internal/storage/mysql"
)

// ---------- helpers ----------
func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// ---------- fake catalog API ----------

type hydraAPI struct {
	rentals int
	perPage int
}

func (a *hydraAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer e2e" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	path := r.URL.Path
	var members []map[string]any
	var view map[string]any

	switch {
	case path == domain.RentalsEndpoint:
		last := (a.rentals + a.perPage - 1) / a.perPage
		for i := (page-1)*a.perPage + 1; i <= page*a.perPage && i <= a.rentals; i++ {
			members = append(members, map[string]any{
				"@id": fmt.Sprintf("/rentals/%d", i), "@type": "Rental",
				"title": fmt.Sprintf("Rental %d", i), "highlights": []string{"/highlights/1"},
			})
		}
		view = map[string]any{"@id": fmt.Sprintf("/rentals?page=%d", page), "hydra:last": fmt.Sprintf("/rentals?page=%d", last)}
	case strings.HasSuffix(path, "/pictures"):
		rental := strings.TrimSuffix(path, "/pictures")
		n := strings.TrimPrefix(rental, "/rentals/")
		members = []map[string]any{{
			"@id": "/rental_pictures/" + n, "@type": "RentalPicture", "position": 0,
			"picture": map[string]any{"@id": "/pictures/" + n, "@type": "Picture", "contentUrl": "https://cdn.example/" + n + ".jpg"},
		}}
	case strings.HasSuffix(path, "/special_offers"):
		if path == "/rentals/1/special_offers" {
			members = []map[string]any{{"@id": "/special_offers/1", "@type": "SpecialOffer", "discount": 10}}
		}
	case strings.Count(path, "/") == 1:
		typ := map[string]string{"/locales": "Locale", "/beds": "Bed", "/seasons": "Season"}[path]
		if typ == "" {
			typ = "Reference"
		}
		members = []map[string]any{{"@id": path + "/1", "@type": typ, "name": path}}
	}

	body := map[string]any{"hydra:member": members}
	if view != nil {
		body["hydra:view"] = view
	}
	w.Header().Set("Content-Type", "application/ld+json")
	_ = json.NewEncoder(w).Encode(body)
}

// ---------- the test ----------
func TestHTTP_EndToEnd_IngestThenLookup(t *testing.T) {
	if os.Getenv("SKIP_DOCKER") != "" {
		t.Skip("SKIP_DOCKER set")
	}
	// Start isolated MySQL container
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=orion",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Skipf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", resource.GetPort("3306/tcp"), "orion")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applyMigrations(t, db)

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	// Ingest from a fake catalog
	catalog := httptest.NewServer(&hydraAPI{rentals: 24, perPage: 10})
	defer catalog.Close()

	client, err := orion.New(orion.Options{Base: catalog.URL, Token: "e2e", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	pager := orion.NewPager(client, orion.TruncationPolicy{})
	ing := app.NewIngestionService(pager, app.NewEnricher(pager, app.DefaultKinds, 16), repo, cache)

	rep, err := ing.Ingest(ctx)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if rep.Rentals != 24 || rep.Stats.Pictures != 24 || rep.Stats.References != len(domain.ReferenceCollections) {
		t.Fatalf("unexpected report: %+v", rep)
	}

	// Serve the stored graph
	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{Q: app.NewQueryService(repo, cache, time.Minute)})
	api := httptest.NewServer(srv.Mux())
	defer api.Close()

	res, err := http.Get(api.URL + "/v1/nodes/" + url.PathEscape("/rentals/1"))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	var rental domain.Node
	if err := json.NewDecoder(res.Body).Decode(&rental); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rental.Fields["mainPicture"] != "/pictures/1" || rental.Fields["hasSpecialOffers"] != true {
		t.Fatalf("unexpected rental fields: %+v", rental.Fields)
	}

	res2, err := http.Get(api.URL + "/v1/types/UserLocale/nodes")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res2.Body.Close()
	var locales struct {
		Items []domain.Node `json:"items"`
	}
	if err := json.NewDecoder(res2.Body).Decode(&locales); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(locales.Items) != 1 || locales.Items[0].ID != "/locales/1" {
		t.Fatalf("unexpected locales: %+v", locales.Items)
	}

	pic, err := repo.GetNode(ctx, "/pictures/24")
	if err != nil || pic.Parent == nil || *pic.Parent != "/rentals/24" {
		t.Fatalf("picture not parented: %+v %v", pic, err)
	}
}
