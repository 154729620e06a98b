package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/asaidimu/go-vellum/core/access"
	"github.com/asaidimu/go-vellum/core/collection"
	"github.com/asaidimu/go-vellum/core/engine"
	"github.com/asaidimu/go-vellum/core/hook"
	"github.com/asaidimu/go-vellum/core/schema"
	"github.com/asaidimu/go-vellum/core/storage"
	"github.com/asaidimu/go-vellum/sqlite"
)

const dbFileName = "content.db"

func main() {
	// Remove the database file if it already exists to start fresh
	if err := os.Remove(dbFileName); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing database file %s: %v", dbFileName, err)
	}
	fmt.Printf("Starting fresh: removed existing %s (if any).\n", dbFileName)

	db, err := sql.Open("sqlite3", dbFileName)
	if err != nil {
		log.Fatalf("Failed to open database connection: %v", err)
	}
	defer func() {
		if cErr := db.Close(); cErr != nil {
			log.Printf("Error closing database connection: %v", cErr)
		}
		fmt.Println("Database connection closed.")
	}()

	registry := collection.NewRegistry()
	registry.MustRegister(&collection.CollectionSchema{
		Slug: "posts",
		Fields: []schema.FieldDescriptor{
			{Name: "title", Kind: schema.FieldText, Required: true},
			{Name: "slug", Kind: schema.FieldText},
			{Name: "content", Kind: schema.FieldRichText},
			{Name: "excerpt", Kind: schema.FieldTextarea},
			{Name: "published", Kind: schema.FieldBoolean, Default: false},
		},
		Access: access.Policy{
			access.OperationRead:   access.AllowAll,
			access.OperationCreate: access.Authenticated,
			access.OperationUpdate: access.Authenticated,
			access.OperationDelete: access.RequireRole("admin"),
		},
		Hooks: hook.Bindings{
			hook.BeforeValidate: {hook.DeriveSlug("title", "slug")},
			hook.BeforeChange:   {hook.DeriveExcerpt("content", "excerpt")},
		},
		Timestamps:   true,
		UniqueFields: []string{"slug"},
	})

	store := sqlite.NewStore(db, nil)
	svc, err := engine.New(registry, store)
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}
	fmt.Println("Initialized engine with collection 'posts'.")

	svc.RegisterSubscription(engine.RegisterSubscriptionOptions{
		Event: engine.DocumentCreateSuccess,
		Callback: func(ctx context.Context, event engine.Event) error {
			fmt.Printf("Document added to collection '%s' (%s)\n", event.Collection, event.DocumentID)
			return nil
		},
	})
	svc.RegisterSubscription(engine.RegisterSubscriptionOptions{
		Event: engine.DocumentDeleteSuccess,
		Callback: func(ctx context.Context, event engine.Event) error {
			fmt.Printf("Document deleted from collection '%s' (%s)\n", event.Collection, event.DocumentID)
			return nil
		},
	})

	ctx := context.Background()
	author := access.Principal{ID: "author-1", Role: "admin"}

	fmt.Println("Inserting sample posts...")
	first, err := svc.Create(ctx, "posts", author, schema.Document{
		"title": "Hello World",
		"content": []any{
			map[string]any{"type": "paragraph", "children": []any{
				map[string]any{"type": "text", "text": "The first post on this site."},
			}},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create first post: %v", err)
	}
	fmt.Printf("Created %q with slug %q\n", first.String("title"), first.String("slug"))

	if _, err := svc.Create(ctx, "posts", author, schema.Document{
		"title":     "A Second Post",
		"published": true,
	}); err != nil {
		log.Fatalf("Failed to create second post: %v", err)
	}

	// Duplicate slugs are rejected.
	if _, err := svc.Create(ctx, "posts", author, schema.Document{"title": "Hello World"}); err != nil {
		fmt.Printf("Duplicate rejected as expected: %v\n", err)
	}

	updated, err := svc.Update(ctx, "posts", author, first.ID(), schema.Document{
		"published": true,
	})
	if err != nil {
		log.Fatalf("Failed to publish first post: %v", err)
	}
	fmt.Printf("Published %q (updatedAt %v)\n", updated.String("title"), updated["updatedAt"])

	fmt.Println("\nListing posts:")
	page, err := svc.List(ctx, "posts", access.Principal{}, storage.Filter{}, storage.Pagination{Limit: 10})
	if err != nil {
		log.Fatalf("Failed to list posts: %v", err)
	}
	fmt.Println("-------------------------------------------------------------------")
	fmt.Printf("%-38s %-20s %-20s %-10s\n", "ID", "Title", "Slug", "Published")
	fmt.Println("-------------------------------------------------------------------")
	for _, doc := range page.Docs {
		fmt.Printf("%-38s %-20s %-20s %-10v\n", doc.ID(), doc.String("title"), doc.String("slug"), doc["published"])
	}
	fmt.Println("-------------------------------------------------------------------")
	fmt.Printf("Total: %d document(s), %d page(s)\n", page.TotalDocs, page.TotalPages)

	bySlug, err := svc.FindBySlug(ctx, "posts", access.Principal{}, "hello-world")
	if err != nil {
		log.Fatalf("Failed to look up by slug: %v", err)
	}
	fmt.Printf("\nLookup by slug 'hello-world' found %q\n", bySlug.String("title"))

	if err := svc.Delete(ctx, "posts", author, first.ID()); err != nil {
		log.Fatalf("Failed to delete post: %v", err)
	}

	fmt.Printf("\nDatabase created at: %s\n", dbFileName)
	fmt.Println("Inspect it with the 'sqlite3' command-line tool:")
	fmt.Printf("    sqlite3 %s 'SELECT doc FROM col_posts;'\n", dbFileName)
}
