package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/canon"
	"github.com/siherrmann/canon/core/render"
	"github.com/siherrmann/canon/helper"
	"github.com/siherrmann/canon/model"
)

const sampleHTML = `<article>
<h1>Shipping Acme Analytics on Kubernetes</h1>
<p>Acme Analytics turns raw events into dashboards. Teams deploy
Acme Analytics next to Postgres and let Kubernetes handle the rest.</p>
<blockquote>Postgres is boring in the best possible way.</blockquote>
<p>Kubernetes schedules the workloads, Postgres keeps the state.</p>
</article>`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	options := canon.DefaultOptions()
	options.Link.MaxLinksPerDocument = 4

	c, err := canon.NewCanonWithOptions(dbConfig, options)
	if err != nil {
		log.Fatalf("Failed to create canon: %v", err)
	}
	defer c.Close()

	// Dictionary: product, databases and platforms with link rules
	fmt.Println("=== Building the Dictionary ===")
	dictionary := map[string]*model.Entity{
		"product": {
			Canonical: "Acme Analytics",
			Type:      model.TypeProduct,
			SameAs:    model.StringSlice{"https://www.wikidata.org/wiki/Q1"},
		},
		"postgres": {
			Canonical: "PostgreSQL",
			Type:      model.TypeTechnology,
		},
		"kubernetes": {
			Canonical: "Kubernetes",
			Type:      model.TypeTechnology,
		},
	}
	for _, entity := range dictionary {
		if err := c.Store.CreateEntity(entity); err != nil {
			log.Fatalf("Failed to create entity %q: %v", entity.Canonical, err)
		}
		fmt.Printf("Created %q (ID %d)\n", entity.Canonical, entity.ID)
	}

	if _, err := c.Store.AddAlias(dictionary["postgres"].ID, "Postgres", false, ""); err != nil {
		log.Fatalf("Failed to add alias: %v", err)
	}

	// First occurrence of the product gets linked, quotes stay untouched
	productRule := model.DefaultLinkRule(dictionary["product"].ID)
	productRule.TargetURL = "https://example.com/products/acme-analytics"
	productRule.NewTab = true
	if err := c.Store.SetLinkRule(productRule); err != nil {
		log.Fatalf("Failed to set link rule: %v", err)
	}

	postgresRule := model.DefaultLinkRule(dictionary["postgres"].ID)
	postgresRule.Mode = model.LinkModeAll
	postgresRule.TargetURL = "https://example.com/glossary/postgresql"
	postgresRule.SkipQuotes = true
	if err := c.Store.SetLinkRule(postgresRule); err != nil {
		log.Fatalf("Failed to set link rule: %v", err)
	}

	// Render: detection, auto-linking, schema dedup and validation in one pass
	fmt.Println("\n=== Rendering a Document ===")
	pipeline, err := c.NewRender()
	if err != nil {
		log.Fatalf("Failed to create render pipeline: %v", err)
	}

	doc := &model.Document{
		ID:    1,
		Title: "Shipping Acme Analytics on Kubernetes",
		Body:  "Acme Analytics turns raw events into dashboards. Teams deploy it next to Postgres on Kubernetes.",
	}

	input := &render.Input{
		Document: doc,
		HTML:     sampleHTML,
		Fragments: []*model.Fragment{
			{
				Type:   "Organization",
				Source: "theme",
				Properties: model.Properties{
					"name": "Acme Corp",
					"url":  "https://example.com",
				},
			},
			{
				Type:   "Organization",
				Source: "seo_plugin",
				Properties: model.Properties{
					"name": "Acme Corp",
					"logo": "https://example.com/logo.png",
				},
			},
			{
				Type:   "Article",
				Source: "theme",
				Properties: model.Properties{
					"headline": "Shipping Acme Analytics on Kubernetes",
				},
			},
		},
	}

	snapshot, err := pipeline.Render(input)
	if err != nil {
		log.Fatalf("Failed to render document: %v", err)
	}

	fmt.Printf("\nDetected %d entities:\n", len(snapshot.Matches))
	for _, match := range snapshot.Matches {
		fmt.Printf("- %q (confidence %.2f)\n", match.MatchedTerm, match.Confidence)
	}

	fmt.Printf("\nApplied %d links:\n", len(snapshot.Links))
	for _, link := range snapshot.Links {
		fmt.Printf("- %q -> %s\n", link.Term, link.URL)
	}

	fmt.Printf("\nSchema fragments after dedup: %d (from %d)\n",
		len(snapshot.Fragments), len(input.Fragments))
	for _, conflict := range snapshot.Conflicts {
		fmt.Printf("- conflict: %s (%s)\n", conflict.Type, conflict.SchemaType)
	}

	fmt.Printf("\nGovernance score: %d\n", snapshot.Report.Score)
	for _, issue := range snapshot.Report.Issues {
		fmt.Printf("- [%s] %s\n", issue.Severity, issue.Message)
	}

	fmt.Println("\nLinked HTML:")
	fmt.Println(snapshot.HTML)

	// Second render for the same document comes from the snapshot cache
	cached, err := pipeline.Render(input)
	if err != nil {
		log.Fatalf("Failed to re-render document: %v", err)
	}
	fmt.Printf("\nCached render served: %v\n", cached == snapshot)

	// Editing the document invalidates the snapshot
	pipeline.Invalidate(doc.ID)
	fresh, err := pipeline.Render(input)
	if err != nil {
		log.Fatalf("Failed to render after invalidation: %v", err)
	}
	fmt.Printf("Fresh render after invalidation: %v\n", fresh != cached)

	fmt.Println("\n=== Advanced Example Completed Successfully! ===")
}
