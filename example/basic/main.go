package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/canon"
	"github.com/siherrmann/canon/helper"
	"github.com/siherrmann/canon/model"
)

const sampleBody = `Postgres is a powerful open source database.
Many teams run Postgres behind their content platforms because it
combines relational storage with full text search. K8s takes care of
scheduling the database pods across the cluster.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	c, err := canon.NewCanon(dbConfig)
	if err != nil {
		log.Fatalf("Failed to create canon: %v", err)
	}
	defer c.Close()

	// Build a small dictionary of canonical entities
	postgres := &model.Entity{
		Canonical:  "PostgreSQL",
		Type:       model.TypeTechnology,
		Definition: "Open source relational database",
		SameAs:     model.StringSlice{"https://www.wikidata.org/wiki/Q192490"},
	}
	if err := c.Store.CreateEntity(postgres); err != nil {
		log.Fatalf("Failed to create entity: %v", err)
	}
	fmt.Printf("Created entity %q with ID %d\n", postgres.Canonical, postgres.ID)

	kubernetes := &model.Entity{
		Canonical: "Kubernetes",
		Type:      model.TypeTechnology,
	}
	if err := c.Store.CreateEntity(kubernetes); err != nil {
		log.Fatalf("Failed to create entity: %v", err)
	}

	// Aliases resolve informal spellings back to the canonical name
	if _, err := c.Store.AddAlias(postgres.ID, "Postgres", false, "common short form"); err != nil {
		log.Fatalf("Failed to add alias: %v", err)
	}
	if _, err := c.Store.AddAlias(kubernetes.ID, "K8s", true, "avoid the numeronym in copy"); err != nil {
		log.Fatalf("Failed to add alias: %v", err)
	}

	// Detect which entities a document talks about
	doc := &model.Document{
		ID:    1,
		Title: "Running databases in production",
		Body:  sampleBody,
	}

	matches, err := c.Detector.DetectAndRecord(doc)
	if err != nil {
		log.Fatalf("Failed to detect entities: %v", err)
	}

	fmt.Printf("\nFound %d entity matches:\n", len(matches))
	for _, match := range matches {
		fmt.Printf("- entity %d matched %q (confidence %.2f, via alias: %v)\n",
			match.EntityID, match.MatchedTerm, match.Confidence, match.ViaAlias)
	}

	// Validate the copy against the dictionary
	report, err := c.Validator.Validate(doc)
	if err != nil {
		log.Fatalf("Failed to validate document: %v", err)
	}

	fmt.Printf("\nGovernance score: %d\n", report.Score)
	for _, issue := range report.Issues {
		fmt.Printf("- [%s] %s\n", issue.Severity, issue.Message)
	}
	for _, suggestion := range report.Suggestions {
		fmt.Printf("- suggest replacing %q with %q\n", suggestion.From, suggestion.To)
	}

	fmt.Println("\nBasic example completed successfully!")
}
