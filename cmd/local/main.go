package main

import (
	"log"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"

	// Blank imports register the functions
	_ "github.com/fitglue/polar-ingest/functions/gcs-to-bigquery"
	_ "github.com/fitglue/polar-ingest/functions/polar-to-gcs"
	_ "github.com/fitglue/polar-ingest/functions/polar-webhook"
	shared "github.com/fitglue/polar-ingest/pkg"
)

func main() {
	port := shared.DefaultLocalPort
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}
	if err := funcframework.Start(port); err != nil {
		log.Fatalf("funcframework.Start: %v\n", err)
	}
}
