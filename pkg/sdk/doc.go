// Package recherche embeds the person search adapter in a Go program: index
// person documents, search them by wildcard, fuzzy or composed strategy, generate
// synthetic people and ramp load against the backend without running the HTTP service.
//
// The client runs on Redis with the search module, or on an embedded bleve index:
//
//	client, _ := recherche.New(ctx, recherche.WithBleve(""))
//	defer client.Close()
//
//	people, _ := client.Generate(ctx, 100)
//	_, _ = client.BulkIndex(ctx, people)
//	hits, _ := client.Search(ctx, recherche.Composed, "schmidt")
//
// A load ramp indexes generated people at increasing concurrency:
//
//	report, _ := client.LoadTest(ctx, recherche.LoadConfig{BatchSize: 1000, Levels: 5, Step: 10})
package recherche
