// Package featureviz turns map tile features into renderer primitives
// according to a style rule set.
//
// # Basic Usage
//
//	rules, err := featureviz.LoadStyle("roads.yaml", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session := featureviz.NewSession(rules, featureviz.DefaultSessionOptions())
//	session.AddTileFeatureLayer(primary)
//	if err := session.Run(); err != nil {
//	    log.Fatal(err)
//	}
//	out := session.CollectOutputs()
//
// # Cross-tile Relations
//
// Relation rules may point at features in tiles that were never added to
// the session. Run does not block for them. Instead the session reports
// what it is missing, and the caller loads it and hands the locations back:
//
//	for round := 0; round < maxRounds; round++ {
//	    requests := session.ExternalReferences()
//	    if len(requests) == 0 {
//	        break
//	    }
//	    resolutions, layers := lookup(requests) // caller-side I/O
//	    for _, l := range layers {
//	        session.AddTileFeatureLayer(l)
//	    }
//	    if err := session.ProcessResolvedExternalReferences(resolutions); err != nil {
//	        log.Println(err)
//	    }
//	}
//
// Requests that are never answered leave their relations unrendered.
//
// # Outputs
//
// CollectOutputs returns the non-empty batches in category order and the
// merge-cell aggregates per bucket. Primitives are created by the Backend
// in SessionOptions; the default records items in memory.
//
// A Session is not safe for concurrent use. The RuleSet and tile layers
// are only read, and may be shared between sessions.
package featureviz
