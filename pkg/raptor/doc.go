// Package raptor is the public entry point for the hierarchical
// semantic code index: chunk, embed, cluster into a tree, and query it
// with a centroid-guided descent that falls back to flat chunk search.
//
// Construct an Engine with functional options, then Index a project and
// Query it:
//
//	eng, err := raptor.New(raptor.WithCacheDir(cacheDir))
//	if err != nil {
//	    return err
//	}
//	if err := eng.Index(ctx, projectPath); err != nil {
//	    return err
//	}
//	hits, err := eng.Query(ctx, "where is the retry logic", 5)
package raptor
