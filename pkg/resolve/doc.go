// Package resolve turns root requirements into a consistent set of pinned
// releases.
//
// # Search
//
// [Resolver] runs a backtracking search over an explicit stack of decision
// points. Each step picks the unresolved name with the fewest remaining
// candidates, breaking ties by the order in which the project declares its
// direct requirements and then by name. Candidates are tried newest first
// (or the preferred version first when re-locking). Pinning a candidate
// merges its requirements into the partial assignment through a worklist;
// a merge that leaves some name without any acceptable release, or that
// excludes an already pinned version, rejects the candidate.
//
// When every candidate of a name is rejected, the search jumps back to the
// most recent decision that contributed to the failure and excludes the
// choice made there, skipping decisions that had nothing to do with it.
// When no such decision remains the resolution is impossible and the
// returned [ConflictError] lists, for each conflict, the smallest set of
// requirements found that cannot be satisfied together.
//
// # Result
//
// A successful run yields a [Graph]: one [Candidate] per name plus the
// requirement edges that led to it. The graph is immutable.
//
//	r := resolve.New(p, resolve.Options{Env: pep508.ForPython("3.12")})
//	g, err := r.Resolve(ctx, roots)
//	var conflict *resolve.ConflictError
//	if errors.As(err, &conflict) {
//	    for _, c := range conflict.Conflicts {
//	        fmt.Println(c)
//	    }
//	}
package resolve
