// Package gitignore implements the .gitignore pattern grammar documented at
// https://git-scm.com/docs/gitignore, shared by the two places filepick
// needs to decide "does this path count": the Scanner's per-directory walk
// filter and the GitMonitor's status enumeration, both of which honor
// the .gitignore chain.
//
// Supported grammar:
//   - Basic glob segments (*.log, temp/)
//   - Wildcards (*, ?, **)
//   - Root-anchored patterns (/build)
//   - Negation (!keep.log)
//   - Directory-only patterns (build/)
//   - Per-directory bases, so a nested .gitignore only ever shadows paths
//     under its own directory
//
// A Matcher is built once per ignore chain and reused across a scan or a
// git status enumeration:
//
//	m := gitignore.New()
//	m.AddFromFile(filepath.Join(base, ".gitignore"), "")
//	m.AddPattern("*.log")
//
//	if m.Match("build/error.log", false) {
//	    // excluded from the index / reported as ignored
//	}
//
// Nested .gitignore files attach their patterns scoped to a base so they
// never leak outside their own subtree:
//
//	m.AddFromFile(filepath.Join(base, "vendor/.gitignore"), "vendor")
package gitignore
