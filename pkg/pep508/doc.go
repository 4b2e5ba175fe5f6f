// Package pep508 models dependency specifications as defined by PEP 508:
// requirements, extras and environment markers.
//
// [ParseRequirement] splits a requirement string with the deps.dev PyPI
// parser and then parses its pieces into typed values: a canonical name,
// sorted canonical extras, a [pep440.SpecifierSet] and a [Marker].
//
// Markers are evaluated against an [Environment], the set of interpreter
// and platform attributes of the target, and the extras requested of the
// package that declared the requirement:
//
//	env := pep508.ForPython("3.12")
//	req := pep508.MustParseRequirement(`pysocks>=1.5; extra == "socks"`)
//	req.Applies(env, []string{"socks"}) // true
//	req.Applies(env, nil)               // false
//
// A Parser memoizes parsing in bounded LRU caches. Metadata readers keep one
// per run because the same requirement strings recur across thousands of
// package versions.
package pep508
