// Package pep440 implements Python package versions and version
// specifiers as defined by PEP 440.
//
// # Versions
//
// [Parse] accepts every spelling PEP 440 permits and normalizes it, so
// "1.0RC1", "1.0-rc.1" and "1.0rc1" are the same [Version]. Grammar and
// ordering come from the PyPI system of deps.dev/util/semver. [Compare]
// gives the total order used everywhere else in pylock:
//
//	1.0.dev0 < 1.0a1 < 1.0b2 < 1.0rc1 < 1.0 < 1.0+local < 1.0.post1 < 1!0.1
//
// # Specifiers
//
// A [SpecifierSet] is a conjunction of clauses such as ">=1.0,<2.0" or
// "~=1.4.2". Matching applies the pre-release rule: pre-releases are
// excluded unless a clause names one, the caller allows them, or (for
// [SpecifierSet.Filter]) no final release satisfies the set at all.
// Local version labels are ignored except by "==" clauses that carry one.
package pep440
