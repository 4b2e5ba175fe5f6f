// Package envsync computes and applies the changes that bring an
// environment in line with a lock.
//
// [Plan] compares locked packages with the [Installed] state and returns
// the actions to take: removals first, then installs and upgrades, each
// sorted by name. [Inspect] asks an interpreter for its marker environment
// and site-packages directories; [ReadInstalled] builds the installed state
// from the dist-info directories found there. [Execute] hands actions to an
// [Installer] one at a time and stops at the first failure.
package envsync
