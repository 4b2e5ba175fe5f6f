// Package build is the boundary to PEP 517 build backends.
//
// Resolution needs the dependency metadata of releases that only ship a
// source distribution. A [Backend] turns such an artifact into core
// metadata: name, version and requirements. The backend is a black box;
// its failures surface as [Error] carrying the BUILD_BACKEND_FAILURE code
// and are never retried.
//
// Two backends exist. [Static] reads the PKG-INFO file that modern sdists
// carry and refuses when dependencies are computed by setup.py. [Command]
// runs an external hook (for example a Python helper that calls
// prepare_metadata_for_build_wheel) and reads METADATA from its standard
// output. [Chain] tries backends in order.
package build
