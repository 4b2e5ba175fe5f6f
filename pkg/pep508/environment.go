package pep508

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Environment holds the values of the PEP 508 marker variables for one
// target interpreter and platform.
type Environment struct {
	OSName                       string `toml:"os_name" json:"os_name"`
	SysPlatform                  string `toml:"sys_platform" json:"sys_platform"`
	PlatformMachine              string `toml:"platform_machine" json:"platform_machine"`
	PlatformPythonImplementation string `toml:"platform_python_implementation" json:"platform_python_implementation"`
	PlatformRelease              string `toml:"platform_release" json:"platform_release"`
	PlatformSystem               string `toml:"platform_system" json:"platform_system"`
	PlatformVersion              string `toml:"platform_version" json:"platform_version"`
	PythonVersion                string `toml:"python_version" json:"python_version"`
	PythonFullVersion            string `toml:"python_full_version" json:"python_full_version"`
	ImplementationName           string `toml:"implementation_name" json:"implementation_name"`
	ImplementationVersion        string `toml:"implementation_version" json:"implementation_version"`
}

// markerVariables lists every variable a marker may reference, besides
// "extra" which is bound per evaluation.
var markerVariables = []string{
	"implementation_name",
	"implementation_version",
	"os_name",
	"platform_machine",
	"platform_python_implementation",
	"platform_release",
	"platform_system",
	"platform_version",
	"python_full_version",
	"python_version",
	"sys_platform",
}

// Lookup returns the value of a marker variable.
func (e Environment) Lookup(name string) (string, bool) {
	switch name {
	case "os_name":
		return e.OSName, true
	case "sys_platform":
		return e.SysPlatform, true
	case "platform_machine":
		return e.PlatformMachine, true
	case "platform_python_implementation":
		return e.PlatformPythonImplementation, true
	case "platform_release":
		return e.PlatformRelease, true
	case "platform_system":
		return e.PlatformSystem, true
	case "platform_version":
		return e.PlatformVersion, true
	case "python_version":
		return e.PythonVersion, true
	case "python_full_version":
		return e.PythonFullVersion, true
	case "implementation_name":
		return e.ImplementationName, true
	case "implementation_version":
		return e.ImplementationVersion, true
	}
	return "", false
}

// ForPython returns an environment for a CPython interpreter of the given
// version ("3.12" or "3.12.4") running on the host operating system.
func ForPython(version string) Environment {
	full := version
	if strings.Count(full, ".") == 1 {
		full += ".0"
	}
	short := full
	if parts := strings.SplitN(full, ".", 3); len(parts) >= 2 {
		short = parts[0] + "." + parts[1]
	}
	env := Environment{
		PlatformPythonImplementation: "CPython",
		ImplementationName:           "cpython",
		ImplementationVersion:        full,
		PythonVersion:                short,
		PythonFullVersion:            full,
	}
	switch runtime.GOOS {
	case "windows":
		env.OSName, env.SysPlatform, env.PlatformSystem = "nt", "win32", "Windows"
	case "darwin":
		env.OSName, env.SysPlatform, env.PlatformSystem = "posix", "darwin", "Darwin"
	default:
		env.OSName, env.SysPlatform, env.PlatformSystem = "posix", runtime.GOOS, capitalize(runtime.GOOS)
	}
	env.PlatformMachine = machine(runtime.GOOS, runtime.GOARCH)
	return env
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// machine maps GOARCH onto what platform.machine() reports on each OS.
func machine(goos, goarch string) string {
	switch goarch {
	case "amd64":
		if goos == "windows" {
			return "AMD64"
		}
		return "x86_64"
	case "arm64":
		if goos == "linux" {
			return "aarch64"
		}
		return "arm64"
	case "386":
		if goos == "windows" {
			return "x86"
		}
		return "i686"
	}
	return goarch
}

// Merge returns e with every non-empty field of o applied on top.
func (e Environment) Merge(o Environment) Environment {
	set := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	set(&e.OSName, o.OSName)
	set(&e.SysPlatform, o.SysPlatform)
	set(&e.PlatformMachine, o.PlatformMachine)
	set(&e.PlatformPythonImplementation, o.PlatformPythonImplementation)
	set(&e.PlatformRelease, o.PlatformRelease)
	set(&e.PlatformSystem, o.PlatformSystem)
	set(&e.PlatformVersion, o.PlatformVersion)
	set(&e.PythonVersion, o.PythonVersion)
	set(&e.PythonFullVersion, o.PythonFullVersion)
	set(&e.ImplementationName, o.ImplementationName)
	set(&e.ImplementationVersion, o.ImplementationVersion)
	return e
}

// Key returns a short stable digest of the environment, suitable for
// namespacing cached data that depends on marker evaluation.
func (e Environment) Key() string {
	d := xxhash.New()
	for _, name := range markerVariables {
		v, _ := e.Lookup(name)
		_, _ = d.WriteString(name)
		_, _ = d.WriteString("=")
		_, _ = d.WriteString(v)
		_, _ = d.WriteString("\n")
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
