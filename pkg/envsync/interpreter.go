package envsync

import (
	"context"
	"encoding/json"
	"os/exec"
	"slices"
	"strings"

	"github.com/matzehuels/pylock/pkg/pep508"
)

// probe prints the marker environment and the site-packages directories of
// the running interpreter as one JSON object.
const probe = `
import json, os, platform, sys, sysconfig
impl = sys.implementation
iv = impl.version
version = "%d.%d.%d" % (iv.major, iv.minor, iv.micro)
if iv.releaselevel != "final":
    version += iv.releaselevel[0] + str(iv.serial)
paths = sysconfig.get_paths()
print(json.dumps({
    "env": {
        "implementation_name": impl.name,
        "implementation_version": version,
        "os_name": os.name,
        "platform_machine": platform.machine(),
        "platform_python_implementation": platform.python_implementation(),
        "platform_release": platform.release(),
        "platform_system": platform.system(),
        "platform_version": platform.version(),
        "python_full_version": platform.python_version(),
        "python_version": ".".join(platform.python_version_tuple()[:2]),
        "sys_platform": sys.platform,
    },
    "site": [paths["purelib"], paths["platlib"]],
}))
`

// Interpreter describes a Python interpreter.
type Interpreter struct {
	Path         string
	Env          pep508.Environment
	SitePackages []string
}

// Inspect runs python to read its marker environment and site-packages
// directories. Failures are [errors.ErrCodeEnvironmentUnreadable].
func Inspect(ctx context.Context, python string) (*Interpreter, error) {
	if python == "" {
		python = "python3"
	}
	out, err := exec.CommandContext(ctx, python, "-c", probe).Output()
	if err != nil {
		return nil, unreadable(err, "cannot run %s", python)
	}
	return parseProbe(python, out)
}

func parseProbe(python string, out []byte) (*Interpreter, error) {
	var raw struct {
		Env  pep508.Environment `json:"env"`
		Site []string           `json:"site"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, unreadable(err, "unexpected output from %s", python)
	}
	if raw.Env.PythonVersion == "" {
		return nil, unreadable(nil, "%s reported no python_version", python)
	}
	in := &Interpreter{Path: python, Env: raw.Env}
	for _, dir := range raw.Site {
		dir = strings.TrimSpace(dir)
		if dir != "" && !slices.Contains(in.SitePackages, dir) {
			in.SitePackages = append(in.SitePackages, dir)
		}
	}
	return in, nil
}

// Installed reads the distributions installed for the interpreter.
func (in *Interpreter) Installed(ctx context.Context) (Installed, error) {
	return ReadInstalled(ctx, in.SitePackages...)
}
