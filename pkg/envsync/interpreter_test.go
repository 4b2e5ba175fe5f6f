package envsync

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/pylock/pkg/errors"
)

func TestParseProbe(t *testing.T) {
	out := []byte(`{"env": {"python_version": "3.12", "python_full_version": "3.12.4", "sys_platform": "linux", "os_name": "posix"},
"site": ["/venv/lib/python3.12/site-packages", "/venv/lib/python3.12/site-packages"]}`)
	in, err := parseProbe("python3", out)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if in.Env.PythonFullVersion != "3.12.4" || in.Env.SysPlatform != "linux" {
		t.Errorf("Env = %+v", in.Env)
	}
	if diff := cmp.Diff([]string{"/venv/lib/python3.12/site-packages"}, in.SitePackages); diff != "" {
		t.Errorf("SitePackages mismatch (-want +got):\n%s", diff)
	}
}

func TestParseProbeRejects(t *testing.T) {
	for _, out := range []string{`not json`, `{"env": {}, "site": []}`} {
		if _, err := parseProbe("python3", []byte(out)); !errors.Is(err, errors.ErrCodeEnvironmentUnreadable) {
			t.Errorf("parseProbe(%q) err = %v, want ENVIRONMENT_UNREADABLE", out, err)
		}
	}
}
