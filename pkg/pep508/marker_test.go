package pep508

import (
	"testing"
)

var linux312 = Environment{
	OSName:                       "posix",
	SysPlatform:                  "linux",
	PlatformMachine:              "x86_64",
	PlatformPythonImplementation: "CPython",
	PlatformSystem:               "Linux",
	PythonVersion:                "3.12",
	PythonFullVersion:            "3.12.4",
	ImplementationName:           "cpython",
	ImplementationVersion:        "3.12.4",
}

func TestMarkerEvaluate(t *testing.T) {
	tests := []struct {
		marker string
		extras []string
		want   bool
	}{
		{`python_version >= "3.8"`, nil, true},
		{`python_version < "3.10"`, nil, false},
		{`python_full_version == "3.12.*"`, nil, true},
		{`python_version ~= "3.10"`, nil, true},
		{`"3.8" <= python_version`, nil, true},
		{`sys_platform == "linux"`, nil, true},
		{`sys_platform != "linux"`, nil, false},
		{`os_name == "nt" or sys_platform == "linux"`, nil, true},
		{`os_name == "nt" and sys_platform == "linux"`, nil, false},
		{`(os_name == "nt" or os_name == "posix") and platform_machine == "x86_64"`, nil, true},
		{`"x86" in platform_machine`, nil, true},
		{`"arm" not in platform_machine`, nil, true},
		{`platform_system == "Linux" and python_version >= "3.9" and implementation_name == "cpython"`, nil, true},
		{`extra == "socks"`, nil, false},
		{`extra == "socks"`, []string{"socks"}, true},
		{`extra != "socks"`, []string{"socks"}, false},
		{`python_version >= '3.8' and (extra == 'test' or extra == 'dev')`, []string{"dev"}, true},
		{`sys.platform == 'linux'`, nil, true},
		{`python_version>="3.8"and os_name=="posix"`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.marker, func(t *testing.T) {
			m, err := ParseMarker(tt.marker)
			if err != nil {
				t.Fatalf("ParseMarker(%q): %v", tt.marker, err)
			}
			if got := m.Evaluate(linux312, tt.extras); got != tt.want {
				t.Errorf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseMarkerRejects(t *testing.T) {
	for _, input := range []string{
		``,
		`python_version`,
		`python_version >= `,
		`unknown_var == "1"`,
		`"a" == "b"`,
		`python_version >= "3.8" and`,
		`(python_version >= "3.8"`,
		`python_version >= "3.8" garbage`,
		`python_version >= "3.8`,
		`extra >= "x"`,
	} {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseMarker(input); err == nil {
				t.Errorf("ParseMarker(%q) succeeded, want error", input)
			}
		})
	}
}

func TestMarkerString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`python_version>='3.8'`, `python_version >= "3.8"`},
		{`a_b == 'x'`, ``},
		{`os_name == 'nt' or sys_platform == 'win32'`, `os_name == "nt" or sys_platform == "win32"`},
		{`(os_name == 'nt' or sys_platform == 'win32') and python_version < '3.9'`, `(os_name == "nt" or sys_platform == "win32") and python_version < "3.9"`},
		{`os_name == 'nt' and sys_platform == 'win32' or python_version < '3.9'`, `os_name == "nt" and sys_platform == "win32" or python_version < "3.9"`},
	}
	for _, tt := range tests {
		m, err := ParseMarker(tt.input)
		if tt.want == "" {
			if err == nil {
				t.Errorf("ParseMarker(%q) succeeded, want error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseMarker(%q): %v", tt.input, err)
		}
		if got := m.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		// Normalized text must parse back to the same form.
		again, err := ParseMarker(m.String())
		if err != nil || again.String() != tt.want {
			t.Errorf("reparse of %q = %v, %v", tt.want, again, err)
		}
	}
}

func TestNilMarker(t *testing.T) {
	var m *Marker
	if !m.Evaluate(linux312, nil) {
		t.Error("nil marker should always hold")
	}
	if m.String() != "" {
		t.Error("nil marker should print empty")
	}
	if m.MentionsExtra() {
		t.Error("nil marker mentions no extra")
	}
}

func TestOr(t *testing.T) {
	a, _ := ParseMarker(`sys_platform == "win32"`)
	b, _ := ParseMarker(`python_version < "3.9"`)

	if Or(a, nil) != nil {
		t.Error("Or with an unconditional operand must be unconditional")
	}
	if got := Or(a, a).String(); got != `sys_platform == "win32"` {
		t.Errorf("Or(a, a) = %q", got)
	}
	got := Or(a, b).String()
	if got != `python_version < "3.9" or sys_platform == "win32"` {
		t.Errorf("Or(a, b) = %q", got)
	}
	if Or(b, a).String() != got {
		t.Error("Or must be order independent")
	}
}

func TestMentionsExtra(t *testing.T) {
	m, _ := ParseMarker(`python_version >= "3" and extra == "x"`)
	if !m.MentionsExtra() {
		t.Error("expected MentionsExtra")
	}
	m, _ = ParseMarker(`python_version >= "3"`)
	if m.MentionsExtra() {
		t.Error("unexpected MentionsExtra")
	}
}

func TestEnvironmentKeyStable(t *testing.T) {
	if linux312.Key() != linux312.Key() {
		t.Fatal("Key must be deterministic")
	}
	other := linux312
	other.PythonVersion = "3.11"
	if other.Key() == linux312.Key() {
		t.Error("different environments should have different keys")
	}
}

func TestEnvironmentMerge(t *testing.T) {
	base := ForPython("3.11")
	if base.PythonVersion != "3.11" || base.PythonFullVersion != "3.11.0" {
		t.Fatalf("ForPython = %+v", base)
	}
	merged := base.Merge(Environment{SysPlatform: "win32"})
	if merged.SysPlatform != "win32" || merged.PythonVersion != "3.11" {
		t.Errorf("Merge = %+v", merged)
	}
}

func TestWithoutExtra(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`extra == "x"`, ``},
		{`extra == "x" and sys_platform == "win32"`, `sys_platform == "win32"`},
		{`python_version < "3.9" and extra == "x" and sys_platform == "win32"`, `python_version < "3.9" and sys_platform == "win32"`},
		{`sys_platform == "win32" or extra == "x"`, ``},
		{`(extra == "a" or extra == "b") and os_name == "nt"`, `os_name == "nt"`},
		{`(os_name == "nt" or sys_platform == "win32") and extra == "x"`, `os_name == "nt" or sys_platform == "win32"`},
		{`python_version >= "3.8"`, `python_version >= "3.8"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m, err := ParseMarker(tt.input)
			if err != nil {
				t.Fatalf("ParseMarker: %v", err)
			}
			got := m.WithoutExtra()
			if tt.want == "" {
				if got != nil {
					t.Errorf("WithoutExtra = %q, want nil", got)
				}
				return
			}
			if got.String() != tt.want {
				t.Errorf("WithoutExtra = %q, want %q", got, tt.want)
			}
			if got.MentionsExtra() {
				t.Error("result still mentions extra")
			}
		})
	}
}
