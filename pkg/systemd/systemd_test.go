package systemd

import (
	"strings"
	"testing"
)

func TestUnitFile(t *testing.T) {
	t.Parallel()
	u, err := UnitFile("/usr/local/bin/routined", "/home/me/.routined/config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Type=notify",
		"ExecStart=/usr/local/bin/routined serve --config /home/me/.routined/config.yaml",
		"WantedBy=default.target",
	} {
		if !strings.Contains(u, want) {
			t.Fatalf("unit missing %q:\n%s", want, u)
		}
	}
}

func TestStatusFound(t *testing.T) {
	t.Parallel()
	if (Status{LoadState: "not-found"}).Found() || (Status{}).Found() {
		t.Fatal("unknown units must not be found")
	}
	if !(Status{LoadState: "loaded"}).Found() {
		t.Fatal("loaded unit must be found")
	}
}

func TestNotifyOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	if sent, err := Ready(); sent || err != nil {
		t.Fatalf("Ready outside systemd = %v, %v", sent, err)
	}
}
