package command

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
	"github.com/bobbyquantum/inkweld-sub009/internal/infra/buildinfo"
)

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "inkweld-sync" {
		t.Errorf("Name = %q", app.Name)
	}

	want := []string{"snapshot", "pending", "sync", "config", "status", "version"}
	if len(app.Commands) != len(want) {
		t.Fatalf("len(Commands) = %d, want %d", len(app.Commands), len(want))
	}
	for i, name := range want {
		if app.Commands[i].Name != name {
			t.Errorf("Commands[%d] = %q, want %q", i, app.Commands[i].Name, name)
		}
	}

	flags := map[string]bool{}
	for _, f := range app.Flags {
		for _, n := range f.Names() {
			flags[n] = true
		}
	}
	for _, name := range []string{"config", "c", "data-dir", "remote", "output", "o", "wide", "w", "verbose", "V"} {
		if !flags[name] {
			t.Errorf("missing global flag %q", name)
		}
	}
}

func TestApp_InvalidOutputFormat(t *testing.T) {
	env := newTestEnv(t, "", "")
	if _, err := env.run("-o", "xml", "version"); err == nil {
		t.Fatal("expected error for unknown output format")
	}
}

func TestGlobalFlags_Overrides(t *testing.T) {
	tests := []struct {
		name  string
		flags GlobalFlags
		want  map[string]any
	}{
		{"none", GlobalFlags{Output: "json"}, map[string]any{}},
		{"data dir", GlobalFlags{DataDir: "/tmp/x"}, map[string]any{"storage.data_dir": "/tmp/x"}},
		{"remote", GlobalFlags{Remote: "https://example.test"}, map[string]any{"remote.base_url": "https://example.test"}},
		{"verbose", GlobalFlags{Verbose: true}, map[string]any{"log.level": "debug"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.flags.overrides()
			if len(got) != len(tt.want) {
				t.Fatalf("overrides = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("overrides[%q] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestProjectFromSnapshotID(t *testing.T) {
	tests := []struct {
		id   string
		want domain.ProjectKey
		ok   bool
	}{
		{"alice:novel:doc-1:01HZX", domain.ProjectKey{Username: "alice", Slug: "novel"}, true},
		{"remote-7", domain.ProjectKey{}, false},
		{":novel:doc-1:01HZX", domain.ProjectKey{}, false},
		{"alice:novel:doc-1", domain.ProjectKey{}, false},
		{"", domain.ProjectKey{}, false},
	}
	for _, tt := range tests {
		got, ok := projectFromSnapshotID(tt.id)
		if ok != tt.ok || got != tt.want {
			t.Errorf("projectFromSnapshotID(%q) = %v, %v; want %v, %v", tt.id, got, ok, tt.want, tt.ok)
		}
	}
}

func TestConfigShow_MasksSecrets(t *testing.T) {
	env := newTestEnv(t, "", "")
	raw, err := os.ReadFile(env.config)
	if err != nil {
		t.Fatal(err)
	}
	body := strings.Replace(string(raw), "  rate_limit: 0\n", "  rate_limit: 0\n  token: sk-abcdef123\n", 1)
	if err := os.WriteFile(env.config, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	for _, args := range [][]string{{"config", "show"}, {"-o", "json", "config", "show"}} {
		out, err := env.run(args...)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		if strings.Contains(out, "sk-abcdef123") {
			t.Errorf("%v leaked the token:\n%s", args, out)
		}
		if !strings.Contains(out, "sk********23") {
			t.Errorf("%v missing masked token:\n%s", args, out)
		}
	}

	out, _ := env.run("config", "show")
	if !strings.Contains(out, "remote.token") || !strings.Contains(out, "snapshot.export_keep") {
		t.Errorf("table output missing keys:\n%s", out)
	}
}

func TestConfigValidate(t *testing.T) {
	env := newTestEnv(t, "", "")

	out, err := env.run("config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "configuration is valid: "+env.config) {
		t.Errorf("output = %q", out)
	}

	bad := filepath.Join(env.dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("snapshot:\n  export_keep: 0\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := env.run("config", "validate", bad); err == nil {
		t.Error("expected error for export_keep 0")
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, "", "")
	env.seed(func(ctx context.Context, rt *Runtime) {
		putSnapshot(t, ctx, rt, "doc-1", "Backup", baseAt, domain.SyncStateUnsynced)
		putSnapshot(t, ctx, rt, "doc-2", "Pushed", baseAt, domain.SyncStateSynced)
	})

	out, err := env.run("-o", "json", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var info statusInfo
	decodeJSON(t, out, &info)
	if info.Snapshots != 2 || info.UnsyncedSnapshots != 1 || info.PendingOperations != 0 {
		t.Errorf("counts = %+v", info)
	}
	if info.Online || info.Remote != "" {
		t.Errorf("offline status = %+v", info)
	}
	if info.DataDir != filepath.Join(env.dir, "data") {
		t.Errorf("DataDir = %q", info.DataDir)
	}
}

func TestStatus_Online(t *testing.T) {
	remote := newMockRemote(t)
	env := newTestEnv(t, remote.URL, "")

	out, err := env.run("-o", "json", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var info statusInfo
	decodeJSON(t, out, &info)
	if !info.Online {
		t.Errorf("Online = false, want true")
	}
	if !remote.requested("GET /api/v1/health") {
		t.Error("health probe not sent")
	}
}

func TestStatus_DataDirFlag(t *testing.T) {
	env := newTestEnv(t, "", "")
	dir := filepath.Join(env.dir, "elsewhere")

	out, err := env.run("--data-dir", dir, "-o", "json", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var info statusInfo
	decodeJSON(t, out, &info)
	if info.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", info.DataDir, dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t, "", "")
	out, err := env.run("-o", "json", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info buildinfo.Info
	decodeJSON(t, out, &info)
	if info.Version != buildinfo.Version || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
}
