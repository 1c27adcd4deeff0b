package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cuemby/zoneweaver-core/pkg/executor"
)

type fakeTask struct {
	id       string
	progress []int
}

func (f *fakeTask) ID() string { return f.id }

func (f *fakeTask) UpdateProgress(ctx context.Context, percent int, info string) error {
	f.progress = append(f.progress, percent)
	return nil
}

func TestAll_RegistersEveryFamily(t *testing.T) {
	h := New(executor.New(5*time.Second, 0), nil, nil)
	ops := h.All()

	want := []string{
		"service_start", "create_vnic", "create_ip_address", "pkg_install",
		"user_create", "file_write", "artifact_download_url",
		"system_host_shutdown", "dhcp_host_add", "nat_rule_add",
		"zone_create", "zone_start", "discover",
	}
	for _, op := range want {
		if _, ok := ops[op]; !ok {
			t.Errorf("expected operation %q to be registered", op)
		}
	}
}

func TestCategories_ZoneLifecycleHasNoCategory(t *testing.T) {
	h := New(executor.New(5*time.Second, 0), nil, nil)
	cats := h.Categories()

	for _, op := range []string{"zone_create", "zone_start", "zone_stop", "discover"} {
		if _, ok := cats[op]; ok {
			t.Errorf("expected %q to have no category, got one", op)
		}
	}
	if cats["pkg_install"] != "package_management" {
		t.Errorf("expected pkg_install to be package_management, got %q", cats["pkg_install"])
	}
}

func TestFileWrite_WritesContent(t *testing.T) {
	h := New(executor.New(5*time.Second, 0), nil, nil)
	dir := t.TempDir()
	path := dir + "/config.conf"

	metadata, _ := json.Marshal(map[string]any{"path": path, "content": "hello", "mode": 0644})
	result := h.fileWrite(context.Background(), metadata, &fakeTask{id: "t1"})
	if !result.OK {
		t.Fatalf("expected OK, got %+v", result)
	}
}

func TestFileWrite_MissingPath(t *testing.T) {
	h := New(executor.New(5*time.Second, 0), nil, nil)
	metadata, _ := json.Marshal(map[string]any{"content": "hello"})
	result := h.fileWrite(context.Background(), metadata, &fakeTask{id: "t1"})
	if result.OK {
		t.Fatal("expected failure when path is missing")
	}
}

func TestDecodeMetadata_EmptyIsRejected(t *testing.T) {
	var dst struct{}
	res, ok := decodeMetadata(nil, &dst)
	if ok {
		t.Fatal("expected decodeMetadata to reject empty metadata")
	}
	if res.OK {
		t.Error("expected a failed Result")
	}
}

func TestLockZone_RejectsSecondLockOnSameZone(t *testing.T) {
	h := New(executor.New(5*time.Second, 0), nil, nil)
	if !h.lockZone("web01") {
		t.Fatal("expected first lock to succeed")
	}
	if h.lockZone("web01") {
		t.Fatal("expected second lock on the same zone to fail")
	}
	h.unlockZone("web01")
	if !h.lockZone("web01") {
		t.Fatal("expected lock to succeed again after unlock")
	}
}

func TestValidateIdentifier_AcceptsConservativeCharset(t *testing.T) {
	for _, v := range []string{"web01", "svc:/network/ssh:default", "net0/v4static", "10.0.0.1/24", "a,b,c"} {
		if err := validateIdentifier("field", v); err != nil {
			t.Errorf("expected %q to be accepted, got %v", v, err)
		}
	}
}

func TestValidateIdentifier_RejectsShellAndZonecfgMetacharacters(t *testing.T) {
	for _, v := range []string{"foo; rm -rf /", "foo`whoami`", "foo$(whoami)", "foo|bar", "foo\nbar", "foo'bar"} {
		if err := validateIdentifier("field", v); err == nil {
			t.Errorf("expected %q to be rejected", v)
		}
	}
}

// TestZoneModify_RejectsInjectionInPropertyValue reproduces a crafted
// zonecfg property value that tries to smuggle extra subcommands (adding a
// network interface) into the batch string passed as a single shellquote
// argument to zonecfg.
func TestZoneModify_RejectsInjectionInPropertyValue(t *testing.T) {
	h := New(executor.New(5*time.Second, 0), nil, nil)
	metadata, _ := json.Marshal(map[string]any{
		"zone_name": "web01",
		"properties": map[string]string{
			"some-prop": "x; add net; set physical=foo0; end; commit",
		},
	})

	result := h.zoneModify(context.Background(), metadata, &fakeTask{id: "t1"})
	if result.OK {
		t.Fatal("expected zoneModify to reject a property value containing zonecfg command separators")
	}
}

func TestTemplateApply_RejectsNonArrayMetadata(t *testing.T) {
	h := New(executor.New(5*time.Second, 0), nil, nil)
	metadata, _ := json.Marshal(map[string]any{"not": "an array"})
	result := h.templateApply(context.Background(), metadata, &fakeTask{id: "t1"})
	if result.OK {
		t.Fatal("expected failure for non-array metadata")
	}
}

func TestTemplateApply_RendersEachEntry(t *testing.T) {
	h := New(executor.New(5*time.Second, 0), nil, nil)
	dir := t.TempDir()

	entries := []map[string]any{
		{"path": dir + "/a.conf", "template": "name={{.Name}}", "vars": map[string]string{"Name": "a"}},
		{"path": dir + "/b.conf", "template": "name={{.Name}}", "vars": map[string]string{"Name": "b"}},
	}
	metadata, _ := json.Marshal(entries)

	task := &fakeTask{id: "t1"}
	result := h.templateApply(context.Background(), metadata, task)
	if !result.OK {
		t.Fatalf("expected OK, got %+v", result)
	}
	if len(task.progress) != 2 {
		t.Errorf("expected 2 progress updates, got %d", len(task.progress))
	}
}
