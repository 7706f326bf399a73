package apps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/mrctl/internal/testutil/testlog"
	"github.com/danmuck/mrctl/internal/tools"
	"github.com/klauspost/compress/zip"
)

type bundleEntry struct {
	name string
	body string
}

func buildBundle(t *testing.T, entries ...bundleEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("zip create %s: %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatalf("zip write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// repoServer serves <app>/<file> from files, 404 otherwise.
type repoServer struct {
	mu    sync.Mutex
	files map[string][]byte
	hits  []string
}

func (s *repoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/")
	s.hits = append(s.hits, key)
	body, ok := s.files[key]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write(body)
}

func (s *repoServer) hitList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hits...)
}

type preinstallRunner struct {
	cmds        []tools.Command
	sawDescFile bool
	root        string
	result      tools.Result
	err         error
}

func (r *preinstallRunner) Run(_ context.Context, c tools.Command) (tools.Result, error) {
	r.cmds = append(r.cmds, c)
	if _, err := os.Stat(filepath.Join(r.root, PreinstallFile)); err == nil {
		r.sawDescFile = true
	}
	return r.result, r.err
}

func newTestInstaller(t *testing.T, files map[string][]byte) (*Installer, *repoServer, *preinstallRunner, string) {
	t.Helper()
	testlog.Start(t)
	repo := &repoServer{files: files}
	srv := httptest.NewServer(repo)
	t.Cleanup(srv.Close)

	root := t.TempDir()
	runner := &preinstallRunner{root: root}
	inst, err := NewInstaller(InstallerConfig{
		Root:       root,
		RepoURL:    srv.URL + "/",
		HTTPClient: srv.Client(),
		Runner:     runner,
	})
	if err != nil {
		t.Fatalf("new installer: %v", err)
	}
	return inst, repo, runner, root
}

func assertNoArchiveLeft(t *testing.T, root string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(root, "app-*.zip"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("temporary archive left behind: %v", matches)
	}
}

func readJSON(t *testing.T, path string, out any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
}

func weatherBundle(t *testing.T) []byte {
	return buildBundle(t,
		bundleEntry{"metadata.json", `{"name":"Weather"}`},
		bundleEntry{"app/weather.js", "export default {}"},
		bundleEntry{"extras/icons/sun.png", "PNG"},
		bundleEntry{"README.md", "ignored"},
	)
}

func TestInstallWeatherScenario(t *testing.T) {
	inst, _, _, root := newTestInstaller(t, map[string][]byte{
		"weather/app.zip": weatherBundle(t),
	})

	res, err := inst.Install(context.Background(), "weather")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if res.Preinstall != PreinstallAbsent {
		t.Fatalf("unexpected preinstall status: %v", res.Preinstall)
	}

	script, err := os.ReadFile(filepath.Join(root, "ui", "third_party_apps", "weather.js"))
	if err != nil || string(script) != "export default {}" {
		t.Fatalf("script missing: %q %v", script, err)
	}
	if _, err := os.Stat(filepath.Join(root, "ui", "icons", "sun.png")); err != nil {
		t.Fatalf("extra missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "ui", "README.md")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("unrelated entry must be ignored")
	}

	var ids []string
	readJSON(t, filepath.Join(root, "ui", "third_party_apps", ".json"), &ids)
	if len(ids) != 1 || ids[0] != "weather" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	var list []map[string]any
	readJSON(t, filepath.Join(root, "ui", "third_party_apps", "list.json"), &list)
	if len(list) != 1 || list[0]["name"] != "Weather" || len(list[0]) != 1 {
		t.Fatalf("unexpected metadata list: %v", list)
	}
	assertNoArchiveLeft(t, root)
}

func TestInstallTwiceKeepsIdentifierSetUnique(t *testing.T) {
	inst, _, _, root := newTestInstaller(t, map[string][]byte{
		"weather/app.zip": weatherBundle(t),
	})
	for n := 0; n < 2; n++ {
		if _, err := inst.Install(context.Background(), "weather"); err != nil {
			t.Fatalf("install #%d: %v", n+1, err)
		}
	}
	ids := inst.Registry().IDs()
	if len(ids) != 1 || ids[0] != "weather" {
		t.Fatalf("unexpected ids after reinstall: %v", ids)
	}
	if list := inst.Registry().Metadata(); len(list) != 1 {
		t.Fatalf("reinstall must replace the metadata entry, got %d", len(list))
	}
	assertNoArchiveLeft(t, root)
}

func TestInstallMergesWithExistingRegistry(t *testing.T) {
	inst, _, _, _ := newTestInstaller(t, map[string][]byte{
		"clock/app.zip": buildBundle(t,
			bundleEntry{"metadata.json", `{"name":"Clock","version":"2.1","tags":["time"]}`},
			bundleEntry{"app/nested/clock.js", "c"},
			bundleEntry{"app/clock-widget.js", "w"},
			bundleEntry{"app/", ""},
		),
	})
	reg := inst.Registry()
	if _, err := reg.MergeIDs([]string{"weather"}); err != nil {
		t.Fatalf("seed ids: %v", err)
	}
	if err := reg.AddMetadata(Metadata{Name: "Weather"}); err != nil {
		t.Fatalf("seed metadata: %v", err)
	}

	res, err := inst.Install(context.Background(), "clock")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if got := strings.Join(res.Installed, ","); got != "clock,clock-widget" {
		t.Fatalf("unexpected installed ids: %s", got)
	}
	if got := strings.Join(reg.IDs(), ","); got != "weather,clock,clock-widget" {
		t.Fatalf("unexpected merged ids: %s", got)
	}
	list := reg.Metadata()
	if len(list) != 2 || list[1].Name != "Clock" {
		t.Fatalf("unexpected metadata: %+v", list)
	}
	if string(list[1].Extra["version"]) != `"2.1"` {
		t.Fatalf("extra fields must survive: %+v", list[1].Extra)
	}
	if _, err := os.Stat(filepath.Join(AppsDir(inst.root), "clock.js")); err != nil {
		t.Fatalf("nested app file must be flattened: %v", err)
	}
}

func TestInstallRecoversCorruptRegistry(t *testing.T) {
	inst, _, _, root := newTestInstaller(t, map[string][]byte{
		"weather/app.zip": weatherBundle(t),
	})
	dir := AppsDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed ids: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "list.json"), []byte(`[1, 2`), 0o644); err != nil {
		t.Fatalf("seed list: %v", err)
	}

	if _, err := inst.Install(context.Background(), "weather"); err != nil {
		t.Fatalf("install: %v", err)
	}
	if ids := inst.Registry().IDs(); len(ids) != 1 || ids[0] != "weather" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if list := inst.Registry().Metadata(); len(list) != 1 || list[0].Name != "Weather" {
		t.Fatalf("unexpected metadata: %+v", list)
	}
}

func TestInstallKeepsForeignRegistryEntries(t *testing.T) {
	inst, _, _, root := newTestInstaller(t, map[string][]byte{
		"weather/app.zip": weatherBundle(t),
	})
	dir := AppsDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	seedList := `[{"name":"Clock"},"legacy-string",{"name":"Notes"}]`
	if err := os.WriteFile(filepath.Join(dir, "list.json"), []byte(seedList), 0o644); err != nil {
		t.Fatalf("seed list: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".json"), []byte(`["clock", 7]`), 0o644); err != nil {
		t.Fatalf("seed ids: %v", err)
	}

	if _, err := inst.Install(context.Background(), "weather"); err != nil {
		t.Fatalf("install: %v", err)
	}

	var rawList []any
	readJSON(t, filepath.Join(dir, "list.json"), &rawList)
	if len(rawList) != 4 || rawList[1] != "legacy-string" {
		t.Fatalf("foreign metadata entry must be kept in place: %v", rawList)
	}
	var names []string
	for _, m := range inst.Registry().Metadata() {
		names = append(names, m.Name)
	}
	if got := strings.Join(names, ","); got != "Clock,Notes,Weather" {
		t.Fatalf("unexpected metadata names: %s", got)
	}

	var rawIDs []any
	readJSON(t, filepath.Join(dir, ".json"), &rawIDs)
	if len(rawIDs) != 3 || rawIDs[0] != "clock" || rawIDs[1] != float64(7) || rawIDs[2] != "weather" {
		t.Fatalf("foreign id entry must be kept in place: %v", rawIDs)
	}
	if got := strings.Join(inst.Registry().IDs(), ","); got != "clock,weather" {
		t.Fatalf("unexpected ids: %s", got)
	}
}

func TestInstallRegistersOnlyScripts(t *testing.T) {
	inst, _, _, root := newTestInstaller(t, map[string][]byte{
		"weather/app.zip": buildBundle(t,
			bundleEntry{"metadata.json", `{"name":"Weather"}`},
			bundleEntry{"app/weather.js", "export default {}"},
			bundleEntry{"app/style.css", "body{}"},
			bundleEntry{"app/README", "notes"},
		),
	})

	res, err := inst.Install(context.Background(), "weather")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if got := strings.Join(res.Installed, ","); got != "weather" {
		t.Fatalf("unexpected installed ids: %s", got)
	}
	if got := strings.Join(inst.Registry().IDs(), ","); got != "weather" {
		t.Fatalf("assets must not be registered: %s", got)
	}
	css, err := os.ReadFile(filepath.Join(AppsDir(root), "style.css"))
	if err != nil || string(css) != "body{}" {
		t.Fatalf("asset must still be written: %q %v", css, err)
	}
}

func TestInstallFetchFailure(t *testing.T) {
	inst, _, _, root := newTestInstaller(t, map[string][]byte{})
	_, err := inst.Install(context.Background(), "missing")
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	assertNoArchiveLeft(t, root)
	if _, err := os.Stat(filepath.Join(AppsDir(root), ".json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("registry must not be written on fetch failure")
	}
}

func TestInstallMalformedMetadataCleansUp(t *testing.T) {
	inst, _, _, root := newTestInstaller(t, map[string][]byte{
		"bad/app.zip": buildBundle(t,
			bundleEntry{"app/bad.js", "x"},
			bundleEntry{"metadata.json", `{"name":`},
		),
	})
	_, err := inst.Install(context.Background(), "bad")
	if !errors.Is(err, ErrMetadata) {
		t.Fatalf("expected ErrMetadata, got %v", err)
	}
	assertNoArchiveLeft(t, root)
}

func TestInstallRejectsEscapingExtras(t *testing.T) {
	inst, _, _, root := newTestInstaller(t, map[string][]byte{
		"evil/app.zip": buildBundle(t,
			bundleEntry{"extras/../../escaped.txt", "x"},
		),
	})
	// The zip reader may refuse the name itself; either way nothing lands.
	if _, err := inst.Install(context.Background(), "evil"); err == nil {
		t.Fatalf("expected escaping entry to fail the install")
	}
	if _, err := os.Stat(filepath.Join(root, "escaped.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("escaping entry must not be written")
	}
	assertNoArchiveLeft(t, root)
}

func TestInstallSkipsEmptyExtrasPath(t *testing.T) {
	inst, _, _, root := newTestInstaller(t, map[string][]byte{
		"plain/app.zip": buildBundle(t,
			bundleEntry{"extras/", ""},
			bundleEntry{"extras/css/", ""},
			bundleEntry{"extras/css/theme.css", "body{}"},
		),
	})
	res, err := inst.Install(context.Background(), "plain")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if res.ExtraFiles != 1 || res.Metadata != nil || len(res.Installed) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(root, "ui", "css", "theme.css")); err != nil {
		t.Fatalf("extra missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(AppsDir(root), "list.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("no metadata means no list.json write")
	}
}

func TestInstallRejectsInvalidAppID(t *testing.T) {
	inst, repo, _, _ := newTestInstaller(t, map[string][]byte{})
	for _, id := range []string{"", "..", "a/b", `a\b`, "a?b"} {
		if _, err := inst.Install(context.Background(), id); !errors.Is(err, ErrInvalidApp) {
			t.Fatalf("id=%q expected ErrInvalidApp, got %v", id, err)
		}
	}
	if hits := repo.hitList(); len(hits) != 0 {
		t.Fatalf("invalid ids must not reach the repository: %v", hits)
	}
}

func TestPreinstallPresentRunsCommand(t *testing.T) {
	inst, _, runner, root := newTestInstaller(t, map[string][]byte{
		"weather/preinstall.json": []byte(`{
			// install native deps first
			"shell": "bash",
			"shellFlags": "-e -c",
			"command": "echo ready",
		}`),
		"weather/app.zip": weatherBundle(t),
	})
	res, err := inst.Install(context.Background(), "weather")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if res.Preinstall != PreinstallPresent {
		t.Fatalf("unexpected status: %v", res.Preinstall)
	}
	if len(runner.cmds) != 1 {
		t.Fatalf("expected one preinstall command, got %+v", runner.cmds)
	}
	c := runner.cmds[0]
	if c.Name != "bash" || strings.Join(c.Args, " ") != "-e -c echo ready" || c.Dir != inst.root {
		t.Fatalf("unexpected command: %+v", c)
	}
	if !runner.sawDescFile {
		t.Fatalf("descriptor must be on disk while the command runs")
	}
	if _, err := os.Stat(filepath.Join(root, PreinstallFile)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("descriptor must be removed afterwards")
	}
}

func TestPreinstallStderrFailsInstall(t *testing.T) {
	inst, repo, runner, root := newTestInstaller(t, map[string][]byte{
		"weather/preinstall.json": []byte(`{"shellFlags":["-c"],"command":"apt-get install foo"}`),
		"weather/app.zip":         weatherBundle(t),
	})
	runner.result = tools.Result{Stderr: []byte("E: permission denied")}

	_, err := inst.Install(context.Background(), "weather")
	if !errors.Is(err, ErrPreinstall) {
		t.Fatalf("expected ErrPreinstall, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, PreinstallFile)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("descriptor must be removed after failure")
	}
	for _, hit := range repo.hitList() {
		if hit == "weather/app.zip" {
			t.Fatalf("bundle must not be fetched after preinstall failure")
		}
	}
}

func TestPreinstallExitCodeFailsInstall(t *testing.T) {
	inst, _, runner, _ := newTestInstaller(t, map[string][]byte{
		"weather/preinstall.json": []byte(`{"command":"false"}`),
		"weather/app.zip":         weatherBundle(t),
	})
	runner.result = tools.Result{ExitCode: 2}
	runner.err = errors.New("exit status 2")
	if _, err := inst.Install(context.Background(), "weather"); !errors.Is(err, ErrPreinstall) {
		t.Fatalf("expected ErrPreinstall, got %v", err)
	}
}

func TestPreinstallMalformedIsSkipped(t *testing.T) {
	inst, _, runner, _ := newTestInstaller(t, map[string][]byte{
		"weather/preinstall.json": []byte(`{"shell": 12}`),
		"weather/app.zip":         weatherBundle(t),
	})
	res, err := inst.Install(context.Background(), "weather")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if res.Preinstall != PreinstallMalformed {
		t.Fatalf("unexpected status: %v", res.Preinstall)
	}
	if len(runner.cmds) != 0 {
		t.Fatalf("malformed descriptor must not run: %+v", runner.cmds)
	}
}

func TestLookupPreinstallTriState(t *testing.T) {
	inst, _, _, _ := newTestInstaller(t, map[string][]byte{
		"ok/preinstall.json":    []byte(`{"command":"true"}`),
		"empty/preinstall.json": []byte(`{"shell":"sh"}`),
	})
	cases := map[string]PreinstallStatus{
		"ok":      PreinstallPresent,
		"empty":   PreinstallMalformed,
		"missing": PreinstallAbsent,
	}
	for app, want := range cases {
		got := inst.LookupPreinstall(context.Background(), app)
		if got.Status != want {
			t.Fatalf("app=%s status=%v want %v (err=%v)", app, got.Status, want, got.Err)
		}
	}
}

func TestPreinstallArgvDefaults(t *testing.T) {
	name, args := Preinstall{Command: "echo hi"}.Argv()
	if name == "" || len(args) != 2 || args[1] != "echo hi" {
		t.Fatalf("unexpected default argv: %s %v", name, args)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	m, err := ParseMetadata([]byte(`{"name":"Weather","icon":"sun.png","size":{"w":2}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Name != "Weather" || len(m.Extra) != 2 {
		t.Fatalf("unexpected metadata: %+v", m)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back["name"] != "Weather" || back["icon"] != "sun.png" {
		t.Fatalf("unexpected round trip: %s", data)
	}

	for _, bad := range []string{`[]`, `"x"`, `{"name":`, ``} {
		if _, err := ParseMetadata([]byte(bad)); !errors.Is(err, ErrMetadata) {
			t.Fatalf("input %q expected ErrMetadata, got %v", bad, err)
		}
	}
}

func TestMetadataLabel(t *testing.T) {
	cases := map[string]string{
		`{"name":"Weather","title":"W"}`: "Weather",
		`{"title":"Notes","id":"notes"}`: "Notes",
		`{"id":"clock"}`:                 "clock",
		`{"title":7,"version":"1.0"}`:    "",
		`{}`:                             "",
	}
	for in, want := range cases {
		m, err := ParseMetadata([]byte(in))
		if err != nil {
			t.Fatalf("parse %s: %v", in, err)
		}
		if got := m.Label(); got != want {
			t.Fatalf("label of %s = %q, want %q", in, got, want)
		}
	}
}

func TestRegistryIDsRoundTrip(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry(filepath.Join(t.TempDir(), "apps"))
	if ids := reg.IDs(); len(ids) != 0 {
		t.Fatalf("expected empty registry, got %v", ids)
	}
	want := []string{"b", "a", "c"}
	if _, err := reg.MergeIDs(append(want, "a", "")); err != nil {
		t.Fatalf("merge: %v", err)
	}
	got := reg.IDs()
	sort.Strings(got)
	sort.Strings(want)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("round trip mismatch: %v want %v", got, want)
	}
}
