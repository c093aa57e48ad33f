package scenario

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
)

func newTestRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	t.Cleanup(func() {
		if err := runner.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return runner
}

func steps(kindArgs ...any) []Step {
	out := make([]Step, 0, len(kindArgs)/2)
	for i := 0; i < len(kindArgs); i += 2 {
		out = append(out, Step{Kind: kindArgs[i].(string), Args: kindArgs[i+1].(map[string]any)})
	}
	return out
}

func TestRunScenarioBanLifecycle(t *testing.T) {
	runner := newTestRunner(t, DefaultConfig())

	scenario := &Scenario{
		Name: "temp ban runs out",
		Steps: steps(
			"issue", map[string]any{"player": "player-1", "type": "temp_ban", "reason": "griefing", "duration": "7d", "as": "ban"},
			"expect_state", map[string]any{"punishment": "ban", "state": "active"},
			"expect_duration", map[string]any{"punishment": "ban", "duration": "168h"},
			"expect_state", map[string]any{"punishment": "ban", "state": "expired", "after": "8d"},
			"advance", map[string]any{"by": "8d"},
			"expect_state", map[string]any{"punishment": "ban", "state": "expired"},
		),
	}
	if err := runner.RunScenario(context.Background(), scenario); err != nil {
		t.Fatalf("RunScenario() error = %v", err)
	}
}

func TestRunScenarioPendingUntilStarted(t *testing.T) {
	runner := newTestRunner(t, DefaultConfig())

	scenario := &Scenario{
		Name: "pending ban waits for start",
		Steps: steps(
			"issue", map[string]any{"player": "player-1", "type": "temp_ban", "duration": "24h", "pending": true, "as": "ban"},
			"expect_state", map[string]any{"punishment": "ban", "state": "pending"},
			"advance", map[string]any{"by": "36h"},
			"expect_state", map[string]any{"punishment": "ban", "state": "pending"},
			"mark_started", map[string]any{"punishment": "ban"},
			"expect_state", map[string]any{"punishment": "ban", "state": "active"},
			"advance", map[string]any{"by": "25h"},
			"expect_state", map[string]any{"punishment": "ban", "state": "expired"},
		),
	}
	if err := runner.RunScenario(context.Background(), scenario); err != nil {
		t.Fatalf("RunScenario() error = %v", err)
	}
}

func TestRunScenarioPardonAndRestore(t *testing.T) {
	runner := newTestRunner(t, DefaultConfig())

	scenario := &Scenario{
		Name: "pardon then restore",
		Steps: steps(
			"issue", map[string]any{"player": "player-1", "type": "mute", "duration": "48h", "as": "mute"},
			"note", map[string]any{"punishment": "mute", "text": "verbal warning given first"},
			"modify", map[string]any{"punishment": "mute", "type": "manual_pardon", "reason": "appealed in chat"},
			"expect_state", map[string]any{"punishment": "mute", "state": "pardoned"},
			"modify", map[string]any{"punishment": "mute", "type": "manual_restore", "reason": "pardon was premature"},
			"expect_state", map[string]any{"punishment": "mute", "state": "active"},
			"advance", map[string]any{"by": "49h"},
			"expect_state", map[string]any{"punishment": "mute", "state": "expired"},
		),
	}
	if err := runner.RunScenario(context.Background(), scenario); err != nil {
		t.Fatalf("RunScenario() error = %v", err)
	}
}

func TestRunScenarioAppealReductionsStack(t *testing.T) {
	runner := newTestRunner(t, DefaultConfig())

	scenario := &Scenario{
		Name: "reductions stack",
		Steps: steps(
			"issue", map[string]any{"player": "player-1", "type": "temp_ban", "duration": "240h", "as": "ban"},
			"appeal", map[string]any{"punishment": "ban", "decision": "reduce_percentage", "percentage": 50},
			"expect_duration", map[string]any{"punishment": "ban", "duration": "120h"},
			"appeal", map[string]any{"punishment": "ban", "decision": "reduce_percentage", "percentage": 50},
			"expect_duration", map[string]any{"punishment": "ban", "duration": "60h"},
			"expect_state", map[string]any{"punishment": "ban", "state": "active"},
			"expect_state", map[string]any{"punishment": "ban", "state": "expired", "after": "61h"},
		),
	}
	if err := runner.RunScenario(context.Background(), scenario); err != nil {
		t.Fatalf("RunScenario() error = %v", err)
	}
}

func TestRunScenarioAppealRejectUpholdsPunishment(t *testing.T) {
	runner := newTestRunner(t, DefaultConfig())

	scenario := &Scenario{
		Name: "rejection keeps terms",
		Steps: steps(
			"issue", map[string]any{"player": "player-1", "type": "ban", "reason": "cheating", "as": "ban"},
			"evidence", map[string]any{"punishment": "ban", "url": "https://evidence.example/clip-1", "caption": "killcam"},
			"appeal", map[string]any{"punishment": "ban", "decision": "reject", "comment": "evidence stands"},
			"expect_state", map[string]any{"punishment": "ban", "state": "active"},
			"expect_duration", map[string]any{"punishment": "ban", "permanent": true},
		),
	}
	if err := runner.RunScenario(context.Background(), scenario); err != nil {
		t.Fatalf("RunScenario() error = %v", err)
	}
}

func TestRunScenarioStrictAssertionFails(t *testing.T) {
	runner := newTestRunner(t, DefaultConfig())

	scenario := &Scenario{
		Name: "wrong expectation",
		Steps: steps(
			"issue", map[string]any{"player": "player-1", "type": "temp_ban", "duration": "24h", "as": "ban"},
			"expect_state", map[string]any{"punishment": "ban", "state": "expired"},
		),
	}
	err := runner.RunScenario(context.Background(), scenario)
	if err == nil {
		t.Fatal("RunScenario() error = nil, want assertion failure")
	}
	if !strings.Contains(err.Error(), "step 2 (expect_state)") {
		t.Fatalf("RunScenario() error = %v, want step attribution", err)
	}
}

func TestRunScenarioLenientAssertionContinues(t *testing.T) {
	var buf bytes.Buffer
	runner := newTestRunner(t, Config{
		Assertions: AssertionLenient,
		Logger:     log.New(&buf, "", 0),
	})

	scenario := &Scenario{
		Name: "lenient run",
		Steps: steps(
			"issue", map[string]any{"player": "player-1", "type": "temp_ban", "duration": "24h", "as": "ban"},
			"expect_state", map[string]any{"punishment": "ban", "state": "expired"},
			"expect_state", map[string]any{"punishment": "ban", "state": "active"},
		),
	}
	if err := runner.RunScenario(context.Background(), scenario); err != nil {
		t.Fatalf("RunScenario() error = %v", err)
	}
	if !strings.Contains(buf.String(), "EXPECTATION FAILED") {
		t.Fatalf("log = %q, want unmet expectation logged", buf.String())
	}
}

func TestRunScenarioDefaultsToLastIssuedPunishment(t *testing.T) {
	runner := newTestRunner(t, DefaultConfig())

	scenario := &Scenario{
		Name: "implicit reference",
		Steps: steps(
			"issue", map[string]any{"player": "player-1", "type": "warn", "reason": "spam"},
			"expect_state", map[string]any{"state": "expired"},
		),
	}
	if err := runner.RunScenario(context.Background(), scenario); err != nil {
		t.Fatalf("RunScenario() error = %v", err)
	}
}

func TestRunScenarioRejectsUnknownAlias(t *testing.T) {
	runner := newTestRunner(t, DefaultConfig())

	scenario := &Scenario{
		Name: "bad alias",
		Steps: steps(
			"expect_state", map[string]any{"punishment": "missing", "state": "active"},
		),
	}
	err := runner.RunScenario(context.Background(), scenario)
	if err == nil || !strings.Contains(err.Error(), `unknown punishment alias "missing"`) {
		t.Fatalf("RunScenario() error = %v, want unknown alias", err)
	}
}

func TestRunFileExecutesLuaScript(t *testing.T) {
	path := writeScript(t, "lifecycle.lua", `
local scene = Scenario.new("scripted lifecycle")
scene:issue{player = "player-1", type = "temp_ban", reason = "griefing", duration = "7d", as = "ban"}
scene:expect_state{punishment = "ban", state = "active"}
scene:modify{punishment = "ban", type = "extension", duration = "3d", reason = "repeat offense"}
scene:expect_duration{punishment = "ban", duration = "240h"}
scene:advance("11d")
scene:expect_state{punishment = "ban", state = "expired"}
return scene
`)

	if err := RunFile(context.Background(), DefaultConfig(), path); err != nil {
		t.Fatalf("RunFile() error = %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "7d", want: "168h0m0s"},
		{in: "36h", want: "36h0m0s"},
		{in: "90m", want: "1h30m0s"},
		{in: "1w", wantErr: true},
		{in: "sevend", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseDuration(%q) error = nil, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseDuration(%q) error = %v", tt.in, err)
		}
		if got.String() != tt.want {
			t.Fatalf("parseDuration(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
