// Package scenario runs Lua lifecycle scripts against an in-process
// punishment engine. Scripts build a Scenario value describing issuances,
// modifications, appeal decisions, clock advances, and state expectations;
// the runner executes the steps in order against a throwaway ledger.
package scenario

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const scenarioTypeName = "scenario"

// Scenario is a named, ordered list of lifecycle steps.
type Scenario struct {
	Name  string
	Steps []Step
}

// Step is one scripted action or expectation.
type Step struct {
	Kind string
	Args map[string]any
}

// LoadScenarioFromFile evaluates a Lua script and returns the Scenario it
// built. The script must return the Scenario value.
func LoadScenarioFromFile(path string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	registerLuaTypes(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

func registerLuaTypes(state *lua.State) {
	registerScenarioType(state)
	registerScenarioConstructor(state)
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, scenarioConstructor, 0)
	state.SetGlobal("Scenario")
}

var scenarioConstructor = []lua.RegistryFunction{
	{Name: "new", Function: scenarioNew},
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	scenario := &Scenario{Name: name}
	state.PushUserData(scenario)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "issue", Function: scenarioIssue},
	{Name: "mark_started", Function: scenarioMarkStarted},
	{Name: "modify", Function: scenarioModify},
	{Name: "appeal", Function: scenarioAppeal},
	{Name: "note", Function: scenarioNote},
	{Name: "evidence", Function: scenarioEvidence},
	{Name: "advance", Function: scenarioAdvance},
	{Name: "expect_state", Function: scenarioExpectState},
	{Name: "expect_duration", Function: scenarioExpectDuration},
}

func scenarioIssue(state *lua.State) int {
	return appendTableStep(state, "issue")
}

func scenarioMarkStarted(state *lua.State) int {
	return appendTableStep(state, "mark_started")
}

func scenarioModify(state *lua.State) int {
	return appendTableStep(state, "modify")
}

func scenarioAppeal(state *lua.State) int {
	return appendTableStep(state, "appeal")
}

func scenarioNote(state *lua.State) int {
	return appendTableStep(state, "note")
}

func scenarioEvidence(state *lua.State) int {
	return appendTableStep(state, "evidence")
}

// scenarioAdvance accepts scene:advance("24h") and scene:advance{by = "24h"}.
func scenarioAdvance(state *lua.State) int {
	scenario := checkScenario(state)
	var args map[string]any
	if state.TypeOf(2) == lua.TypeString {
		by, _ := state.ToString(2)
		args = map[string]any{"by": by}
	} else {
		lua.CheckType(state, 2, lua.TypeTable)
		args = tableToMap(state, 2)
	}
	appendStep(scenario, "advance", args)
	return 0
}

func scenarioExpectState(state *lua.State) int {
	return appendTableStep(state, "expect_state")
}

func scenarioExpectDuration(state *lua.State) int {
	return appendTableStep(state, "expect_duration")
}

func appendTableStep(state *lua.State, kind string) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, kind, tableToMap(state, 2))
	return 0
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func appendStep(scenario *Scenario, kind string, data map[string]any) int {
	if scenario == nil {
		return -1
	}
	if data == nil {
		data = map[string]any{}
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: data})
	return len(scenario.Steps) - 1
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

// tableToGo converts a Lua table to a Go slice when it is a dense 1-based
// array, and to a map otherwise.
func tableToGo(state *lua.State, index int) any {
	if state.TypeOf(index) != lua.TypeTable {
		return nil
	}

	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}

	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
