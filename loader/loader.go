// Package loader reads rulesets from a Lua DSL directory, a single Lua file,
// or a JSON or YAML document, and validates them before the engine sees them.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
	"gopkg.in/yaml.v3"

	"github.com/nathoo/statecore/types"
)

// rulesetFile is executed before every other file in a Lua directory.
const rulesetFile = "ruleset.lua"

// collector accumulates Lua definitions during file execution.
type collector struct {
	ruleset   *lua.LTable
	stats     []rawDef
	resources []rawDef
	rules     []rawDef
}

// Load reads the ruleset at path, validates it and returns it. A directory
// is read as Lua sources; files are dispatched by extension. Validation
// warnings are logged, errors are returned as *ValidationError.
func Load(path string, log zerolog.Logger) (*types.Ruleset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading ruleset %s: %w", path, err)
	}

	var rs *types.Ruleset
	if info.IsDir() {
		rs, err = loadLuaDir(path)
	} else {
		rs, err = loadFile(path)
	}
	if err != nil {
		return nil, err
	}

	warnings, err := Validate(rs)
	for _, w := range warnings {
		log.Warn().Str("ruleset", rs.ID).Msg(w)
	}
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func loadFile(path string) (*types.Ruleset, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".lua":
		return loadLua([]string{path})
	case ".json", ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading ruleset %s: %w", path, err)
		}
		if ext == ".json" {
			return DecodeJSON(data)
		}
		return DecodeYAML(data)
	default:
		return nil, fmt.Errorf("unsupported ruleset format %q", ext)
	}
}

func loadLuaDir(dir string) (*types.Ruleset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading ruleset directory %s: %w", dir, err)
	}
	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			luaFiles = append(luaFiles, e.Name())
		}
	}
	if len(luaFiles) == 0 {
		return nil, fmt.Errorf("no .lua files found in %s", dir)
	}
	luaFiles = sortedLuaFiles(luaFiles)
	for i, f := range luaFiles {
		luaFiles[i] = filepath.Join(dir, f)
	}
	return loadLua(luaFiles)
}

// loadLua executes files in a sandboxed VM and compiles what they defined.
// The VM is discarded afterwards.
func loadLua(files []string) (*types.Ruleset, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	openSafeLibs(L)
	sandbox(L)

	coll := &collector{}
	registerAPI(L, coll)

	for _, path := range files {
		if err := L.DoFile(path); err != nil {
			return nil, fmt.Errorf("executing %s: %w", filepath.Base(path), err)
		}
	}

	rs, err := compile(coll)
	if err != nil {
		return nil, fmt.Errorf("compiling ruleset: %w", err)
	}
	return rs, nil
}

// sortedLuaFiles puts ruleset.lua first, the rest alphabetical.
func sortedLuaFiles(files []string) []string {
	sort.Strings(files)
	out := make([]string, 0, len(files))
	for _, f := range files {
		if f == rulesetFile {
			out = append([]string{f}, out...)
		} else {
			out = append(out, f)
		}
	}
	return out
}

// enabledFlags reads only the rules' enabled flags so that an absent flag
// can be told apart from false.
type enabledFlags struct {
	Rules []struct {
		Enabled *bool `json:"enabled" yaml:"enabled"`
	} `json:"rules" yaml:"rules"`
}

// DecodeJSON decodes a ruleset document in the JSON interchange layout.
func DecodeJSON(data []byte) (*types.Ruleset, error) {
	var rs types.Ruleset
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decoding json ruleset: %w", err)
	}
	var flags enabledFlags
	if err := json.Unmarshal(data, &flags); err != nil {
		return nil, fmt.Errorf("decoding json ruleset: %w", err)
	}
	finish(&rs, flags)
	return &rs, nil
}

// DecodeYAML decodes a ruleset document written in YAML.
func DecodeYAML(data []byte) (*types.Ruleset, error) {
	var rs types.Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decoding yaml ruleset: %w", err)
	}
	var flags enabledFlags
	if err := yaml.Unmarshal(data, &flags); err != nil {
		return nil, fmt.Errorf("decoding yaml ruleset: %w", err)
	}
	finish(&rs, flags)
	return &rs, nil
}

// finish fills the defaults a document may leave out: names fall back to
// ids, stat types are inferred from defaults and rules are enabled unless
// they say otherwise.
func finish(rs *types.Ruleset, flags enabledFlags) {
	for i := range rs.Stats {
		finishStat(&rs.Stats[i])
	}
	for i := range rs.Resources {
		finishStat(&rs.Resources[i].StatDef)
		rs.Resources[i].Type = types.ValueNumber
	}
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if i < len(flags.Rules) && flags.Rules[i].Enabled == nil {
			r.Enabled = true
		}
		if r.Name == "" {
			r.Name = r.ID
		}
	}
}

func finishStat(def *types.StatDef) {
	if def.Name == "" {
		def.Name = def.ID
	}
	if def.Type == "" {
		def.Type = inferType(def.Default)
	}
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes globals that reach outside the VM or break determinism.
func sandbox(L *lua.LState) {
	for _, name := range []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	} {
		L.SetGlobal(name, lua.LNil)
	}
	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		tbl.RawSetString("randomseed", lua.LNil)
		tbl.RawSetString("random", lua.LNil)
	}
}
