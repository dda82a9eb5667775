package loader

import (
	"encoding/json"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/skiff/internal/config"
)

// decodeLua evaluates a Lua config file in a sandboxed state and
// decodes the resulting table into cfg. The chunk either returns a
// table or assigns one to the global "config".
//
// The state has no io, os, debug, or package libraries, and the
// load-from-anywhere builtins are removed, so a config file cannot
// touch the filesystem or spawn anything.
func decodeLua(path string, data []byte, cfg *config.Config) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ParseError{Path: path, Message: fmt.Sprintf("lua panic: %v", r)}
		}
	}()

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}

	if err := L.DoString(string(data)); err != nil {
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}

	var value lua.LValue = lua.LNil
	if L.GetTop() > 0 {
		value = L.Get(-1)
	}
	if value == lua.LNil {
		value = L.GetGlobal("config")
	}
	table, ok := value.(*lua.LTable)
	if !ok {
		return &ParseError{Path: path, Message: "config chunk must return a table or set the global \"config\""}
	}

	// Round-trip through JSON so the table lands on the same tagged
	// fields the other formats use.
	raw, err := json.Marshal(luaToGo(table, map[*lua.LTable]bool{}))
	if err != nil {
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// luaToGo converts a Lua value to the Go shape json.Marshal expects.
// Tables with contiguous 1..N integer keys become slices, everything
// else becomes a string-keyed map. visited breaks reference cycles.
func luaToGo(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return tableToGo(v, visited)
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	isArray := true
	maxN := 0
	count := 0
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if kn, ok := k.(lua.LNumber); ok {
			n := int(kn)
			if float64(n) == float64(kn) && n > 0 {
				if n > maxN {
					maxN = n
				}
				return
			}
		}
		isArray = false
	})

	if isArray && maxN > 0 && count == maxN {
		arr := make([]any, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = luaToGo(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = fmt.Sprintf("%v", float64(kv))
		default:
			return
		}
		m[key] = luaToGo(v, visited)
	})
	return m
}
