// Package lua runs hotkey actions written in Lua.
//
// A script both binds combos and handles them:
//
//	hotkey.bind("leftctrl+leftalt+t", "terminal", { cmd = "foot" })
//	hotkey.bind("leftmeta+q", "window.close")
//
//	handlers = {}
//	handlers["terminal"] = function(ctx, id)
//	    hotkey.log("spawning " .. ctx.cmd)
//	end
//
//	function on_hotkey(name, ctx, id)
//	    hotkey.log("unhandled " .. name)
//	end
//
// When an event fires, Dispatcher calls handlers[name] if present and
// otherwise the global on_hotkey. A value returned by the handler becomes
// the reply handed back to the tracker.
//
// Only the base, table, string and math libraries are opened; io, os,
// debug and package are not. Reloading a script first unbinds every combo
// the previous run bound.
//
// gopher-lua's LState is not goroutine-safe. State serializes access with a
// mutex; callers that also touch the hotkey registry from other goroutines
// must serialize those calls themselves.
package lua
