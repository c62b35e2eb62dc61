package nodeclient

import (
	"context"
	"time"
)

// BuiltinInfo describes the node for the built-in info handler.
type BuiltinInfo struct {
	Name    string
	Version string
	Started time.Time
}

// Builtins returns the handlers every shardmesh node serves:
//
//	ping  replies {pong: true, name, sent}
//	echo  replies with the request content
//	info  replies {name, version, uptimeMs, started}
func Builtins(info BuiltinInfo) map[string]Handler {
	return map[string]Handler{
		"ping": HandlerFunc(func(_ context.Context, req *Request) {
			_ = req.Reply(map[string]any{
				"pong": true,
				"name": info.Name,
				"sent": time.Now(),
			})
		}),
		"echo": HandlerFunc(func(_ context.Context, req *Request) {
			_ = req.Reply(req.Content)
		}),
		"info": HandlerFunc(func(_ context.Context, req *Request) {
			_ = req.Reply(map[string]any{
				"name":     info.Name,
				"version":  info.Version,
				"uptimeMs": time.Since(info.Started).Milliseconds(),
				"started":  info.Started,
			})
		}),
	}
}
