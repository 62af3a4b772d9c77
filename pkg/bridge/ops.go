package bridge

import (
	"context"
	"sort"

	"poly/pkg/sovereignty"
)

// hostOp is one entry of the host dispatch table. check runs before run
// and may be nil only for operations that are always allowed.
type hostOp struct {
	check func(s *Server, a Args) error
	run   func(s *Server, ctx context.Context, a Args) (any, error)
}

// hostOps is keyed by the name following SystemPrefix. It is filled in
// init so that entries may refer back to the dispatcher.
var hostOps map[string]hostOp

func init() {
	hostOps = map[string]hostOp{}
	registerDesktopOps()
	registerFsOps()
	registerShellOps()
	registerDBOps()
	registerWindowOps()
	registerNetOps()
	registerAIOps()
	registerUpdaterOps()
}

func register(name string, check func(*Server, Args) error, run func(*Server, context.Context, Args) (any, error)) {
	hostOps[name] = hostOp{check: check, run: run}
}

func needs(kind sovereignty.Kind) func(*Server, Args) error {
	return func(s *Server, _ Args) error {
		return s.perms.Check(sovereignty.Simple(kind))
	}
}

// needsPath checks kind against the path argument after scope aliases are
// expanded.
func needsPath(kind sovereignty.Kind, arg string) func(*Server, Args) error {
	return func(s *Server, a Args) error {
		return s.perms.CheckPath(kind, s.pathArg(a, arg))
	}
}

func needsURL(arg string) func(*Server, Args) error {
	return func(s *Server, a Args) error {
		return s.perms.CheckURL(a.String(arg, 0, ""))
	}
}

func (s *Server) path(p string) string {
	return s.perms.ExpandScope(p)
}

// pathArg is the expanded path argument name, "." when it is missing. The
// permission check and the operation both resolve paths through it.
func (s *Server) pathArg(a Args, name string) string {
	return s.path(a.String(name, 0, "."))
}

// HostOps lists the registered host operation names with SystemPrefix.
func HostOps() []string {
	names := make([]string, 0, len(hostOps))
	for n := range hostOps {
		names = append(names, SystemPrefix+n)
	}
	sort.Strings(names)
	return names
}
