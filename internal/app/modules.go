package app

import (
	"github.com/specialistvlad/printgraph/internal/registry"
	"github.com/specialistvlad/printgraph/modules/collect"
	"github.com/specialistvlad/printgraph/modules/constant"
	"github.com/specialistvlad/printgraph/modules/env_vars"
	"github.com/specialistvlad/printgraph/modules/http_fetch"
	"github.com/specialistvlad/printgraph/modules/layers"
	"github.com/specialistvlad/printgraph/modules/print"
	"github.com/specialistvlad/printgraph/modules/script"
)

// coreModules is the definitive list of all modules that are compiled into
// the printgraph binary, bound to this App's sink, fetch client and output.
func (a *App) coreModules() []registry.Module {
	return []registry.Module{
		&constant.Module{},
		&collect.Module{},
		&env_vars.Module{},
		&print.Module{Out: a.outW},
		&http_fetch.Module{Client: a.fetch},
		&script.Module{},
		&layers.Module{Sink: a.sink},
	}
}
