package app

import "github.com/specialistvlad/livexpr"

// coreModules is the list of modules compiled into the livexpr binary. Their
// names are what policy files may refer to.
var coreModules = []livexpr.Module{
	&demoModule{},
}
