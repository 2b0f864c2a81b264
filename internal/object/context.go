package object

import "github.com/jitrealm/jitrealm/internal/scripting"

// BuildContext returns the context table passed as a method's first
// argument when its code unit declares it takes one (spec §4.G's dispatch
// rule) — every call site builds it the same way so "self" always
// resolves to the instance being invoked.
func BuildContext(objectID string) scripting.CtxTable {
	return scripting.CtxTable{"self": scripting.StrArg(objectID)}
}
