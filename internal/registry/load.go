package registry

import (
	"os"
	"path/filepath"
	"strings"
)

var kindDirs = map[string]Kind{
	"SQL":      KindSQL,
	"Proxy":    KindProxy,
	"Webhooks": KindWebhook,
	"Files":    KindFile,
	"Static":   KindStatic,
}

// loadResult carries one kind's successfully parsed definitions plus the
// parse failures it skipped (logged by the caller, never fatal).
type loadResult struct {
	defs    []*Definition
	errs    []error
}

// discoverAndLoad walks root/{SQL|Proxy|Webhooks|Files|Static}/[{namespace}/]{name}/entity.json
// and returns one loadResult per kind directory actually present.
func discoverAndLoad(root string, globalAllowList map[string]bool) map[Kind]*loadResult {
	out := map[Kind]*loadResult{}
	for dirName, kind := range kindDirs {
		kindRoot := filepath.Join(root, dirName)
		info, err := os.Stat(kindRoot)
		if err != nil || !info.IsDir() {
			continue
		}
		out[kind] = loadKind(kindRoot, kind, globalAllowList)
	}
	return out
}

// loadKind finds every entity.json under kindRoot. Endpoints live either
// directly under kindRoot/{name}/entity.json or namespaced one level
// deeper: kindRoot/{namespace}/{name}/entity.json. We detect namespacing
// by checking whether the directory itself contains entity.json.
func loadKind(kindRoot string, kind Kind, globalAllowList map[string]bool) *loadResult {
	res := &loadResult{}
	seen := map[string]bool{} // duplicate-name detection within this kind

	entries, err := os.ReadDir(kindRoot)
	if err != nil {
		res.errs = append(res.errs, err)
		return res
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dirPath := filepath.Join(kindRoot, e.Name())
		if _, err := os.Stat(filepath.Join(dirPath, "entity.json")); err == nil {
			// kindRoot/{name}/entity.json — no namespace.
			loadOneEndpoint(dirPath, "", kind, globalAllowList, res, seen)
			continue
		}
		// kindRoot/{namespace}/{name}/entity.json
		nsEntries, err := os.ReadDir(dirPath)
		if err != nil {
			res.errs = append(res.errs, err)
			continue
		}
		for _, ns := range nsEntries {
			if !ns.IsDir() {
				continue
			}
			endpointDir := filepath.Join(dirPath, ns.Name())
			loadOneEndpoint(endpointDir, e.Name(), kind, globalAllowList, res, seen)
		}
	}
	return res
}

func loadOneEndpoint(dir, namespace string, kind Kind, globalAllowList map[string]bool, res *loadResult, seen map[string]bool) {
	raw, err := os.ReadFile(filepath.Join(dir, "entity.json"))
	if err != nil {
		res.errs = append(res.errs, err)
		return
	}
	def, err := parseEntity(kind, namespace, raw, globalAllowList)
	if err != nil {
		res.errs = append(res.errs, err)
		return
	}
	key := strings.ToLower(namespace + "/" + def.Name)
	if seen[key] {
		res.errs = append(res.errs, duplicateNameError(kind, def.Name))
		return
	}
	seen[key] = true
	res.defs = append(res.defs, def)
}

func duplicateNameError(kind Kind, name string) error {
	return &duplicateEndpointError{kind: kind, name: name}
}

type duplicateEndpointError struct {
	kind Kind
	name string
}

func (e *duplicateEndpointError) Error() string {
	return "duplicate endpoint name " + e.name + " within kind " + string(e.kind)
}
