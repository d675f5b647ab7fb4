package plandb

// Purge tears the whole database down (§5 Purging): the global is_purging
// flag is raised for the duration so cascade-delete notifications and most
// invariant checks stand down, the root set — tokens without masters,
// objects without parents, global variables — is walked to collect every
// reachable entity into a batch, and only then is the batch discarded.
// Collecting before discarding (garbageCollect below) means the walk never
// has to cope with a map it is currently deleting from out from under
// itself.
func (db *PlanDatabase) Purge() {
	db.registry.setPurging(true)
	defer db.registry.setPurging(false)

	tokKeys, objKeys, globalNames := db.garbageCollect()

	for _, k := range tokKeys {
		delete(db.tokens, k)
		db.registry.discard(k)
	}
	for _, k := range objKeys {
		ob, ok := db.objects[k]
		if !ok {
			continue
		}
		delete(db.objects, k)
		base := ob.Base()
		list := db.objectsByType[base.TypeName]
		for i, o := range list {
			if o == ob {
				db.objectsByType[base.TypeName] = append(list[:i], list[i+1:]...)
				break
			}
		}
		db.registry.discard(k)
	}
	for _, name := range globalNames {
		v := db.globals[name]
		delete(db.globals, name)
		db.engine.DeleteVariable(v)
	}
}

// garbageCollect walks the root set and returns every entity reachable from
// it, grouped by kind, without mutating any index.
func (db *PlanDatabase) garbageCollect() (tokenKeys, objectKeys []Key, globalNames []string) {
	for _, t := range db.tokens {
		if t.Master == nil {
			tokenKeys = append(tokenKeys, collectTokenSubtree(t)...)
		}
	}
	for _, ob := range db.objects {
		base := ob.Base()
		if base.parent == nil {
			objectKeys = append(objectKeys, collectObjectSubtree(base)...)
		}
	}
	for name := range db.globals {
		globalNames = append(globalNames, name)
	}
	return
}

func collectTokenSubtree(t *Token) []Key {
	out := []Key{t.key}
	for _, s := range t.Slaves {
		out = append(out, collectTokenSubtree(s)...)
	}
	return out
}

func collectObjectSubtree(o *Object) []Key {
	out := []Key{o.key}
	for _, c := range o.components {
		out = append(out, collectObjectSubtree(c)...)
	}
	return out
}
