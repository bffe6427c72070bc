package state

// MergeFiles reconciles a FilesMap with a FileUpdate delta. It is pure: the
// inputs are never mutated and the result shares no map structure with them.
//
// Rules:
//   - nil update: the current map is returned as a copy (empty map if nil).
//   - nil current: the result is seeded from the update, dropping deletions.
//   - otherwise: copy current, then delete nil-valued keys and upsert the rest.
//
// When two branches update the same path, whichever delta is applied last
// wins. Same-path concurrent writes are a caller-level design error; the
// reducer does not detect or resolve them.
func MergeFiles(current FilesMap, update FileUpdate) FilesMap {
	if update == nil {
		if current == nil {
			return FilesMap{}
		}
		return current.Clone()
	}

	out := make(FilesMap, len(current)+len(update))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range update {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = *v
	}
	return out
}
