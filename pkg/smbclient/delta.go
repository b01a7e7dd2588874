package smbclient

// Delta compares two listings by key. deleted holds indexes into old of
// entries missing from cur, inserted holds indexes into cur of entries
// missing from old. Both are ascending.
func Delta[T any, K comparable](old, cur []T, key func(T) K) (deleted, inserted []int) {
	inOld := make(map[K]struct{}, len(old))
	for _, v := range old {
		inOld[key(v)] = struct{}{}
	}
	inCur := make(map[K]struct{}, len(cur))
	for i, v := range cur {
		k := key(v)
		inCur[k] = struct{}{}
		if _, ok := inOld[k]; !ok {
			inserted = append(inserted, i)
		}
	}
	for i, v := range old {
		if _, ok := inCur[key(v)]; !ok {
			deleted = append(deleted, i)
		}
	}
	return deleted, inserted
}

// DirectoryDelta compares two listings of the same directory by name.
func DirectoryDelta(old, cur []File) (deleted, inserted []int) {
	return Delta(old, cur, func(f File) string { return f.Name })
}
