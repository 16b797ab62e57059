package migration

import "github.com/marcoskonzen/trustedge/internal/world"

func containsID(ids []world.ID, id world.ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []world.ID, id world.ID) []world.ID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func appendUniqueID(ids []world.ID, id world.ID) []world.ID {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

func containsDigest(digests []string, digest string) bool {
	for _, d := range digests {
		if d == digest {
			return true
		}
	}
	return false
}
