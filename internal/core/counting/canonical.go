package counting

// Canonicalize turns a raw submitted ranking into the form that is stored and
// tallied. Duplicates keep their first position, unknown candidates are
// dropped, and the result is cut at maxRank when it is set. Nothing is an
// error here: clients may send anything and the ballot is whatever survives.
func Canonicalize(raw []CandidateID, valid map[CandidateID]struct{}, maxRank *int) Ballot {
	limit := 0
	if maxRank != nil && *maxRank > 0 {
		limit = *maxRank
	}

	seen := make(map[CandidateID]struct{}, len(raw))
	out := make(Ballot, 0, len(raw))
	for _, id := range raw {
		if limit > 0 && len(out) >= limit {
			break
		}
		if _, dup := seen[id]; dup {
			continue
		}
		if _, ok := valid[id]; !ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// CandidateSet builds the validity set Canonicalize expects.
func CandidateSet(ids []CandidateID) map[CandidateID]struct{} {
	set := make(map[CandidateID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
