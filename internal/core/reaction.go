package core

// upsertReaction returns reactions with r applied: an existing reaction from the
// same user is replaced in place, otherwise r is appended. The input is not modified.
func upsertReaction(reactions []Reaction, r Reaction) []Reaction {
	out := make([]Reaction, len(reactions), len(reactions)+1)
	copy(out, reactions)

	for i := range out {
		if out[i].UserID == r.UserID {
			out[i] = r
			return out
		}
	}
	return append(out, r)
}
