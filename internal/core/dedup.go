package core

// IdentifierSet is a set of student identifiers.
type IdentifierSet map[string]struct{}

// NewIdentifierSet returns a set holding ids.
func NewIdentifierSet(ids ...string) IdentifierSet {
	s := make(IdentifierSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id into the set.
func (s IdentifierSet) Add(id string) { s[id] = struct{}{} }

// Contains reports whether id is in the set. A nil set contains nothing.
func (s IdentifierSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of identifiers in the set.
func (s IdentifierSet) Len() int { return len(s) }

// FilterDuplicates drops candidates whose identifier is already persisted or
// appeared earlier in the file. The first occurrence in the file wins; every
// later occurrence is reported against its own line. existing is only read.
func FilterDuplicates(existing IdentifierSet, candidates []CandidateRecord) ([]CandidateRecord, []ValidationError) {
	seenInFile := make(IdentifierSet, len(candidates))

	kept := make([]CandidateRecord, 0, len(candidates))
	var errs []ValidationError

	for _, rec := range candidates {
		switch {
		case existing.Contains(rec.Identifier):
			errs = append(errs, ValidationError{Line: rec.Line, Message: MsgIdentifierExists})
		case seenInFile.Contains(rec.Identifier):
			errs = append(errs, ValidationError{Line: rec.Line, Message: MsgDuplicateInFile})
		default:
			seenInFile.Add(rec.Identifier)
			kept = append(kept, rec)
		}
	}

	return kept, errs
}
