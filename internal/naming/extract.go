package naming

import (
	"github.com/Englacial/ismip-indexing/internal/domain"
)

// defaultFrequency is the temporal coverage of ISMIP6 projection output.
const defaultFrequency = "yearly"

// Extract parses one object key into a FileRecord, repairing documented
// naming defects along the way. It is a pure function over the key, the
// injected vocabulary, and the static rule table.
//
// Extraction never fails with an error: keys that cannot be parsed or whose
// tokens are not in the vocabulary yield a record with Available=false and a
// reason code, so every discovered object stays visible in the index.
func Extract(key string, vocab *domain.Vocabulary) domain.FileRecord {
	rec := domain.FileRecord{URI: key}

	tokens, ok := Tokenize(key)
	if !ok {
		rec.Reason = domain.ReasonUnparseablePath
		return rec
	}
	rec.Frequency = defaultFrequency

	tokens, fired := ApplyRules(tokens, vocab)

	rec.IceSheet = tokens.IceSheet
	rec.Institution = tokens.Institution
	rec.Model = tokens.Model
	rec.Experiment = tokens.Experiment
	rec.Variable = tokens.Variable
	rec.TimeRange = tokens.TimeRange
	rec.Corrected = len(fired) > 0
	rec.Corrections = fired

	switch {
	case !vocab.IceSheets[tokens.IceSheet]:
		rec.Reason = domain.ReasonUnknownIceSheet
	case !vocab.KnowsInstitution(tokens.Institution) || !modelBelongsTo(vocab, tokens.Institution, tokens.Model):
		rec.Reason = domain.ReasonUnknownModel
	case !vocab.KnowsVariable(tokens.Variable):
		rec.Reason = domain.ReasonUnknownVariable
	default:
		rec.Available = true
	}
	return rec
}
