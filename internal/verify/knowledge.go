package verify

import (
	"github.com/ppiankov/credence/internal/domain"
	"github.com/ppiankov/credence/internal/model"
)

// KnowledgeBase confirms or contradicts claims against the known facts of a domain pack
type KnowledgeBase struct {
	packs *domain.Registry
}

// NewKnowledgeBase creates a knowledge base over the registry's packs
func NewKnowledgeBase(packs *domain.Registry) *KnowledgeBase {
	return &KnowledgeBase{packs: packs}
}

// Lookup returns the fact that decides the claim and whether it verifies (true) or
// contradicts (false) it. ok is false when no fact speaks about the claim.
//
// Any applicable fact that agrees verifies the claim. Otherwise the first applicable
// numeric fact contradicts it. Categorical facts never contradict: a right the pack
// does not list is unknown, not false.
func (kb *KnowledgeBase) Lookup(domainName string, claim model.Claim) (fact domain.Fact, verified bool, ok bool) {
	pack := kb.packs.Lookup(domainName)
	if pack == nil {
		return domain.Fact{}, false, false
	}

	var contradiction *domain.Fact
	for i := range pack.Facts {
		f := pack.Facts[i]
		if !f.Applies(claim) {
			continue
		}
		if f.Matches(claim) {
			return f, true, true
		}
		if f.Numeric() && contradiction == nil {
			contradiction = &pack.Facts[i]
		}
	}

	if contradiction != nil {
		return *contradiction, false, true
	}
	return domain.Fact{}, false, false
}
