/*
Copyright (c) 2023 Purple Clay

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package gitpoller

import "strings"

// BranchPredicate decides whether a full ref name should be polled
type BranchPredicate func(fullRef string) bool

// branchPolicyKind tags which shape of branch selection is active
type branchPolicyKind int

const (
	branchAll branchPolicyKind = iota
	branchList
	branchPredicateKind
	branchOnlyTags
)

// BranchPolicy is the resolved, validated shape of the configured branch
// selection. Exactly one of the kind-specific fields is meaningful for a
// given Kind
type BranchPolicy struct {
	kind      branchPolicyKind
	list      []string
	predicate BranchPredicate
}

// AllBranches polls every ref the remote advertises
func AllBranches() BranchPolicy {
	return BranchPolicy{kind: branchAll}
}

// ExplicitBranches polls exactly the named short branches
func ExplicitBranches(names ...string) BranchPolicy {
	return BranchPolicy{kind: branchList, list: append([]string(nil), names...)}
}

// PredicateBranches polls every remote ref for which predicate returns true
func PredicateBranches(predicate BranchPredicate) BranchPolicy {
	return BranchPolicy{kind: branchPredicateKind, predicate: predicate}
}

// OnlyTags polls every ref under refs/tags/
func OnlyTags() BranchPolicy {
	return BranchPolicy{kind: branchOnlyTags}
}

// usesShortKeys reports whether this policy's cursor keys are short branch
// names (explicit list / legacy single branch) rather than full ref names
func (p BranchPolicy) usesShortKeys() bool {
	return p.kind == branchList
}

// polledRef is one ref this poll cycle decided to track, alongside the
// cursor key it should be recorded under
type polledRef struct {
	// Ref is the full remote ref name, e.g. refs/heads/master
	Ref string

	// Key is the branch-key used in the persisted cursor: either Ref's
	// short name (explicit-list policies) or Ref itself (all/predicate)
	Key string
}

// resolve applies the branch policy against the enumerated remote refs,
// producing a deterministic, ordered list of refs to poll this cycle.
// Explicitly listed branches absent from the remote are silently dropped
func (p BranchPolicy) resolve(remote remoteRefs) []polledRef {
	switch p.kind {
	case branchList:
		var out []polledRef
		for _, name := range p.list {
			ref := "refs/heads/" + name
			if _, ok := remote.shaFor(ref); ok {
				out = append(out, polledRef{Ref: ref, Key: name})
			}
		}
		return out

	case branchOnlyTags:
		var out []polledRef
		for _, r := range remote.order {
			if strings.HasPrefix(r.Ref, "refs/tags/") {
				out = append(out, polledRef{Ref: r.Ref, Key: r.Ref})
			}
		}
		return out

	case branchPredicateKind:
		var out []polledRef
		for _, r := range remote.order {
			if p.predicate != nil && p.predicate(r.Ref) {
				out = append(out, polledRef{Ref: r.Ref, Key: r.Ref})
			}
		}
		return out

	default: // branchAll
		var out []polledRef
		for _, r := range remote.order {
			out = append(out, polledRef{Ref: r.Ref, Key: r.Ref})
		}
		return out
	}
}

// shortBranchName strips a refs/heads/ prefix, returning ref unchanged if
// it does not have one (tags and other namespaces pass through as-is)
func shortBranchName(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}
