// Package combat implements the pairing bookkeeping of spec §4.H: which
// instances are fighting whom, and when their next round is due. It holds
// no damage or hit-resolution logic — that lives in world code; this
// package only tracks pairing state and round timing.
package combat

import (
	"math/rand"
	"time"

	"github.com/jitrealm/jitrealm/internal/clock"
)

// Tracker tracks active combat pairings and round timing.
type Tracker struct {
	clk           clock.Clock
	roundInterval time.Duration
	fleeChance    int // percent, 0-100

	target     map[string]string    // attacker -> current target
	nextRound  map[string]time.Time // attacker -> next round due time
	rng        *rand.Rand
}

// NewTracker returns a tracker driven by clk, with the given round
// interval and flee chance (percent, per config document Combat group).
func NewTracker(clk clock.Clock, roundInterval time.Duration, fleeChancePercent int) *Tracker {
	return &Tracker{
		clk:           clk,
		roundInterval: roundInterval,
		fleeChance:    fleeChancePercent,
		target:        make(map[string]string),
		nextRound:     make(map[string]time.Time),
		rng:           rand.New(rand.NewSource(1)),
	}
}

// Start pairs attacker against defender, making the pairing mutual so
// isInCombat(a) ∧ isInCombat(b) ∧ target(a)=b ∧ target(b)=a holds for both
// sides (spec §8 invariant 4). Scheduling the first round one interval from
// now. Calling Start again while already in combat simply retargets — it
// does not reset the round timer (spec §4.H: switching targets doesn't
// grant a free extra round).
func (t *Tracker) Start(attacker, defender string) {
	t.target[attacker] = defender
	t.target[defender] = attacker
	if _, ok := t.nextRound[attacker]; !ok {
		t.nextRound[attacker] = t.clk.Now().Add(t.roundInterval)
	}
	if _, ok := t.nextRound[defender]; !ok {
		t.nextRound[defender] = t.clk.Now().Add(t.roundInterval)
	}
}

// End removes attacker and its current target from combat entirely, so
// neither side is left pointing at a partner who is no longer fighting.
func (t *Tracker) End(attacker string) {
	defender, hadTarget := t.target[attacker]
	delete(t.target, attacker)
	delete(t.nextRound, attacker)
	if hadTarget {
		delete(t.target, defender)
		delete(t.nextRound, defender)
	}
}

// Restore sets attacker's pairing and next-round time directly, without
// deriving the timer from the current clock — used when reconstructing a
// tracker from a snapshot, where every pairing direction is recorded as
// its own entry and each carries its own saved round timer.
func (t *Tracker) Restore(attacker, defender string, nextRound time.Time) {
	t.target[attacker] = defender
	t.nextRound[attacker] = nextRound
}

// IsInCombat reports whether attacker currently has a target.
func (t *Tracker) IsInCombat(attacker string) bool {
	_, ok := t.target[attacker]
	return ok
}

// Target returns attacker's current opponent, if any.
func (t *Tracker) Target(attacker string) (string, bool) {
	id, ok := t.target[attacker]
	return id, ok
}

// RoundsDue returns every attacker whose combat round is due as of now,
// advancing each one's next-round time by exactly one interval.
func (t *Tracker) RoundsDue() []string {
	now := t.clk.Now()
	var due []string
	for attacker, fireAt := range t.nextRound {
		if !fireAt.After(now) {
			due = append(due, attacker)
			t.nextRound[attacker] = fireAt.Add(t.roundInterval)
		}
	}
	return due
}

// AllPairings returns every active (attacker, defender, nextRound)
// pairing, for snapshot assembly. Order is unspecified.
func (t *Tracker) AllPairings() []Pairing {
	out := make([]Pairing, 0, len(t.target))
	for attacker, defender := range t.target {
		out = append(out, Pairing{
			Attacker:  attacker,
			Defender:  defender,
			NextRound: t.nextRound[attacker],
		})
	}
	return out
}

// Pairing is one active combat pairing as reported by AllPairings.
type Pairing struct {
	Attacker  string
	Defender  string
	NextRound time.Time
}

// Flee rolls attacker's flee chance and, on success, ends their combat
// and returns true.
func (t *Tracker) Flee(attacker string) bool {
	if t.rng.Intn(100) < t.fleeChance {
		t.End(attacker)
		return true
	}
	return false
}
