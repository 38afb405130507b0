package models

// Pair is two records from different stores sharing an identity
type Pair struct {
	A ContentRecord
	B ContentRecord
}

// Identity returns the shared identity of the pair
func (p Pair) Identity() string {
	return p.A.Identity()
}

// Partition is the matcher output. Every input record appears in exactly
// one of Matched, LeftOnly or RightOnly.
type Partition struct {
	Matched   []Pair
	LeftOnly  []ContentRecord
	RightOnly []ContentRecord
}

// Total returns the number of input records the partition accounts for
func (p Partition) Total() int {
	return len(p.Matched)*2 + len(p.LeftOnly) + len(p.RightOnly)
}

// Policy decides which side of a matched pair is authoritative
type Policy string

const (
	PolicyAWins      Policy = "a-wins"
	PolicyBWins      Policy = "b-wins"
	PolicyNewestWins Policy = "newest-wins"
)

// IsValid returns true if the policy is known
func (p Policy) IsValid() bool {
	switch p {
	case PolicyAWins, PolicyBWins, PolicyNewestWins:
		return true
	}
	return false
}

// Description returns a human-readable description of the policy
func (p Policy) Description() string {
	switch p {
	case PolicyAWins:
		return "store A always wins"
	case PolicyBWins:
		return "store B always wins"
	case PolicyNewestWins:
		return "most recently modified record wins; ties go to the approved record, then the default master"
	default:
		return "unknown policy"
	}
}

// Direction restricts which stores may receive writes
type Direction string

const (
	DirectionBoth Direction = "both"
	DirectionAToB Direction = "a-to-b"
	DirectionBToA Direction = "b-to-a"
)

// IsValid returns true if the direction is known
func (d Direction) IsValid() bool {
	switch d {
	case DirectionBoth, DirectionAToB, DirectionBToA:
		return true
	}
	return false
}

// Allows reports whether target may receive writes
func (d Direction) Allows(target StoreID) bool {
	switch d {
	case DirectionAToB:
		return target == StoreB
	case DirectionBToA:
		return target == StoreA
	default:
		return true
	}
}

// Resolution is the resolver's verdict for one pair
type Resolution struct {
	Winner     ContentRecord
	Loser      ContentRecord
	LoserStore StoreID
	Reason     string
}
