package core

import (
	"fmt"

	"k8s.io/utils/cpuset"
)

// maxWireCores is the width of a single-word core mask.
const maxWireCores = 64

// NormalizeMask restricts mask to the possible cores and adds the primary core.
func NormalizeMask(mask, possible cpuset.CPUSet) cpuset.CPUSet {
	return mask.Intersection(possible).Union(cpuset.New(int(PrimaryCore)))
}

// LowestCores returns the n lowest-numbered cores of possible. The primary core
// is always part of the result, so n below one is treated as one.
func LowestCores(possible cpuset.CPUSet, n int) cpuset.CPUSet {
	n = max(n, 1)
	ids := possible.List()
	if n > len(ids) {
		n = len(ids)
	}
	return cpuset.New(ids[:n]...).Union(cpuset.New(int(PrimaryCore)))
}

// MaskFromBits converts a single-word bit mask into a CPUSet. Bit i set means core i.
func MaskFromBits(bits uint64) cpuset.CPUSet {
	ids := make([]int, 0, maxWireCores)
	for i := range maxWireCores {
		if bits&(1<<uint(i)) != 0 {
			ids = append(ids, i)
		}
	}
	return cpuset.New(ids...)
}

// MaskBits converts a CPUSet into a single-word bit mask.
func MaskBits(mask cpuset.CPUSet) (uint64, error) {
	var bits uint64
	for _, id := range mask.List() {
		if id < 0 || id >= maxWireCores {
			return 0, fmt.Errorf("core %d does not fit a %d-bit mask", id, maxWireCores)
		}
		bits |= 1 << uint(id)
	}
	return bits, nil
}

// Cores lists the members of mask in ascending order.
func Cores(mask cpuset.CPUSet) []CoreID {
	ids := mask.List()
	out := make([]CoreID, len(ids))
	for i, id := range ids {
		out[i] = CoreID(id)
	}
	return out
}
