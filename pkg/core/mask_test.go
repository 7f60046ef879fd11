package core

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"k8s.io/utils/cpuset"
)

var _ = Describe("NormalizeMask", func() {
	var possible cpuset.CPUSet

	BeforeEach(func() {
		possible = cpuset.New(0, 1, 2, 3)
	})

	It("should always keep the primary core", func() {
		Expect(NormalizeMask(cpuset.New(2, 3), possible).List()).To(Equal([]int{0, 2, 3}))
	})

	It("should drop cores that are not possible", func() {
		Expect(NormalizeMask(cpuset.New(1, 9), possible).List()).To(Equal([]int{0, 1}))
	})

	It("should turn an empty mask into the primary core alone", func() {
		Expect(NormalizeMask(cpuset.New(), possible).List()).To(Equal([]int{0}))
	})
})

var _ = Describe("LowestCores", func() {
	possible := cpuset.New(0, 1, 2, 3)

	It("should pick the lowest n cores", func() {
		Expect(LowestCores(possible, 2).List()).To(Equal([]int{0, 1}))
	})

	It("should clamp n to the possible set", func() {
		Expect(LowestCores(possible, 9).Size()).To(Equal(4))
	})

	It("should never return fewer than the primary core", func() {
		Expect(LowestCores(possible, 0).List()).To(Equal([]int{0}))
	})
})

var _ = Describe("bit mask conversion", func() {
	It("should round trip 0b0011", func() {
		mask := MaskFromBits(0b0011)
		Expect(mask.List()).To(Equal([]int{0, 1}))

		bits, err := MaskBits(mask)
		Expect(err).NotTo(HaveOccurred())
		Expect(bits).To(Equal(uint64(0b0011)))
	})

	It("should reject cores beyond one word", func() {
		_, err := MaskBits(cpuset.New(64))
		Expect(err).To(HaveOccurred())
	})

	It("should list cores in ascending order", func() {
		Expect(Cores(cpuset.New(3, 1))).To(Equal([]CoreID{1, 3}))
	})
})

var _ = Describe("Event", func() {
	It("should parse its own string form", func() {
		for _, e := range []Event{EventRunQueueUpdate, EventSlackExpired} {
			parsed, err := ParseEvent(e.String())
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(e))
		}
	})

	It("should reject unknown names", func() {
		_, err := ParseEvent("qos_timer")
		Expect(err).To(HaveOccurred())
	})

	It("should only pass the depth for run-queue updates", func() {
		Expect(Request{Event: EventRunQueueUpdate, Depth: 30}.Value()).To(Equal(uint32(30)))
		Expect(Request{Event: EventSlackExpired, Depth: 30}.Value()).To(BeZero())
	})
})
