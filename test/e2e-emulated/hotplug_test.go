package e2eemulated

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/utils/cpuset"

	"github.com/llm-d/llm-d-cpu-hotplug/api/v1alpha1"
)

func adminRequest(method, path string, body any) (int, []byte) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, adminServer.URL+path, r)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	resp, err := http.DefaultClient.Do(req)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return resp.StatusCode, data
}

func getStatus() v1alpha1.EngineStatus {
	code, data := adminRequest(http.MethodGet, "/api/v1alpha1/status", nil)
	ExpectWithOffset(1, code).To(Equal(http.StatusOK), string(data))
	var status v1alpha1.EngineStatus
	ExpectWithOffset(1, json.Unmarshal(data, &status)).To(Succeed())
	return status
}

func setEnabled(enabled bool) {
	code, data := adminRequest(http.MethodPut, "/api/v1alpha1/enabled", v1alpha1.EnabledRequest{Enabled: enabled})
	ExpectWithOffset(1, code).To(Equal(http.StatusOK), string(data))
}

var _ = Describe("Emulated hotplug", Ordered, func() {
	AfterAll(func() {
		setEnabled(false)
		setRunQueue(0)
	})

	It("should start disabled with only the primary core online", func() {
		status := getStatus()
		Expect(status.InstanceID).To(Equal(instanceID))
		Expect(status.Enabled).To(BeFalse())
		Expect(status.Oracle).To(Equal("threshold"))
		Expect(status.Possible).To(Equal("0-3"))
		Expect(status.Online).To(Equal("0"))
		Expect(status.Target).To(BeNil())
	})

	It("should reject an invalid configuration and keep the current one", func() {
		before := getStatus().Config

		zero := uint32(0)
		code, data := adminRequest(http.MethodPut, "/api/v1alpha1/config", v1alpha1.EngineConfigSpec{Divisor: &zero})
		Expect(code).To(Equal(http.StatusBadRequest))
		Expect(string(data)).To(ContainSubstring("divisor"))

		Expect(getStatus().Config).To(Equal(before))
	})

	It("should accept a new divisor", func() {
		divisor := uint32(20)
		code, data := adminRequest(http.MethodPut, "/api/v1alpha1/config", v1alpha1.EngineConfigSpec{Divisor: &divisor})
		Expect(code).To(Equal(http.StatusOK), string(data))
		Expect(*getStatus().Config.Divisor).To(Equal(uint32(20)))
	})

	It("should bring cores online under load", func() {
		setEnabled(true)
		setRunQueue(3)

		Expect(waitForOnline(cpuset.New(0, 1, 2))).To(Succeed())
		Consistently(onlineCores, 100*time.Millisecond, 10*time.Millisecond).Should(
			Satisfy(func(s cpuset.CPUSet) bool { return s.Equals(cpuset.New(0, 1, 2)) }),
			"depth 300 is below the third level's up threshold")

		status := getStatus()
		Expect(status.Enabled).To(BeTrue())
		Expect(status.Target).NotTo(BeNil())
		Expect(status.Target.Mask).To(Equal("0-2"))
		Expect(status.Latency.Up.Count).To(BeNumerically(">=", 2))
	})

	It("should take cores offline one at a time when idle", func() {
		setRunQueue(0)

		Expect(waitForOnline(cpuset.New(0))).To(Succeed())

		status := getStatus()
		Expect(status.Latency.Down.Count).To(BeNumerically(">=", 2))
		for _, c := range status.Cores {
			if c.ID == 0 {
				Expect(c.Online).To(BeTrue(), "the primary core stays online")
			}
		}
	})

	It("should leave the cores alone while disabled", func() {
		setEnabled(false)
		Expect(getStatus().Enabled).To(BeFalse())

		setRunQueue(4)
		Consistently(onlineCores, 200*time.Millisecond, 10*time.Millisecond).Should(
			Satisfy(func(s cpuset.CPUSet) bool { return s.Equals(cpuset.New(0)) }))
	})

	It("should expose metrics with the instance label", func() {
		code, data := adminRequest(http.MethodGet, "/metrics", nil)
		Expect(code).To(Equal(http.StatusOK))
		Expect(string(data)).To(ContainSubstring(`hotplugd_cores_possible{instance="e2e-emulated"} 4`))
		Expect(string(data)).To(ContainSubstring(`hotplugd_transition_completed_total{direction="up",instance="e2e-emulated"}`))
	})
})
