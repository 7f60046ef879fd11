package e2eemulated

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" // nolint:all
	. "github.com/onsi/gomega"    // nolint:all
	prom "github.com/prometheus/client_golang/prometheus"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"
	"k8s.io/utils/cpuset"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-cpu-hotplug/internal/actuator"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/collector"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/config"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/controller"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/engines/oracle"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/metrics"
	pkgconfig "github.com/llm-d/llm-d-cpu-hotplug/pkg/config"
)

// Emulated host configuration constants
const (
	possibleCores  = 4
	instanceID     = "e2e-emulated"
	pollInterval   = 2 * time.Millisecond
	minDownSpacing = 20 * time.Millisecond
	transitionWait = 5 * time.Second
)

// thresholdTable scales up one core per 100 of depth above 150 and down below 50.
const thresholdTable = `
interval: 30ms
levels:
  - online: 1
    upDepth: 150
    upHold: 10ms
    downDepth: 0
  - online: 2
    upDepth: 250
    upHold: 10ms
    downDepth: 50
    downHold: 10ms
  - online: 3
    upDepth: 350
    upHold: 10ms
    downDepth: 50
    downHold: 10ms
  - online: 4
    upDepth: 0
    downDepth: 50
    downHold: 10ms
`

var (
	hostRoot  string
	sysfsRoot string
	procRoot  string

	engine      *controller.Engine
	adminServer *httptest.Server
	stopEngine  context.CancelFunc
	engineDone  chan error

	statTicks uint64
)

// setupInfrastructure lays out an emulated sysfs and procfs tree and starts a
// disabled engine with its admin API on top of it.
func setupInfrastructure() {
	var err error
	hostRoot, err = os.MkdirTemp("", "hotplugd-e2e-")
	Expect(err).NotTo(HaveOccurred())
	sysfsRoot = filepath.Join(hostRoot, "sys", "devices", "system", "cpu")
	procRoot = filepath.Join(hostRoot, "proc")

	By("emulating the cpu sysfs tree")
	Expect(os.MkdirAll(sysfsRoot, 0o755)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(sysfsRoot, "possible"), []byte(fmt.Sprintf("0-%d\n", possibleCores-1)), 0o644)).To(Succeed())
	for id := 1; id < possibleCores; id++ {
		dir := filepath.Join(sysfsRoot, "cpu"+strconv.Itoa(id))
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "online"), []byte("0\n"), 0o644)).To(Succeed())
	}

	By("emulating procfs")
	Expect(os.MkdirAll(procRoot, 0o755)).To(Succeed())
	setRunQueue(0)

	thresholdFile := filepath.Join(hostRoot, "thresholds.yaml")
	Expect(os.WriteFile(thresholdFile, []byte(thresholdTable), 0o644)).To(Succeed())

	By("loading the daemon options")
	opts, err := config.Load(config.NewFlagSet("hotplugd"), []string{
		"--sysfs-root=" + sysfsRoot,
		"--proc-root=" + procRoot,
		"--load-smoothing=1",
		"--threshold-file=" + thresholdFile,
		"--poll-interval=" + pollInterval.String(),
		"--min-down-interval=" + minDownSpacing.String(),
		"--instance-id=" + instanceID,
		"--enabled=false",
	})
	Expect(err).NotTo(HaveOccurred())

	By("starting the engine")
	provider, err := actuator.NewSysfsProvider(opts.SysfsRoot)
	Expect(err).NotTo(HaveOccurred())
	online, err := provider.Online()
	Expect(err).NotTo(HaveOccurred())
	Expect(online.Equals(cpuset.New(0))).To(BeTrue())

	table, err := pkgconfig.LoadThresholdTable(opts.ThresholdFile)
	Expect(err).NotTo(HaveOccurred())
	o, err := oracle.NewOracle(oracle.ThresholdStrategy, oracle.Config{
		Table:    table,
		Possible: provider.Possible(),
		Online:   online,
		Clock:    clock.RealClock{},
	})
	Expect(err).NotTo(HaveOccurred())

	reg := prom.NewRegistry()
	emitter, err := metrics.NewEmitter(reg, opts.InstanceID)
	Expect(err).NotTo(HaveOccurred())

	engine, err = controller.NewEngine(controller.EngineOptions{
		InstanceID: opts.InstanceID,
		Provider:   provider,
		Oracle:     o,
		OracleName: oracle.ThresholdStrategy.String(),
		Source:     collector.NewProcLoadSource(opts.ProcRoot, opts.LoadSmoothing),
		Config:     opts.Engine,
		Enabled:    opts.Enabled,
		Metrics:    emitter,
	})
	Expect(err).NotTo(HaveOccurred())
	Expect(metrics.RegisterCollectors(reg, engine.LatencyReader(), engine, opts.InstanceID, ctrl.Log)).To(Succeed())

	var ctx context.Context
	ctx, stopEngine = context.WithCancel(context.Background())
	engineDone = make(chan error, 1)
	go func() { engineDone <- engine.Start(ctx) }()

	adminServer = httptest.NewServer(controller.NewAdminHandler(engine, reg))
	_, _ = fmt.Fprintf(GinkgoWriter, "Admin API listening on %s\n", adminServer.URL)
}

func teardownInfrastructure() {
	if adminServer != nil {
		adminServer.Close()
	}
	if stopEngine != nil {
		stopEngine()
		Eventually(engineDone).Should(Receive(BeNil()))
	}
	if hostRoot != "" {
		Expect(os.RemoveAll(hostRoot)).To(Succeed())
	}
}

// setRunQueue rewrites the emulated /proc/stat with running runnable tasks.
// The file is replaced atomically so a concurrent reader never sees a partial write.
func setRunQueue(running int) {
	statTicks += 1000
	content := fmt.Sprintf("cpu  %d 0 %d %d 0 0 0 0 0 0\nprocs_running %d\nprocs_blocked 0\n",
		statTicks, statTicks, statTicks*2, running)
	tmp := filepath.Join(procRoot, ".stat.tmp")
	ExpectWithOffset(1, os.WriteFile(tmp, []byte(content), 0o644)).To(Succeed())
	ExpectWithOffset(1, os.Rename(tmp, filepath.Join(procRoot, "stat"))).To(Succeed())
}

// onlineCores reads the online set straight from the emulated sysfs tree.
func onlineCores() cpuset.CPUSet {
	ids := []int{0}
	for id := 1; id < possibleCores; id++ {
		data, err := os.ReadFile(filepath.Join(sysfsRoot, "cpu"+strconv.Itoa(id), "online"))
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		if strings.TrimSpace(string(data)) == "1" {
			ids = append(ids, id)
		}
	}
	return cpuset.New(ids...)
}

// waitForOnline polls sysfs until exactly want is online.
func waitForOnline(want cpuset.CPUSet) error {
	return wait.PollUntilContextTimeout(context.Background(), 5*time.Millisecond, transitionWait, true,
		func(context.Context) (bool, error) {
			return onlineCores().Equals(want), nil
		})
}
