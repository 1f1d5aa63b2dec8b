package autoscaler_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/imamik/clusterscaler/internal/autoscaler"
	"github.com/imamik/clusterscaler/internal/catalog"
	"github.com/imamik/clusterscaler/internal/config"
	"github.com/imamik/clusterscaler/internal/loadmetrics"
	"github.com/imamik/clusterscaler/internal/provider/fake"
	"github.com/imamik/clusterscaler/internal/resources"
	"github.com/imamik/clusterscaler/internal/state"
	"github.com/imamik/clusterscaler/internal/util/labels"
)

const clusterDoc = `
cluster_name: ginkgo
upscaling_speed: 2
idle_timeout_minutes: 1
head_node_type: head
provider:
  type: fake
available_node_types:
  head:
    resources: {CPU: 2}
  worker:
    resources: {CPU: 4}
    min_workers: 1
    max_workers: 6
    cost: 1
    setup_commands: ["install-agent"]
    start_commands: ["start-agent"]
    stop_commands: ["stop-agent"]
`

var _ = Describe("Reconciler convergence", func() {
	var (
		ctx   context.Context
		prov  *fake.Provider
		clock *clocktesting.FakeClock
		r     *autoscaler.Reconciler
	)

	workers := func() int {
		filter := labels.ClusterFilter("ginkgo")
		filter[labels.KeyNodeType] = "worker"
		return prov.Count(filter)
	}

	// step runs one tick and lets its workflows finish.
	step := func() autoscaler.Decision {
		d, err := r.ReconcileOnce(ctx)
		Expect(err).NotTo(HaveOccurred())
		r.Wait()
		return d
	}

	headID := func() string {
		for _, rec := range r.Store().List() {
			if rec.IsHead() {
				return rec.ID
			}
		}
		Fail("no head node tracked")
		return ""
	}

	BeforeEach(func() {
		ctx = context.Background()

		cfg, err := config.LoadFromBytes([]byte(clusterDoc))
		Expect(err).NotTo(HaveOccurred())
		cat, err := catalog.New(cfg)
		Expect(err).NotTo(HaveOccurred())

		timeouts := config.LoadTimeouts(cfg.Operations)
		timeouts.RetryInitialDelay = time.Millisecond

		prov = fake.New(fake.Options{})
		clock = clocktesting.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
		r, err = autoscaler.New(autoscaler.Options{
			Config:   cfg,
			Catalog:  cat,
			Provider: prov,
			Clock:    clock,
			Timeouts: timeouts,
		})
		Expect(err).NotTo(HaveOccurred())

		DeferCleanup(func() {
			r.Stop()
			r.Wait()
		})
	})

	It("brings up the head and min_workers and then holds steady", func() {
		Eventually(func() bool { return step().Empty() }).
			WithTimeout(5 * time.Second).
			WithPolling(time.Millisecond).
			Should(BeTrue())

		Expect(workers()).To(Equal(1))
		Expect(r.Store().Len()).To(Equal(2))

		Consistently(func() bool { return step().Empty() }).
			WithTimeout(50 * time.Millisecond).
			WithPolling(5 * time.Millisecond).
			Should(BeTrue())
	})

	It("scales up for demand and back to the floor once idle", func() {
		Eventually(func() bool { return step().Empty() }).WithPolling(time.Millisecond).Should(BeTrue())

		By("reporting demand for four workers")
		demand := make([]resources.Vector, 4)
		for i := range demand {
			demand[i] = resources.Vector{"CPU": 4}
		}
		r.Collector().Report(loadmetrics.Report{NodeID: headID(), PendingDemand: demand})

		// Two running nodes at upscaling_speed 2 allow four new nodes.
		d := step()
		Expect(d.Launches()).To(HaveKeyWithValue("worker", 4))
		r.Collector().Report(loadmetrics.Report{NodeID: headID()})

		Eventually(func() bool { return step().Empty() }).WithPolling(time.Millisecond).Should(BeTrue())
		Expect(workers()).To(Equal(5))

		By("letting every worker go idle")
		clock.Step(2 * time.Minute)
		d = step()
		Expect(d.Terminations()).To(HaveLen(4))

		Eventually(func() bool { return step().Empty() }).WithPolling(time.Millisecond).Should(BeTrue())
		Expect(workers()).To(Equal(1))
		for _, rec := range r.Store().List() {
			if rec.IsHead() {
				Expect(rec.Status).To(Equal(state.StatusUp))
			} else {
				Expect(rec.Status).To(Equal(state.StatusIdle))
			}
		}
	})

	It("heals a worker removed outside the reconciler", func() {
		Eventually(func() bool { return step().Empty() }).WithPolling(time.Millisecond).Should(BeTrue())

		var victim string
		for _, rec := range r.Store().List() {
			if !rec.IsHead() {
				victim = rec.ID
			}
		}
		prov.Remove(victim)

		Eventually(func() bool { return step().Empty() }).WithPolling(time.Millisecond).Should(BeTrue())
		Expect(workers()).To(Equal(1))
		_, tracked := r.Store().Get(victim)
		Expect(tracked).To(BeFalse())
	})
})
