package flight

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("State", func() {
	var s *State

	BeforeEach(func() {
		s = NewState()
	})

	It("should start at rest in standby", func() {
		Expect(s.Snapshot()).To(Equal(Snapshot{}))
		Expect(s.Status()).To(Equal(StatusStandby))
		Expect(s.Latched()).To(BeFalse())
	})

	It("should clamp throttle at the end of every mutation", func() {
		s.Mutate(func(snap *Snapshot) { snap.Throttle = 250 })
		Expect(s.Snapshot().Throttle).To(Equal(MaxThrottle))

		s.Mutate(func(snap *Snapshot) { snap.Throttle = -3 })
		Expect(s.Snapshot().Throttle).To(Equal(MinThrottle))
	})

	It("should clamp altitude and stop the descent at the ground", func() {
		s.Mutate(func(snap *Snapshot) {
			snap.Altitude = -1
			snap.Velocity = -4
		})

		snap := s.Snapshot()
		Expect(snap.Altitude).To(Equal(MinAltitude))
		Expect(snap.Velocity).To(BeZero())
	})

	It("should not let a mutation touch the emergency latch", func() {
		s.Mutate(func(snap *Snapshot) { snap.Emergency = true })
		Expect(s.Latched()).To(BeFalse())

		s.LatchEmergency()
		s.Mutate(func(snap *Snapshot) { snap.Emergency = false })
		Expect(s.Latched()).To(BeTrue())
	})

	It("should latch exactly once", func() {
		Expect(s.LatchEmergency()).To(BeTrue())
		first := s.LatchedAt()

		Expect(s.LatchEmergency()).To(BeFalse())
		Expect(s.LatchedAt()).To(Equal(first))
		Expect(s.Status()).To(Equal(StatusTriggered))
	})

	It("should never move the status backwards", func() {
		s.AdvanceStatus(StatusActive)
		s.AdvanceStatus(StatusTriggered)

		Expect(s.Status()).To(Equal(StatusActive))
	})

	It("should never expose a partial cross-field update", func() {
		var wg sync.WaitGroup
		stop := make(chan struct{})

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}

				v := float64(i % 90)
				s.Mutate(func(snap *Snapshot) {
					snap.Pitch = v
					snap.Roll = v
					snap.Yaw = v
				})
			}
		}()

		for i := 0; i < 2000; i++ {
			s.Read(func(snap Snapshot) {
				Expect(snap.Pitch).To(Equal(snap.Roll))
				Expect(snap.Roll).To(Equal(snap.Yaw))
			})
		}

		close(stop)
		wg.Wait()
	})

	Context("when waiting for the emergency latch", func() {
		It("should return immediately if already latched", func() {
			s.LatchEmergency()

			Expect(s.WaitEmergency(nil)).To(BeTrue())
		})

		It("should wake the waiter after the latch is set", func() {
			woke := make(chan time.Time, 1)
			go func() {
				if s.WaitEmergency(nil) {
					woke <- time.Now()
				}
			}()

			Eventually(s.Waiters).Should(Equal(1))
			s.LatchEmergency()

			var wokeAt time.Time
			Eventually(woke, time.Second).Should(Receive(&wokeAt))
			Expect(wokeAt).To(BeTemporally(">=", s.LatchedAt()))
			Expect(s.Waiters()).To(BeZero())
		})

		It("should return false when done closes first", func() {
			done := make(chan struct{})
			result := make(chan bool, 1)
			go func() { result <- s.WaitEmergency(done) }()

			Eventually(s.Waiters).Should(Equal(1))
			close(done)

			Eventually(result, time.Second).Should(Receive(BeFalse()))
		})

		It("should wake every waiter", func() {
			const waiters = 4
			results := make(chan bool, waiters)
			for i := 0; i < waiters; i++ {
				go func() { results <- s.WaitEmergency(nil) }()
			}

			Eventually(s.Waiters).Should(Equal(waiters))
			s.LatchEmergency()

			for i := 0; i < waiters; i++ {
				Eventually(results, time.Second).Should(Receive(BeTrue()))
			}
		})
	})
})
