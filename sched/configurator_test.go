package sched

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Configurator", func() {
	var (
		mockCtrl *gomock.Controller
		applier  *MockApplier
		flight   TaskDescriptor
		load     TaskDescriptor
		emerg    TaskDescriptor
		descs    []TaskDescriptor
		ec       ExecContext
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		applier = NewMockApplier(mockCtrl)

		flight = TaskDescriptor{
			Name:   "flight",
			Class:  Periodic,
			Period: 10 * time.Millisecond,
			Budget: 2 * time.Millisecond,
			CPU:    -1,
		}
		load = TaskDescriptor{Name: "load", Class: Aperiodic, Priority: 10, CPU: -1}
		emerg = TaskDescriptor{Name: "emergency", Class: Sporadic, CPU: -1}
		descs = []TaskDescriptor{flight, load, emerg}
		ec = ExecContext{TID: 4242}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should apply the planned FIFO priority", func() {
		c := NewConfigurator(applier, FixedPriority, descs, DefaultBand())
		applier.EXPECT().SetFixedPriority(4242, 90).Return(nil)

		applied, err := c.Apply(emerg, ec)

		Expect(err).NotTo(HaveOccurred())
		Expect(applied.Policy).To(Equal(PolicyFIFO))
		Expect(applied.Priority).To(Equal(90))
		Expect(applied.Enforced()).To(BeTrue())
	})

	It("should report insufficient privilege and keep the default policy", func() {
		c := NewConfigurator(applier, FixedPriority, descs, DefaultBand())
		applier.EXPECT().
			SetFixedPriority(4242, gomock.Any()).
			Return(errors.Join(ErrInsufficientPrivilege, errors.New("EPERM")))

		applied, err := c.Apply(flight, ec)

		Expect(IsInsufficientPrivilege(err)).To(BeTrue())
		Expect(applied.Enforced()).To(BeFalse())

		var setupErr *SetupError
		Expect(errors.As(err, &setupErr)).To(BeTrue())
		Expect(setupErr.Task).To(Equal("flight"))
	})

	It("should use the deadline class for periodic tasks in deadline mode", func() {
		c := NewConfigurator(applier, DeadlineAware, descs, DefaultBand())
		applier.EXPECT().
			SetDeadline(4242, 2*time.Millisecond, 10*time.Millisecond, 10*time.Millisecond).
			Return(nil)

		applied, err := c.Apply(flight, ec)

		Expect(err).NotTo(HaveOccurred())
		Expect(applied.Policy).To(Equal(PolicyDeadline))
		Expect(c.DeadlineModeUnavailable()).To(BeFalse())
	})

	It("should fall back to fixed priority when deadline mode is unsupported", func() {
		c := NewConfigurator(applier, DeadlineAware, descs, DefaultBand())
		prio, _ := c.Priority("flight")
		applier.EXPECT().
			SetDeadline(4242, gomock.Any(), gomock.Any(), gomock.Any()).
			Return(ErrDeadlineUnsupported)
		applier.EXPECT().SetFixedPriority(4242, prio).Return(nil)

		applied, err := c.Apply(flight, ec)

		Expect(err).NotTo(HaveOccurred())
		Expect(applied.Policy).To(Equal(PolicyFIFO))
		Expect(applied.DeadlineModeUnavailable).To(BeTrue())
		Expect(c.DeadlineModeUnavailable()).To(BeTrue())
	})

	It("should not retry deadline mode after it became unavailable", func() {
		c := NewConfigurator(applier, DeadlineAware, descs, DefaultBand())
		applier.EXPECT().
			SetDeadline(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(ErrDeadlineUnsupported).
			Times(1)
		applier.EXPECT().SetFixedPriority(gomock.Any(), gomock.Any()).Return(nil).Times(2)

		_, err := c.Apply(flight, ec)
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Apply(flight, ExecContext{TID: 7})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should keep sporadic tasks on fixed priority in deadline mode", func() {
		c := NewConfigurator(applier, DeadlineAware, descs, DefaultBand())
		applier.EXPECT().SetFixedPriority(4242, 90).Return(nil)

		applied, err := c.Apply(emerg, ec)

		Expect(err).NotTo(HaveOccurred())
		Expect(applied.Policy).To(Equal(PolicyFIFO))
	})

	It("should pin the task even when the priority cannot be applied", func() {
		load.CPU = 0
		c := NewConfigurator(applier, FixedPriority, descs, DefaultBand())
		applier.EXPECT().Pin(4242, 0).Return(nil)
		applier.EXPECT().
			SetFixedPriority(4242, 10).
			Return(ErrInsufficientPrivilege)

		applied, err := c.Apply(load, ec)

		Expect(IsInsufficientPrivilege(err)).To(BeTrue())
		Expect(applied.CPU).To(Equal(0))
	})

	It("should report an affinity failure after applying the priority", func() {
		load.CPU = 3
		c := NewConfigurator(applier, FixedPriority, descs, DefaultBand())
		applier.EXPECT().Pin(4242, 3).Return(errors.New("EINVAL"))
		applier.EXPECT().SetFixedPriority(4242, 10).Return(nil)

		applied, err := c.Apply(load, ec)

		var setupErr *SetupError
		Expect(errors.As(err, &setupErr)).To(BeTrue())
		Expect(setupErr.Kind).To(Equal(AffinityFailed))
		Expect(applied.Enforced()).To(BeTrue())
		Expect(applied.CPU).To(Equal(-1))
	})

	It("should reject a task that is not part of the plan", func() {
		c := NewConfigurator(applier, FixedPriority, descs, DefaultBand())

		_, err := c.Apply(TaskDescriptor{Name: "ghost", CPU: -1}, ec)

		Expect(err).To(HaveOccurred())
	})

	It("should parse mode names", func() {
		m, err := ParseMode("EDF")
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(Equal(DeadlineAware))

		_, err = ParseMode("lottery")
		Expect(err).To(HaveOccurred())
	})
})
