package control

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PIDController", func() {
	var pid *PIDController

	BeforeEach(func() {
		pid = NewPIDController(PIDConfig{
			Kp:            1.0,
			Ki:            0.5,
			IntegralLimit: 0.2,
			MaxCorrection: 0.3,
		}, 0.05)
	})

	It("should not correct inside the tolerance band", func() {
		Expect(pid.Update(0.5, 0.48, 0.05)).To(Equal(0.0))
		Expect(pid.GetDiagnostics().Integral).To(Equal(0.0))
	})

	It("should push toward the target", func() {
		Expect(pid.Update(0.5, 0.3, 0.05)).To(BeNumerically(">", 0))
		pid.Reset()
		Expect(pid.Update(0.3, 0.5, 0.05)).To(BeNumerically("<", 0))
	})

	It("should clamp the correction", func() {
		Expect(pid.Update(1.0, -1.0, 0.05)).To(Equal(0.3))
		Expect(pid.Update(-1.0, 1.0, 0.05)).To(Equal(-0.3))
	})

	It("should bound the integral", func() {
		for i := 0; i < 100; i++ {
			pid.Update(0.5, 0.2, 0.1)
		}
		Expect(pid.GetDiagnostics().Integral).To(BeNumerically("<=", 0.2))
	})

	It("should pick the slower step while auto-decelerating", func() {
		cfg := RampConfig{Step: 0.1, MaxMagnitude: 1, ZeroTolerance: 1e-5}
		Expect(AutoDecelStep(0.5, cfg, 0.01, 0.5)).To(Equal(0.05))
		Expect(AutoDecelStep(-0.5, cfg, 0.01, 0.5)).To(Equal(0.05))
		Expect(AutoDecelStep(0.05, cfg, 0.01, 0)).To(Equal(0.05))
		Expect(AutoDecelStep(0.5, cfg, 0.01, 0)).To(Equal(0.1))
	})

	It("should never step past zero while decaying", func() {
		cfg := RampConfig{Step: 0.1, MaxMagnitude: 1, ZeroTolerance: 1e-5}
		Expect(AutoDecelStep(0.005, cfg, 0.01, 0.5)).To(Equal(0.005))
		Expect(AutoDecelStep(-0.02, cfg, 0.01, 0.5)).To(Equal(0.02))
		Expect(AutoDecelStep(0, cfg, 0.01, 0.5)).To(Equal(0.0))
	})

	DescribeTable("should bring a released axis to rest",
		func(step, maxMagnitude, start float64) {
			cfg, err := NewRampConfig(step, maxMagnitude, 1e-5)
			Expect(err).NotTo(HaveOccurred())

			v := start
			for i := 0; i < 10000 && v != 0; i++ {
				v = Step(v, IntentIdle, cfg.WithStep(AutoDecelStep(v, cfg, 0.01, 0.5)))
			}
			Expect(v).To(Equal(0.0))
		},
		Entry("exact multiple", 0.05, 1.2, 1.2),
		Entry("non-multiple max", 0.05, 1.02, 1.02),
		Entry("negative non-multiple", 0.05, 1.02, -1.02),
		Entry("coarse step", 0.3, 1.0, 0.97),
		Entry("fine step", 0.007, 0.5, 0.4999),
	)
})
