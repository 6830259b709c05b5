package control

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ramp", func() {
	var cfg RampConfig

	BeforeEach(func() {
		var err error
		cfg, err = NewRampConfig(0.1, 1.0, 1e-5)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should step up from rest", func() {
		Expect(Step(0.0, IntentIncrease, cfg)).To(BeNumerically("~", 0.1, 1e-12))
	})

	It("should saturate at the max magnitude", func() {
		Expect(Step(0.95, IntentIncrease, cfg)).To(Equal(1.0))
		Expect(Step(1.0, IntentIncrease, cfg)).To(Equal(1.0))
	})

	It("should stay clamped at negative saturation", func() {
		Expect(Step(-1.0, IntentDecrease, cfg)).To(Equal(-1.0))
	})

	It("should pull a positive value down through zero when idle", func() {
		Expect(Step(0.05, IntentIdle, cfg)).To(BeNumerically("~", -0.05, 1e-12))
	})

	It("should pull a negative value up when idle", func() {
		Expect(Step(-0.5, IntentIdle, cfg)).To(BeNumerically("~", -0.4, 1e-12))
	})

	It("should snap to exactly zero inside the deadband", func() {
		Expect(Step(0.000001, IntentIdle, cfg)).To(Equal(0.0))
		Expect(Step(-0.000009, IntentIdle, cfg)).To(Equal(0.0))
	})

	It("should leave a value sitting exactly on the band edge", func() {
		Expect(Step(1e-5, IntentIdle, cfg)).To(Equal(1e-5))
	})

	It("should ignore unknown intents", func() {
		Expect(Step(0.3, Intent(42), cfg)).To(Equal(0.3))
	})

	It("should bound the output for any input", func() {
		for _, x := range []float64{-50, -1.5, -1, -0.3, 0, 0.3, 1, 1.5, 50} {
			for _, in := range []Intent{IntentIdle, IntentIncrease, IntentDecrease} {
				Expect(math.Abs(Step(x, in, cfg))).To(BeNumerically("<=", cfg.MaxMagnitude))
			}
		}
	})

	It("should be monotonic inside the saturation range", func() {
		for x := -1.0; x <= 1.0; x += 0.05 {
			up := Step(x, IntentIncrease, cfg)
			down := Step(x, IntentDecrease, cfg)
			Expect(up).To(BeNumerically(">=", x))
			Expect(down).To(BeNumerically("<=", x))
			if up == x {
				Expect(x).To(BeNumerically("~", cfg.MaxMagnitude, 1e-9))
			}
			if down == x {
				Expect(x).To(BeNumerically("~", -cfg.MaxMagnitude, 1e-9))
			}
		}
	})

	It("should come to rest when released", func() {
		v := 0.0
		for i := 0; i < 20; i++ {
			v = Step(v, IntentIncrease, cfg)
		}
		Expect(v).To(Equal(1.0))

		for i := 0; i < 100 && v != 0; i++ {
			v = Step(v, IntentIdle, cfg)
		}
		Expect(math.Abs(v)).To(BeNumerically("<", cfg.Step))
	})

	Context("config validation", func() {
		It("should reject a non-positive step", func() {
			_, err := NewRampConfig(0, 1, 0)
			Expect(err).To(MatchError(ErrInvalidRampConfig))
		})

		It("should reject a non-positive max magnitude", func() {
			_, err := NewRampConfig(0.1, -1, 0)
			Expect(err).To(MatchError(ErrInvalidRampConfig))
		})

		It("should reject a tolerance reaching the max magnitude", func() {
			_, err := NewRampConfig(0.1, 1, 1)
			Expect(err).To(MatchError(ErrInvalidRampConfig))
			_, err = NewRampConfig(0.1, 1, -0.1)
			Expect(err).To(MatchError(ErrInvalidRampConfig))
		})

		It("should reject non-finite values", func() {
			_, err := NewRampConfig(math.NaN(), 1, 0)
			Expect(err).To(MatchError(ErrInvalidRampConfig))
			_, err = NewRampConfig(0.1, math.Inf(1), 0)
			Expect(err).To(MatchError(ErrInvalidRampConfig))
		})
	})

	Context("intents", func() {
		It("should print names", func() {
			Expect(IntentIdle.String()).To(Equal("idle"))
			Expect(IntentIncrease.String()).To(Equal("increase"))
			Expect(IntentDecrease.String()).To(Equal("decrease"))
			Expect(Intent(7).String()).To(Equal("Intent(7)"))
		})

		It("should parse scenario text", func() {
			in, err := ParseIntent(" Increase ")
			Expect(err).NotTo(HaveOccurred())
			Expect(in).To(Equal(IntentIncrease))

			in, err = ParseIntent("")
			Expect(err).NotTo(HaveOccurred())
			Expect(in).To(Equal(IntentIdle))

			_, err = ParseIntent("sideways")
			Expect(err).To(MatchError(ErrInvalidIntent))
		})

		It("should map joystick signs", func() {
			Expect(IntentFromSign(1)).To(Equal(IntentIncrease))
			Expect(IntentFromSign(-3)).To(Equal(IntentDecrease))
			Expect(IntentFromSign(0)).To(Equal(IntentIdle))
		})
	})
})
