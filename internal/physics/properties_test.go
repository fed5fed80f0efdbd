package physics

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pbfsim/internal/dynamo"
	"github.com/san-kum/pbfsim/internal/kernel"
	"github.com/san-kum/pbfsim/internal/neighbors"
	"gonum.org/v1/gonum/spatial/r3"
)

var _ = Describe("Fluid step", func() {
	Describe("boundary clamp", func() {
		DescribeTable("keeps every coordinate inside the box",
			func(iterations int, gravity float64, seed int64) {
				cfg := configFor(343)
				cfg.Iterations = iterations
				cfg.Gravity = gravity
				ps := block(7, 7, 7, r3.Vec{X: 0.02, Y: 0.02, Z: 0.02}, cfg.H/2)
				jitter(ps, 0.03, seed)
				f := mustFluid(cfg, nil, ps)
				f.Push(r3.Vec{X: 1, Y: 0.5})

				for i := 0; i < 25; i++ {
					Expect(f.Step(ps, nil)).To(Succeed())
					for _, p := range ps {
						for _, c := range []float64{p.X, p.Y, p.Z} {
							Expect(c).To(BeNumerically(">=", cfg.Lower))
							Expect(c).To(BeNumerically("<=", cfg.Upper))
						}
					}
				}
				Expect(dynamo.ValidPositions(ps)).To(BeTrue())
			},
			Entry("no iterations", 0, 0.098, int64(1)),
			Entry("default iterations", 4, 0.098, int64(2)),
			Entry("strong gravity", 4, 2.0, int64(3)),
			Entry("many iterations", 12, 0.5, int64(4)),
		)
	})

	Describe("zero iterations", func() {
		It("moves particles by the force integration displacement only", func() {
			cfg := configFor(27)
			cfg.Iterations = 0
			ps := centeredBlock(3, cfg.H/2)
			f := mustFluid(cfg, nil, ps)

			for frame := 0; frame < 3; frame++ {
				before := dynamo.ClonePositions(ps)
				velocities := dynamo.ClonePositions(f.State().Velocity)
				Expect(f.Step(ps, nil)).To(Succeed())

				for i := range ps {
					v := velocities[i]
					v.Y -= cfg.Mass * cfg.Gravity
					Expect(ps[i]).To(Equal(r3.Add(before[i], r3.Scale(cfg.Dt, v))))
				}
			}
		})
	})

	Describe("a single particle with no neighbors", func() {
		var cfg Config
		ps := func() []r3.Vec { return []r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}} }

		BeforeEach(func() {
			cfg = configFor(1)
			cfg.Gravity = 0
			cfg.Iterations = 3
		})

		It("has zero density and a finite lambda when it is not its own neighbor", func() {
			buf := ps()
			f := mustFluid(cfg, &emptyIndex{}, buf)
			Expect(f.Step(buf, nil)).To(Succeed())

			s := f.State()
			Expect(s.Density[0]).To(BeZero())
			Expect(s.Constraint[0]).To(Equal(-1.0))
			Expect(math.IsInf(s.Lambda[0], 0) || math.IsNaN(s.Lambda[0])).To(BeFalse())
			Expect(s.Lambda[0]).To(BeNumerically("~", 1/cfg.CFMEpsilon, 1e-12))
			Expect(s.Correction[0]).To(Equal(r3.Vec{}))
			Expect(buf[0]).To(Equal(ps()[0]))
		})

		It("receives no correction from its own self term", func() {
			buf := ps()
			f := mustFluid(cfg, nil, buf)
			Expect(f.Step(buf, nil)).To(Succeed())

			s := f.State()
			Expect(s.Neighbors[0]).To(Equal([]int{0}))
			Expect(s.Density[0]).To(BeNumerically("~", cfg.Mass*kernel.Poly6(r3.Vec{}, cfg.H), 1e-9))
			Expect(s.GradNorm[0]).To(BeZero())
			Expect(math.IsInf(s.Lambda[0], 0) || math.IsNaN(s.Lambda[0])).To(BeFalse())
			Expect(s.Correction[0]).To(Equal(r3.Vec{}))
			Expect(buf[0]).To(Equal(ps()[0]))
		})
	})

	Describe("two particles at rest spacing", func() {
		var (
			cfg Config
			buf []r3.Vec
		)

		BeforeEach(func() {
			spacing := DefaultH / 2
			cfg = configFor(2)
			cfg.Gravity = 0
			cfg.TensileK = 0
			cfg.RestDensity = cfg.Mass * (kernel.Poly6Radius(0, cfg.H) + kernel.Poly6Radius(spacing, cfg.H))
			buf = []r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}, {X: 0.5 + spacing, Y: 0.5, Z: 0.5}}
		})

		It("stays put with zero iterations", func() {
			cfg.Iterations = 0
			f := mustFluid(cfg, nil, buf)
			start := dynamo.ClonePositions(buf)
			Expect(f.Step(buf, nil)).To(Succeed())

			for i := 0; i < 2; i++ {
				Expect(f.State().Constraint[i]).To(BeNumerically("~", 0, 1e-12))
				Expect(r3.Norm(f.State().Correction[i])).To(BeNumerically("~", 0, 1e-12))
			}
			Expect(buf).To(Equal(start))
		})

		It("is already converged when the constraint is evaluated", func() {
			cfg.Iterations = 1
			f := mustFluid(cfg, nil, buf)
			Expect(f.Step(buf, nil)).To(Succeed())

			for i := 0; i < 2; i++ {
				Expect(f.State().Constraint[i]).To(BeNumerically("~", 0, 1e-12))
				Expect(r3.Norm(f.State().Correction[i])).To(BeNumerically("~", 0, 1e-12))
			}
		})
	})

	Describe("neighbor rebuild", func() {
		It("is idempotent for unchanged positions", func() {
			cfg := configFor(216)
			ps := centeredBlock(6, cfg.H/2)
			jitter(ps, 0.01, 9)
			grid := neighbors.NewGrid(cfg.Lower, cfg.H)

			grid.Rebuild(ps)
			first := make([][]int, grid.Len())
			for i := range first {
				first[i] = append([]int(nil), grid.Neighbors(i)...)
			}
			grid.Rebuild(ps)
			for i := range first {
				Expect(grid.Neighbors(i)).To(ConsistOf(first[i]))
			}
		})
	})

	Describe("momentum", func() {
		It("stays near zero for a symmetric block without gravity", func() {
			cfg := configFor(216)
			cfg.Gravity = 0
			ps := centeredBlock(6, cfg.H/2.2)
			f := mustFluid(cfg, nil, ps)

			Expect(f.Step(ps, nil)).To(Succeed())
			speed := 0.0
			for _, v := range f.State().Velocity {
				speed += r3.Norm(v)
			}
			Expect(speed).To(BeNumerically(">", 0), "the compressed block should move")
			Expect(r3.Norm(momentum(f))).To(BeNumerically("<", 1e-9*(1+speed)))
		})
	})

	Describe("extensions", func() {
		It("leave a uniform velocity field unchanged", func() {
			cfg := configFor(64)
			cfg.Gravity = 0
			cfg.Iterations = 0
			ps := centeredBlock(4, cfg.H/2)
			f := mustFluid(cfg, nil, ps)
			f.Enable(NewXSPHViscosity(0.5))
			f.Enable(NewVorticityConfinement(cfg.VorticityEpsilon))
			f.Push(r3.Vec{X: 1})

			Expect(f.Step(ps, nil)).To(Succeed())
			for _, v := range f.State().Velocity {
				Expect(v.X).To(BeNumerically("~", cfg.UserForce, 1e-9))
				Expect(v.Y).To(BeNumerically("~", 0, 1e-9))
				Expect(v.Z).To(BeNumerically("~", 0, 1e-9))
			}
		})
	})
})
