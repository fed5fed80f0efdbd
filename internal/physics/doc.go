// Package physics implements a position based fluid.
//
// A [Fluid] owns its particles as parallel arrays ([State]) and advances
// them one frame per [Fluid.Step]:
//
//  1. gravity and queued impulses update velocities; candidates are predicted
//  2. the neighbor index is rebuilt once from the candidates
//  3. a fixed number of Jacobi iterations solve the density constraint,
//     each followed by a damped position correction and a boundary clamp
//  4. velocities are recovered from the net displacement
//  5. optional [Extension] passes (viscosity, vorticity) adjust velocities
//  6. candidates are committed and the index is rebuilt for the next frame
//
// # Example
//
//	cfg := physics.DefaultConfig()
//	fluid, err := physics.New(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	box := scene.Box{Lower: cfg.Lower, Upper: cfg.Upper}
//	positions, err := scene.DamBreak(cfg.Particles, box, cfg.H/2)
//	if err != nil {
//	    return err
//	}
//	if err := fluid.InitState(positions); err != nil {
//	    return err
//	}
//	for i := 0; i < frames; i++ {
//	    fluid.Step(positions, nil)
//	}
//
// Inside one iteration the per particle loops run on [dynamo.ParallelFor];
// all lambdas are computed before any correction reads them.
package physics
