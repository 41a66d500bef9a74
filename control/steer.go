package control

import "github.com/samber/lo"

// SteerController clamps the requested steering angle to the vehicle's
// physical limit and exposes it as a normalized ratio. It keeps no state
// beyond the current target.
type SteerController struct {
	targetAngleRad float64
	maxAngleRad    float64
}

// NewSteerController creates a steering stage with the given limit in
// radians.
func NewSteerController(maxSteeringAngleRad float64) *SteerController {
	return &SteerController{maxAngleRad: maxSteeringAngleRad}
}

// SetTarget stores the requested angle, sign-inverted to the simulator's
// steering convention and clamped to the physical limit.
func (c *SteerController) SetTarget(angleRad float64) {
	c.targetAngleRad = lo.Clamp(-angleRad, -c.maxAngleRad, c.maxAngleRad)
}

// TargetAngle returns the stored (inverted, clamped) steering angle.
func (c *SteerController) TargetAngle() float64 {
	return c.targetAngleRad
}

// Ratio returns the normalized steering command in [-1, 1].
func (c *SteerController) Ratio() float64 {
	return c.targetAngleRad / c.maxAngleRad
}
