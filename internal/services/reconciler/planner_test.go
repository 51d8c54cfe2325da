package reconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type PlannerSuite struct {
	suite.Suite
}

func (s *PlannerSuite) TestBackoffDelay_Defaults() {
	p := NewPlanner(PlannerConfig{})
	s.Equal(1*time.Minute, p.BackoffDelay(0))
	s.Equal(1*time.Minute, p.BackoffDelay(1))
	s.Equal(5*time.Minute, p.BackoffDelay(2))
	s.Equal(15*time.Minute, p.BackoffDelay(3))
	s.Equal(60*time.Minute, p.BackoffDelay(4))
	s.Equal(60*time.Minute, p.BackoffDelay(100))
}

func (s *PlannerSuite) TestNextCheckDelay_Default() {
	s.Equal(5*time.Minute, NewPlanner(PlannerConfig{}).NextCheckDelay())
}

func (s *PlannerSuite) TestOverridesKept() {
	p := NewPlanner(PlannerConfig{RecheckOpen: 30 * time.Second, Backoff3: 2 * time.Hour})
	s.Equal(30*time.Second, p.NextCheckDelay())
	s.Equal(2*time.Hour, p.BackoffDelay(3))
	s.Equal(5*time.Minute, p.BackoffDelay(2))
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}
