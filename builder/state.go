package builder

import (
	"github.com/sirupsen/logrus"

	"github.com/polydawn/labimg"
)

// Where a role is in its pipeline.  Roles only ever move forward.
type State uint8

const (
	State_Pending State = iota
	State_RootfsReady
	State_Customized
	State_Provisioned
	State_Packaged
	State_Done
)

func (s State) String() string {
	switch s {
	case State_Pending:
		return "pending"
	case State_RootfsReady:
		return "rootfs-ready"
	case State_Customized:
		return "customized"
	case State_Provisioned:
		return "provisioned"
	case State_Packaged:
		return "packaged"
	case State_Done:
		return "done"
	default:
		return "invalid"
	}
}

// Tracks one role's progress, logging each transition.
type roleProgress struct {
	log   logrus.FieldLogger
	role  labimg.Role
	state State
}

func newRoleProgress(log logrus.FieldLogger, role labimg.Role) *roleProgress {
	p := &roleProgress{log: log.WithField("role", role), role: role}
	p.log.WithField("state", p.state).Debug("role state")
	return p
}

func (p *roleProgress) advance(to State) {
	if to <= p.state {
		panic("role state can only move forward")
	}
	p.state = to
	p.log.WithField("state", to).Infof("%s: %s", p.role, to)
}
