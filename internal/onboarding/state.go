// Package onboarding walks a new client from the sign-up form to a live
// agent: registration, payment for paid plans, then agent provisioning.
package onboarding

import (
	"errors"
	"fmt"
)

type State string

const (
	StateForm               State = "form"
	StatePayment            State = "payment"
	StateSuccess            State = "success"
	StateAgentForm          State = "agent_form"
	StateProvisioning       State = "provisioning"
	StateDone               State = "done"
	StateProvisioningFailed State = "provisioning_failed"
)

var ErrInvalidTransition = errors.New("onboarding: invalid state transition")

var transitions = map[State][]State{
	StateForm:               {StatePayment, StateSuccess},
	StatePayment:            {StateSuccess},
	StateSuccess:            {StateAgentForm},
	StateAgentForm:          {StateProvisioning},
	StateProvisioning:       {StateDone, StateProvisioningFailed},
	StateProvisioningFailed: {StateProvisioning},
}

func (s State) Valid() bool {
	if s == StateDone {
		return true
	}
	_, ok := transitions[s]
	return ok
}

func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition returns to when the move is legal.
func Transition(from, to State) (State, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}

// AfterForm is the state that follows a submitted registration form. Free
// plans skip payment.
func AfterForm(free bool) State {
	if free {
		return StateSuccess
	}
	return StatePayment
}
