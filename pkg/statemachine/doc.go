// Package statemachine provides a small generic transition table for
// string-typed lifecycle states such as payment intent and entitlement
// statuses.
//
//	var intents = statemachine.NewTable[Status]().
//	    Allow(Pending, Finished, Failed, Expired)
//
//	if err := intents.Check(current, next); err != nil {
//	    // statemachine.IsNoTransitionAvailableError(err) == true
//	}
package statemachine
