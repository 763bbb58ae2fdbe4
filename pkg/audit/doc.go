// Package audit keeps the append-only trail of payment reconciliation events:
// every settlement and every success callback that arrived too late to be
// honoured.
//
// Settlement rows are usually written by the store inside the same
// transaction that grants the entitlement (see Stamp). Out-of-band events go
// through a Recorder, and API handlers page through the trail with a Reader.
package audit
