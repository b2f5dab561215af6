package domain

// State is a step of the provisioning workflow.
type State string

const (
	StateReceived        State = "RECEIVED"
	StateValidated       State = "VALIDATED"
	StateProvisioned     State = "PROVISIONED"
	StateNotified        State = "NOTIFIED"
	StatePublished       State = "PUBLISHED"
	StateRejected        State = "REJECTED"
	StateIgnored         State = "IGNORED"
	StateProvisionFailed State = "PROVISION_FAILED"
)

// Outcome is what the workflow reports to its caller.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomePartial  Outcome = "partial_success"
	OutcomeRejected Outcome = "rejected"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeFailed   Outcome = "failed"
)

// Steps that may fail without failing the request.
const (
	StepNotify  = "notify"
	StepPublish = "publish"
)

// MismatchPolicy decides what happens to an event whose product id does not
// match the configured one.
type MismatchPolicy string

const (
	MismatchReject MismatchPolicy = "reject"
	MismatchIgnore MismatchPolicy = "ignore"
)

// ProvisionResult is the observable result of one provisioning event.
type ProvisionResult struct {
	EventID    string
	Email      string
	State      State
	Outcome    Outcome
	Credits    int
	Returning  bool // the buyer had been provisioned before
	Reason     string
	Err        error
	NotifyErr  error
	PublishErr error
	Published  bool
}

// FailedSteps lists the non-fatal steps that did not complete.
func (r *ProvisionResult) FailedSteps() []string {
	var steps []string
	if r.NotifyErr != nil {
		steps = append(steps, StepNotify)
	}
	if r.PublishErr != nil {
		steps = append(steps, StepPublish)
	}
	return steps
}
