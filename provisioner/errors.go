package provisioner

import "fmt"

// Step names the stage of EnsureIdentity that failed.
type Step string

const (
	StepCheck        Step = "check"
	StepValidate     Step = "validate"
	StepPrepare      Step = "prepare"
	StepGenerate     Step = "generate"
	StepWritePrivate Step = "write_private"
	StepWritePublic  Step = "write_public"
	StepVerify       Step = "verify"
)

// ProvisioningError reports a failure to produce or validate the notary key pair.
type ProvisioningError struct {
	Step Step
	Path string
	Err  error
}

func (e *ProvisioningError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("key provisioning failed at %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("key provisioning failed at %s (%s): %v", e.Step, e.Path, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}
