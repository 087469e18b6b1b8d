package extraction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/siga-research/siga/internal/providers"
)

// Request identifies one company extraction
type Request struct {
	CompanyName   string `json:"company_name"`
	ProviderID    string `json:"provider"`
	ModelName     string `json:"model"`
	PromptVersion string `json:"prompt_version"`
}

// Status tags an Outcome
type Status string

const (
	StatusSuccess       Status = "success"
	StatusProviderError Status = "provider_error"
	StatusTimeout       Status = "timeout"
)

// Outcome is the result of exactly one extraction attempt. It is built by
// Succeeded, Failed or TimedOut and never changes afterwards.
type Outcome struct {
	status  Status
	data    *providers.StructuredData
	err     *providers.ProviderError
	timeout float64
	elapsed time.Duration
}

// Succeeded returns a success outcome carrying data
func Succeeded(data *providers.StructuredData, elapsed time.Duration) Outcome {
	return Outcome{status: StatusSuccess, data: data, elapsed: elapsed}
}

// Failed returns a provider error outcome
func Failed(err *providers.ProviderError, elapsed time.Duration) Outcome {
	return Outcome{status: StatusProviderError, err: err, elapsed: elapsed}
}

// TimedOut returns a timeout outcome for a deadline of seconds
func TimedOut(seconds float64, elapsed time.Duration) Outcome {
	return Outcome{status: StatusTimeout, timeout: seconds, elapsed: elapsed}
}

func (o Outcome) Status() Status { return o.status }

// Data returns the extracted payload, or nil unless the outcome is a success
func (o Outcome) Data() *providers.StructuredData { return o.data }

// Err returns the provider error, or nil unless the outcome is a provider error
func (o Outcome) Err() *providers.ProviderError { return o.err }

// TimeoutSeconds returns the deadline that expired for a timeout outcome
func (o Outcome) TimeoutSeconds() float64 { return o.timeout }

// Elapsed is the wall time spent waiting for the adapter
func (o Outcome) Elapsed() time.Duration { return o.elapsed }

// Message is a human readable description of a failed outcome
func (o Outcome) Message() string {
	switch o.status {
	case StatusProviderError:
		if o.err != nil {
			return o.err.Error()
		}
		return "provider error"
	case StatusTimeout:
		return fmt.Sprintf("timed out after %gs", o.timeout)
	}
	return ""
}

type outcomeJSON struct {
	Status         Status                    `json:"status"`
	Data           *providers.StructuredData `json:"data,omitempty"`
	ErrorKind      providers.ErrorKind       `json:"error_kind,omitempty"`
	Message        string                    `json:"message,omitempty"`
	TimeoutSeconds float64                   `json:"timeout_seconds,omitempty"`
	ElapsedSeconds float64                   `json:"elapsed_seconds"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	out := outcomeJSON{
		Status:         o.status,
		Data:           o.data,
		Message:        o.Message(),
		TimeoutSeconds: o.timeout,
		ElapsedSeconds: o.elapsed.Seconds(),
	}
	if o.err != nil {
		out.ErrorKind = o.err.Kind
	}
	return json.Marshal(out)
}
