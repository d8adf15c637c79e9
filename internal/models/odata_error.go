package models

import "fmt"

// ODataErrorDetail is one entry of the error "details" array
type ODataErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Target  string `json:"target,omitempty"`
}

// ODataError represents the standard OData error envelope
type ODataError struct {
	Code     string              `json:"code,omitempty"`
	Message  string              `json:"message,omitempty"`
	Language string              `json:"lang,omitempty"` // language of a localized message, canonical BCP 47
	Target   string              `json:"target,omitempty"`
	Details  []*ODataErrorDetail `json:"details,omitempty"`

	// InnerError keeps the raw text of each innererror member
	InnerError map[string]string `json:"innererror,omitempty"`
}

// Error implements the error interface
func (e *ODataError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("OData error: %s", e.Message)
	}
	return fmt.Sprintf("OData error %s: %s", e.Code, e.Message)
}
