package entity

// Disposition classifies a remote build output file.
type Disposition string

const (
	DispositionCertificate Disposition = "CERTIFICATE"
	DispositionProvision   Disposition = "PROVISION"
	DispositionPackage     Disposition = "PACKAGE"
)

// OperationRequest is one remote build, codesign or cleanup request. The
// BuildID is generated client-side before the first network call and is
// attached to every error raised during the operation's lifetime.
type OperationRequest struct {
	BuildID     string            `json:"buildId"`
	Operation   string            `json:"operation" validate:"required,oneof=build codesign cleanup"`
	Platform    string            `json:"platform,omitempty" validate:"omitempty,oneof=ios android"`
	ProjectName string            `json:"projectName" validate:"required"`
	AccountKey  string            `json:"accountKey" validate:"required"`
	Commit      string            `json:"commit,omitempty"`
	Tarball     string            `json:"tarball,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// OperationHandle is returned by the forge server right after submission.
type OperationHandle struct {
	BuildID   string `json:"buildId"`
	ResultURL string `json:"resultUrl"`
	LogsURL   string `json:"logsUrl,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

// BuildItem is one output file listed in the result manifest.
type BuildItem struct {
	Disposition Disposition `json:"disposition"`
	URL         string      `json:"url"`
}

// OperationResult is the manifest the forge server drops at ResultURL once
// the operation reaches a terminal state.
type OperationResult struct {
	BuildItems []BuildItem `json:"buildItems"`
	Errors     string      `json:"errors,omitempty"`
	Stdout     string      `json:"stdout,omitempty"`
	Stderr     string      `json:"stderr,omitempty"`
}

// Succeeded reports whether the server produced any usable output.
func (r OperationResult) Succeeded() bool {
	return len(r.BuildItems) > 0
}

// ItemsWithDisposition returns the build items matching the filter, in
// manifest order.
func (r OperationResult) ItemsWithDisposition(filter []Disposition) []BuildItem {
	var matched []BuildItem
	for _, item := range r.BuildItems {
		for _, want := range filter {
			if item.Disposition == want {
				matched = append(matched, item)
				break
			}
		}
	}
	return matched
}
