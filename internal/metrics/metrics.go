// Package metrics defines the optional metrics collaborator attached to
// the Pulp client and orchestration layers.
package metrics

// Recorder receives operational counters from the client, poller,
// orchestrator and transfer engine. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// RecordTaskPoll counts one poll of an asynchronous task.
	RecordTaskPoll()

	// RecordRequest counts one API request by operation name and HTTP status.
	RecordRequest(op string, status int)

	// RecordUpload counts one upload batch for a content category
	// (rpms, logs, sbom, files) with its outcome.
	RecordUpload(category string, err error)

	// RecordDownload counts one artifact download with its outcome.
	RecordDownload(err error)
}

// Nop is a Recorder that discards everything. It is the default when no
// metrics collaborator is attached.
type Nop struct{}

func (Nop) RecordTaskPoll()            {}
func (Nop) RecordRequest(string, int)  {}
func (Nop) RecordUpload(string, error) {}
func (Nop) RecordDownload(error)       {}
