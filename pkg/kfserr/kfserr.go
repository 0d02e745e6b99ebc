// Package kfserr defines the error taxonomy as sentinels:
// TransientIO/PermanentIO distinguish disk-I/O failures the caller should
// retry from ones it should surface, MalformedRecord/SequenceGap are
// fatal checkpoint/replay errors, SubmissionRefused is a synchronous
// DiskManager submission failure, and Precondition marks a programmer
// error caught by assertion. Call sites wrap these with
// github.com/pkg/errors so errors.Cause recovers the sentinel while the
// message keeps local context.
package kfserr

import "errors"

var (
	// ErrTransientIO marks a recoverable I/O failure (EAGAIN, partial
	// progress) the caller should retry on the next event-loop pass.
	ErrTransientIO = errors.New("kfserr: transient I/O error")

	// ErrPermanentIO marks a non-recoverable I/O failure surfaced to the
	// owning DiskConnection via HandleDone.
	ErrPermanentIO = errors.New("kfserr: permanent I/O error")

	// ErrMalformedRecord marks an unparseable or unrecognized checkpoint or
	// log record; fatal to startup.
	ErrMalformedRecord = errors.New("kfserr: malformed record")

	// ErrSequenceGap marks a missing or out-of-order log record; fatal to
	// startup.
	ErrSequenceGap = errors.New("kfserr: sequence gap")

	// ErrSubmissionRefused marks a kernel refusal of an async I/O
	// submission.
	ErrSubmissionRefused = errors.New("kfserr: submission refused")

	// ErrPrecondition marks a violated operation precondition (programmer
	// error).
	ErrPrecondition = errors.New("kfserr: precondition violated")
)
